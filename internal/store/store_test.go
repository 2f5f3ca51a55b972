package store

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func testCandles(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		p := 100 + float64(i)
		candles[i] = models.Candle{
			Timestamp: day(i),
			Open:      p,
			High:      p + 1.5,
			Low:       p - 1.25,
			Close:     p + 0.5,
			Volume:    int64(1000 + i),
		}
	}
	return candles
}

func TestParseCSV(t *testing.T) {
	data := "\xef\xbb\xbfDate,Open,High,Low,Close,Volume\r\n" +
		"2024-01-03,101,102,100,101.5,1200\r\n" +
		"2024-01-02,100,101,99,100.5,\r\n" +
		"2024-01-04,,103,101,102,1300\r\n"

	candles, err := ParseCSV([]byte(data))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("got %d candles", len(candles))
	}
	if candles[0].Date() != "2024-01-02" || candles[1].Date() != "2024-01-03" {
		t.Errorf("rows not sorted: %s, %s", candles[0].Date(), candles[1].Date())
	}
	if candles[0].Volume != -1 || candles[0].Valid() {
		t.Errorf("empty volume should leave the candle invalid: %+v", candles[0])
	}
	if !candles[1].Valid() || candles[1].Close != 101.5 {
		t.Errorf("row 2024-01-03 = %+v", candles[1])
	}
	if !math.IsNaN(candles[2].Open) || candles[2].Valid() {
		t.Errorf("empty open should be NaN: %+v", candles[2])
	}
}

func TestParseCSVAliasesAndErrors(t *testing.T) {
	candles, err := ParseCSV([]byte("timestamp,open,high,low,close,vol\n1704067200,1,2,0.5,1.5,10\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 1 || candles[0].Date() != "2024-01-01" || candles[0].Volume != 10 {
		t.Errorf("candles = %+v", candles)
	}

	_, err = ParseCSV([]byte("date,open,high,low,close,volume\n2024-01-01,abc,2,1,1.5,10\n"))
	if !errors.Is(err, errors.ErrInputValidation) {
		t.Errorf("err = %v, want input validation error", err)
	}

	_, err = ParseCSV([]byte("date,open,high,low,close,volume\nyesterday,1,2,1,1.5,10\n"))
	if !errors.Is(err, errors.ErrInputValidation) {
		t.Errorf("err = %v, want input validation error", err)
	}
}

func TestParseDuplicateDates(t *testing.T) {
	// Unordered rows are sorted; a repeated date is rejected.
	candles, err := ParseCSV([]byte("date,open,high,low,close,volume\n" +
		"2024-01-03,1,2,0.5,1.5,10\n2024-01-01,1,2,0.5,1.5,10\n2024-01-02,1,2,0.5,1.5,10\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !models.Series(candles).Ascending() {
		t.Errorf("candles not ascending: %+v", candles)
	}

	_, err = ParseCSV([]byte("date,open,high,low,close,volume\n" +
		"2024-01-02,10,11,9,10,5\n2024-01-02,20,21,19,20,5\n2024-01-01,1,2,0.5,1.5,5\n"))
	var ve *errors.ValidationError
	if !errors.As(err, &ve) || ve.Message != "duplicate date" || ve.Value != "2024-01-02" {
		t.Errorf("err = %v, want duplicate date 2024-01-02", err)
	}
	if !errors.Is(err, errors.ErrInputValidation) {
		t.Errorf("err = %v, want input validation error", err)
	}

	_, err = ParseJSON([]byte(`[
		{"date": "2024-01-01", "open": 1, "high": 2, "low": 0.5, "close": 1.5, "volume": 5},
		{"timestamp": 1704067200, "open": 1, "high": 2, "low": 0.5, "close": 1.5, "volume": 5}
	]`))
	if !errors.Is(err, errors.ErrInputValidation) {
		t.Errorf("json err = %v, want input validation error", err)
	}

	// Rows without a date do not count as duplicates of each other.
	candles, err = ParseCSV([]byte("date,open,high,low,close,volume\n" +
		",1,2,0.5,1.5,10\n,1,2,0.5,1.5,10\n2024-01-01,1,2,0.5,1.5,10\n"))
	if err != nil || len(candles) != 3 {
		t.Errorf("undated rows: %d candles, err %v", len(candles), err)
	}
}

func TestParseJSON(t *testing.T) {
	data := `[
		{"date": "2024-01-02", "open": 100, "high": 101, "low": 99, "close": 100.5, "volume": 900},
		{"timestamp": 1704067200, "open": 99, "high": 100, "low": 98, "close": null, "volume": 800},
		{"date": "2024-01-03", "open": 101, "high": 102, "low": 100, "close": 101}
	]`
	candles, err := ParseJSON([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 3 || candles[0].Date() != "2024-01-01" {
		t.Fatalf("candles = %+v", candles)
	}
	if !math.IsNaN(candles[0].Close) {
		t.Errorf("null close = %v, want NaN", candles[0].Close)
	}
	if candles[2].Volume != -1 {
		t.Errorf("missing volume = %d, want -1", candles[2].Volume)
	}
	if !candles[1].Valid() {
		t.Errorf("complete row invalid: %+v", candles[1])
	}

	if _, err := ParseJSON([]byte(`{"date": "2024-01-01"}`)); !errors.Is(err, errors.ErrInputValidation) {
		t.Errorf("err = %v, want input validation error", err)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	want := testCandles(5)

	data, err := WriteCSV(want)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "acme.csv")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := FileSource{Path: path}.Candles(context.Background(), "ACME")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d candles, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Timestamp.Equal(want[i].Timestamp) || got[i].Close != want[i].Close || got[i].Volume != want[i].Volume {
			t.Errorf("candle %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if SymbolFromPath(path) != "ACME" {
		t.Errorf("SymbolFromPath = %s", SymbolFromPath(path))
	}

	_, err = FileSource{Path: filepath.Join(dir, "missing.json")}.Candles(context.Background(), "X")
	var de *errors.DataError
	if !errors.As(err, &de) || de.Symbol != "X" {
		t.Errorf("err = %v, want DataError", err)
	}
}

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "candles.db"), 2)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	candles := testCandles(10)
	candles[3].Close = math.NaN()

	n, err := s.SaveCandles(ctx, "ACME", candles)
	if err != nil {
		t.Fatal(err)
	}
	if n != 9 {
		t.Errorf("saved %d, want 9 valid candles", n)
	}

	// Saving again replaces rather than duplicates.
	if _, err := s.SaveCandles(ctx, "ACME", candles); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveCandles(ctx, "BETA", testCandles(3)); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetCandles(ctx, "ACME", day(2), day(5))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Date() != "2024-01-03" || got[2].Date() != "2024-01-06" {
		t.Errorf("range query = %+v", got)
	}

	infos, err := s.ListSymbols(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 || infos[0] != (SymbolInfo{"ACME", 9}) || infos[1] != (SymbolInfo{"BETA", 3}) {
		t.Errorf("symbols = %+v", infos)
	}

	if _, err := s.Candles(ctx, "NONE"); !errors.Is(err, errors.ErrDataNotFound) {
		t.Errorf("err = %v, want ErrDataNotFound", err)
	}

	deleted, err := s.DeleteSymbol(ctx, "BETA")
	if err != nil || deleted != 3 {
		t.Errorf("deleted %d, err %v", deleted, err)
	}
}

// Property: any valid candle series saved to the store comes back unchanged
// and in order.
func TestProperty_CandleRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	symbol := 0
	properties.Property("save then load preserves candles", prop.ForAll(
		func(n int, base float64, volume int64) bool {
			symbol++
			name := "SYM" + time.Unix(int64(symbol), 0).UTC().Format("150405")

			candles := testCandles(n)
			for i := range candles {
				scale := base / 100
				candles[i].Open *= scale
				candles[i].High *= scale
				candles[i].Low *= scale
				candles[i].Close *= scale
				candles[i].Volume = volume + int64(i)
			}

			if _, err := s.SaveCandles(ctx, name, candles); err != nil {
				t.Logf("save: %v", err)
				return false
			}
			got, err := s.Candles(ctx, name)
			if err != nil || len(got) != len(candles) {
				return false
			}
			for i := range candles {
				a, b := candles[i], got[i]
				if !a.Timestamp.Equal(b.Timestamp) || a.Open != b.Open || a.High != b.High ||
					a.Low != b.Low || a.Close != b.Close || a.Volume != b.Volume {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.Float64Range(1, 5000),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}
