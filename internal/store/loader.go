package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// csvRow keeps every column as text so that empty cells can be told apart
// from zeros.
type csvRow struct {
	Date   string `csv:"date"`
	Open   string `csv:"open"`
	High   string `csv:"high"`
	Low    string `csv:"low"`
	Close  string `csv:"close"`
	Volume string `csv:"volume"`
}

// jsonRow accepts numbers or null for every price field.
type jsonRow struct {
	Date      string   `json:"date"`
	Timestamp *int64   `json:"timestamp"`
	Open      *float64 `json:"open"`
	High      *float64 `json:"high"`
	Low       *float64 `json:"low"`
	Close     *float64 `json:"close"`
	Volume    *float64 `json:"volume"`
}

var headerAliases = map[string]string{
	"time":      "date",
	"timestamp": "date",
	"datetime":  "date",
	"vol":       "volume",
}

var dateLayouts = []string{
	models.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// LoadCSV reads a CSV file with a date,open,high,low,close,volume header.
// Header names are case-insensitive. Empty price cells become NaN and an
// empty volume becomes -1, which leaves the candle invalid; detection skips
// such candles. Rows are returned in ascending date order.
func LoadCSV(path string) ([]models.Candle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	return ParseCSV(data)
}

// ParseCSV parses CSV candle data. See LoadCSV.
func ParseCSV(data []byte) ([]models.Candle, error) {
	var rows []*csvRow
	if err := gocsv.Unmarshal(bytes.NewReader(normalizeHeader(data)), &rows); err != nil {
		return nil, errors.Wrap(errors.ErrInputValidation, err.Error())
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, r := range rows {
		line := i + 2
		c, err := parseRow(r)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		candles = append(candles, c)
	}
	sortCandles(candles)
	if err := checkDates(candles); err != nil {
		return nil, err
	}
	return candles, nil
}

// normalizeHeader lowercases the header line and maps common aliases.
func normalizeHeader(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	header, rest, _ := bytes.Cut(data, []byte("\n"))
	fields := strings.Split(strings.TrimRight(string(header), "\r"), ",")
	for i, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if alias, ok := headerAliases[f]; ok {
			f = alias
		}
		fields[i] = f
	}
	out := []byte(strings.Join(fields, ","))
	out = append(out, '\n')
	return append(out, rest...)
}

func parseRow(r *csvRow) (models.Candle, error) {
	var c models.Candle
	var err error
	if c.Timestamp, err = parseDate(r.Date); err != nil {
		return c, err
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", r.Open, &c.Open},
		{"high", r.High, &c.High},
		{"low", r.Low, &c.Low},
		{"close", r.Close, &c.Close},
	} {
		if *f.dst, err = parsePrice(f.raw); err != nil {
			return c, errors.NewValidationError(f.name, f.raw, "not a number")
		}
	}
	if c.Volume, err = parseVolume(r.Volume); err != nil {
		return c, errors.NewValidationError("volume", r.Volume, "not a number")
	}
	return c, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, errors.NewValidationError("date", s, "unrecognised date format")
}

func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseVolume(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return -1, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f)), nil
}

// LoadJSON reads a JSON array of {date, open, high, low, close, volume}
// objects. A unix "timestamp" in seconds may replace date. Missing or null
// prices become NaN; a missing volume becomes -1.
func LoadJSON(path string) ([]models.Candle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading json")
	}
	return ParseJSON(data)
}

// ParseJSON parses JSON candle data. See LoadJSON.
func ParseJSON(data []byte) ([]models.Candle, error) {
	var rows []jsonRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrap(errors.ErrInputValidation, err.Error())
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, r := range rows {
		var c models.Candle
		if r.Timestamp != nil {
			c.Timestamp = time.Unix(*r.Timestamp, 0).UTC()
		} else {
			t, err := parseDate(r.Date)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", i)
			}
			c.Timestamp = t
		}
		c.Open = orNaN(r.Open)
		c.High = orNaN(r.High)
		c.Low = orNaN(r.Low)
		c.Close = orNaN(r.Close)
		c.Volume = -1
		if r.Volume != nil {
			c.Volume = int64(math.Round(*r.Volume))
		}
		candles = append(candles, c)
	}
	sortCandles(candles)
	if err := checkDates(candles); err != nil {
		return nil, err
	}
	return candles, nil
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func sortCandles(candles []models.Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
}

// checkDates rejects sorted candles that share a date. Rows without a date
// are left for the validity check.
func checkDates(candles []models.Candle) error {
	if models.Series(candles).Ascending() {
		return nil
	}
	var prev time.Time
	for _, c := range candles {
		if c.Timestamp.IsZero() {
			continue
		}
		if c.Timestamp.Equal(prev) {
			return errors.NewValidationError("date", c.Date(), "duplicate date")
		}
		prev = c.Timestamp
	}
	return errors.NewValidationError("date", "", "dates are not strictly increasing")
}

// WriteCSV renders candles in the format LoadCSV reads.
func WriteCSV(candles []models.Candle) ([]byte, error) {
	rows := make([]*csvRow, len(candles))
	for i, c := range candles {
		rows[i] = &csvRow{
			Date:   c.Date(),
			Open:   formatPrice(c.Open),
			High:   formatPrice(c.High),
			Low:    formatPrice(c.Low),
			Close:  formatPrice(c.Close),
			Volume: fmt.Sprint(c.Volume),
		}
	}
	s, err := gocsv.MarshalString(&rows)
	if err != nil {
		return nil, errors.Wrap(err, "encoding csv")
	}
	return []byte(s), nil
}

func formatPrice(p float64) string {
	if math.IsNaN(p) {
		return ""
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}
