package indicators

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pattern-scanner/internal/models"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// candleGen generates valid candle data with realistic OHLCV values
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Open":   gen.Float64Range(100.0, 1000.0),
		"High":   gen.Float64Range(100.0, 1000.0),
		"Low":    gen.Float64Range(100.0, 1000.0),
		"Close":  gen.Float64Range(100.0, 1000.0),
		"Volume": gen.Int64Range(1000, 10000000),
	}).Map(func(c models.Candle) models.Candle {
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		return c
	})
}

// candleSliceGen generates a dated slice of valid candles
func candleSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.IntRange(minLen, maxLen).FlatMap(func(v interface{}) gopter.Gen {
		return gen.SliceOfN(v.(int), candleGen())
	}, reflect.TypeOf([]models.Candle{})).Map(func(candles []models.Candle) []models.Candle {
		for i := range candles {
			candles[i].Timestamp = baseTime.AddDate(0, 0, i)
		}
		return candles
	})
}

func linearCandles(n int, start, step float64) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		c := start + float64(i)*step
		candles[i] = models.Candle{
			Timestamp: baseTime.AddDate(0, 0, i),
			Open:      c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    1000,
		}
	}
	return candles
}

func TestVolatilityRatio_Degenerate(t *testing.T) {
	if got := VolatilityRatio(nil, 14, 0); got != DefaultVolatilityRatio {
		t.Errorf("empty series: got %v, want %v", got, DefaultVolatilityRatio)
	}

	one := linearCandles(1, 100, 1)
	if got := VolatilityRatio(one, 14, 0); got != DefaultVolatilityRatio {
		t.Errorf("single bar: got %v, want %v", got, DefaultVolatilityRatio)
	}

	// Only one valid bar survives.
	candles := linearCandles(5, 100, 1)
	for i := 0; i < 4; i++ {
		candles[i].Close = math.NaN()
	}
	if got := VolatilityRatio(candles, 14, 4); got != DefaultVolatilityRatio {
		t.Errorf("one valid bar: got %v, want %v", got, DefaultVolatilityRatio)
	}
}

func TestVolatilityRatio_ConstantRange(t *testing.T) {
	// Flat closes with a 1.0 range around 100: TR is 1, mid is 100.
	candles := linearCandles(30, 100, 0)
	got := VolatilityRatio(candles, 14, 29)
	if math.Abs(got-0.01) > 1e-9 {
		t.Errorf("VolatilityRatio = %v, want 0.01", got)
	}
}

func TestVolatilityRatio_SkipsInvalid(t *testing.T) {
	candles := linearCandles(30, 100, 0)
	candles[20].High = math.NaN()
	candles[25].Volume = -1
	got := VolatilityRatio(candles, 14, 29)
	if math.IsNaN(got) || math.Abs(got-0.01) > 1e-9 {
		t.Errorf("VolatilityRatio = %v, want 0.01 with invalid bars skipped", got)
	}
}

func TestRegime(t *testing.T) {
	tests := []struct {
		ratio float64
		want  VolatilityRegime
	}{
		{0.005, RegimeLow},
		{0.01, RegimeNormal},
		{0.02, RegimeNormal},
		{0.03, RegimeNormal},
		{0.031, RegimeHigh},
	}
	for _, tt := range tests {
		if got := Regime(tt.ratio, DefaultLowVolatility, DefaultHighVolatility); got != tt.want {
			t.Errorf("Regime(%v) = %s, want %s", tt.ratio, got, tt.want)
		}
	}
}

func TestTrendAnalyzer_Directions(t *testing.T) {
	a := NewTrendAnalyzer()

	up := a.Analyze(linearCandles(40, 100, 1), 30)
	if up.Direction != TrendUp || !up.Sufficient {
		t.Errorf("rising series: got %+v", up)
	}
	if up.Strength != 1 {
		t.Errorf("rising 19%% move should saturate strength, got %v", up.Strength)
	}
	if math.Abs(up.Slope-1) > 1e-6 {
		t.Errorf("slope = %v, want 1", up.Slope)
	}

	down := a.Analyze(linearCandles(40, 200, -1), 30)
	if down.Direction != TrendDown {
		t.Errorf("falling series: got %s", down.Direction)
	}

	flat := a.Analyze(linearCandles(40, 100, 0.01), 30)
	if flat.Direction != TrendSideways {
		t.Errorf("flat series: got %s", flat.Direction)
	}
}

func TestTrendAnalyzer_Insufficient(t *testing.T) {
	a := NewTrendAnalyzer()
	res := a.Analyze(linearCandles(40, 100, 1), 4)
	if res.Sufficient || res.Direction != TrendSideways || res.Strength != 0 {
		t.Errorf("expected insufficient sideways result, got %+v", res)
	}
}

// Property: For any valid candle data, the volatility ratio is finite and
// non-negative, and trend strength lies in [0, 1].
func TestProperty_IndicatorBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("volatility ratio is finite and non-negative", prop.ForAll(
		func(candles []models.Candle) bool {
			r := VolatilityRatio(candles, DefaultATRPeriod, len(candles)-1)
			return finite(r) && r >= 0
		},
		candleSliceGen(1, 80),
	))

	properties.Property("trend strength within [0,1]", prop.ForAll(
		func(candles []models.Candle) bool {
			res := NewTrendAnalyzer().Analyze(candles, len(candles))
			return res.Strength >= 0 && res.Strength <= 1 && finite(res.NormalizedSlope)
		},
		candleSliceGen(1, 80),
	))

	properties.TestingRun(t)
}
