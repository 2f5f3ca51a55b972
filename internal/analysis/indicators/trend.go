package indicators

import (
	"math"

	"github.com/markcheno/go-talib"

	"pattern-scanner/internal/models"
)

// TrendDirection is the classified direction of a regression trend.
type TrendDirection string

const (
	TrendUp       TrendDirection = "uptrend"
	TrendDown     TrendDirection = "downtrend"
	TrendSideways TrendDirection = "sideways"
)

const (
	DefaultTrendLookback    = 20
	DefaultTrendThreshold   = 0.03
	DefaultTrendStrengthCap = 0.15

	minTrendBars = 5
)

// TrendResult describes the trend preceding a bar.
type TrendResult struct {
	Direction TrendDirection
	// Strength is min(|NormalizedSlope|/cap, 1).
	Strength float64
	// Slope is the OLS slope of close against bar position.
	Slope float64
	// NormalizedSlope is the fractional move implied across the window.
	NormalizedSlope float64
	Bars            int
	Sufficient      bool
}

// TrendAnalyzer classifies the trend leading into a pattern.
type TrendAnalyzer struct {
	Lookback    int
	Threshold   float64
	StrengthCap float64
}

// NewTrendAnalyzer returns an analyzer with the default lookback, sideways
// threshold and strength cap.
func NewTrendAnalyzer() TrendAnalyzer {
	return TrendAnalyzer{
		Lookback:    DefaultTrendLookback,
		Threshold:   DefaultTrendThreshold,
		StrengthCap: DefaultTrendStrengthCap,
	}
}

// Analyze regresses close on position over the valid bars before start
// (exclusive).
func (a TrendAnalyzer) Analyze(candles []models.Candle, start int) TrendResult {
	lookback := a.Lookback
	if lookback <= 0 {
		lookback = DefaultTrendLookback
	}
	strengthCap := a.StrengthCap
	if strengthCap <= 0 {
		strengthCap = DefaultTrendStrengthCap
	}

	window := trailingValid(candles, start-1, lookback)
	if start <= 0 || len(window) < minTrendBars {
		return TrendResult{Direction: TrendSideways, Bars: len(window)}
	}

	closes := closePrices(window)
	slopes := talib.LinearRegSlope(closes, len(closes))
	slope := slopes[len(slopes)-1]

	avg := mean(closes)
	if avg <= 0 || !finite(slope) {
		return TrendResult{Direction: TrendSideways, Bars: len(window), Sufficient: true}
	}

	norm := slope * float64(len(closes)-1) / avg
	res := TrendResult{
		Slope:           slope,
		NormalizedSlope: norm,
		Bars:            len(window),
		Sufficient:      true,
		Strength:        math.Min(math.Abs(norm)/strengthCap, 1),
	}
	switch {
	case math.Abs(norm) < a.Threshold:
		res.Direction = TrendSideways
	case norm > 0:
		res.Direction = TrendUp
	default:
		res.Direction = TrendDown
	}
	return res
}
