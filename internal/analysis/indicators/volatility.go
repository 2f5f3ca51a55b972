// Package indicators provides the volatility and trend measures the pattern
// validators adapt their thresholds to.
package indicators

import (
	"github.com/markcheno/go-talib"

	"pattern-scanner/internal/models"
)

const (
	// DefaultATRPeriod is the trailing window of the ATR ratio.
	DefaultATRPeriod = 14

	// DefaultVolatilityRatio is returned when fewer than two usable bars exist.
	// It sits between the low and high thresholds so no scaling is applied.
	DefaultVolatilityRatio = 0.015

	// DefaultLowVolatility and DefaultHighVolatility bound the normal regime.
	DefaultLowVolatility  = 0.01
	DefaultHighVolatility = 0.03
)

// VolatilityRegime classifies an ATR ratio.
type VolatilityRegime string

const (
	RegimeLow    VolatilityRegime = "low"
	RegimeNormal VolatilityRegime = "normal"
	RegimeHigh   VolatilityRegime = "high"
)

// VolatilityRatio returns the average true range over the trailing period
// valid bars ending at end, divided by their average mid-price.
func VolatilityRatio(candles []models.Candle, period, end int) float64 {
	if period <= 0 {
		period = DefaultATRPeriod
	}
	if len(candles) == 0 || end < 0 {
		return DefaultVolatilityRatio
	}

	// One extra bar supplies the previous close of the first true range.
	window := trailingValid(candles, end, period+1)
	if len(window) < 2 {
		return DefaultVolatilityRatio
	}

	tr := talib.TRange(highPrices(window), lowPrices(window), closePrices(window))
	atr := mean(tr[1:])

	mids := make([]float64, 0, len(window)-1)
	for _, c := range window[1:] {
		mids = append(mids, c.MidPrice())
	}
	avgMid := mean(mids)
	if avgMid <= 0 || !finite(atr) || !finite(avgMid) {
		return DefaultVolatilityRatio
	}
	return atr / avgMid
}

// SeriesVolatility is the ATR ratio across the whole series.
func SeriesVolatility(candles []models.Candle) float64 {
	return VolatilityRatio(candles, len(candles)-1, len(candles)-1)
}

// Regime classifies ratio against the low and high thresholds. Both bounds
// are exclusive: a ratio equal to a threshold is normal.
func Regime(ratio, low, high float64) VolatilityRegime {
	switch {
	case ratio > high:
		return RegimeHigh
	case ratio < low:
		return RegimeLow
	default:
		return RegimeNormal
	}
}
