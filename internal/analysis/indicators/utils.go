package indicators

import (
	"math"

	"pattern-scanner/internal/models"
)

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// finite reports whether x is neither NaN nor Inf.
func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// trailingValid returns up to count valid candles ending at (and including)
// index end, in chronological order. Invalid candles are skipped, not counted.
func trailingValid(candles []models.Candle, end, count int) []models.Candle {
	if end >= len(candles) {
		end = len(candles) - 1
	}
	out := make([]models.Candle, 0, count)
	for i := end; i >= 0 && len(out) < count; i-- {
		if candles[i].Valid() {
			out = append(out, candles[i])
		}
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// highPrices extracts high prices from candles.
func highPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.High
	}
	return prices
}

// lowPrices extracts low prices from candles.
func lowPrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Low
	}
	return prices
}

// closePrices extracts close prices from candles.
func closePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}
