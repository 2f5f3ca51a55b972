// Package models provides domain models for the pattern scanner.
package models

import (
	"math"
	"time"
)

// DateLayout is the ISO-8601 calendar date layout used for daily bars.
const DateLayout = "2006-01-02"

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Valid reports whether every required field is present and usable.
// Loaders encode a missing price as NaN, so such candles are invalid.
func (c Candle) Valid() bool {
	if c.Timestamp.IsZero() || c.Volume < 0 {
		return false
	}
	for _, p := range [...]float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return false
		}
	}
	return c.High >= c.Low
}

// MidPrice returns (high+low)/2.
func (c Candle) MidPrice() float64 {
	return (c.High + c.Low) / 2
}

// Date returns the candle timestamp formatted as YYYY-MM-DD.
func (c Candle) Date() string {
	return c.Timestamp.Format(DateLayout)
}

// Series is an ascending sequence of candles.
type Series []Candle

// ValidCount returns the number of valid candles.
func (s Series) ValidCount() int {
	n := 0
	for _, c := range s {
		if c.Valid() {
			n++
		}
	}
	return n
}

// Ascending reports whether timestamps are strictly increasing. Candles
// without a timestamp are ignored.
func (s Series) Ascending() bool {
	var prev time.Time
	for _, c := range s {
		if c.Timestamp.IsZero() {
			continue
		}
		if !prev.IsZero() && !c.Timestamp.After(prev) {
			return false
		}
		prev = c.Timestamp
	}
	return true
}
