// Package breakout finds the bar that confirms a reversal pattern by closing
// through its neckline.
package breakout

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/models"
)

const (
	DefaultWindow          = 30
	DefaultThreshold       = 0.02
	DefaultFormingProgress = 0.25
	DefaultVolumeLookback  = 20
)

// Params controls one breakout search. Threshold is already adjusted for the
// volatility regime by the caller.
type Params struct {
	Window    int
	Threshold float64
	// Invalidation is the fraction beyond the pattern extreme at which the
	// search stops.
	Invalidation    float64
	AllowForming    bool
	FormingProgress float64
	VolumeLookback  int
}

// DefaultParams returns the normal-regime parameters.
func DefaultParams() Params {
	return Params{
		Window:          DefaultWindow,
		Threshold:       DefaultThreshold,
		Invalidation:    0.08,
		AllowForming:    true,
		FormingProgress: DefaultFormingProgress,
		VolumeLookback:  DefaultVolumeLookback,
	}
}

// Setup describes the pattern being confirmed.
type Setup struct {
	// Bearish patterns break down through the neckline.
	Bearish  bool
	Neckline analysis.Neckline
	// LastIndex is the index of the last pattern point. The search starts
	// at the next bar.
	LastIndex int
	// Extreme is the pattern's highest peak (bearish) or lowest trough.
	Extreme float64
	// LastExtreme is the price of the last pattern point, the origin of the
	// forming-progress measure.
	LastExtreme float64
}

// Detect scans forward from the last pattern point. The returned point has
// Status BreakoutNone when nothing qualifies.
func Detect(candles []models.Candle, s Setup, p Params) analysis.BreakoutPoint {
	none := analysis.BreakoutPoint{Index: -1, Status: analysis.BreakoutNone}
	if s.LastIndex < 0 || s.LastIndex >= len(candles)-1 {
		return none
	}
	window := p.Window
	if window <= 0 {
		window = DefaultWindow
	}

	end := s.LastIndex + window
	truncated := false
	if end > len(candles)-1 {
		end = len(candles) - 1
		truncated = true
	}

	var partial *analysis.BreakoutPoint
	invalidated := false
	lastSeen := -1

	for i := s.LastIndex + 1; i <= end; i++ {
		c := candles[i]
		if !c.Valid() {
			continue
		}
		lastSeen = i
		neck := s.Neckline.At(i)

		if s.Bearish {
			if c.High > s.Extreme*(1+p.Invalidation) {
				invalidated = true
				break
			}
			if c.Close < neck*(1-p.Threshold) {
				return point(candles, i, neck, s.Bearish, analysis.BreakoutConfirmed, p)
			}
			if partial == nil && (c.Close < neck || c.Low <= neck) {
				bp := point(candles, i, neck, s.Bearish, analysis.BreakoutPartial, p)
				partial = &bp
			}
			continue
		}

		if c.Low < s.Extreme*(1-p.Invalidation) {
			invalidated = true
			break
		}
		if c.Close > neck*(1+p.Threshold) {
			return point(candles, i, neck, s.Bearish, analysis.BreakoutConfirmed, p)
		}
		if partial == nil && (c.Close > neck || c.High >= neck) {
			bp := point(candles, i, neck, s.Bearish, analysis.BreakoutPartial, p)
			partial = &bp
		}
	}

	// A move past the pattern extreme voids any earlier neckline touch.
	if invalidated {
		return none
	}
	if partial != nil {
		return *partial
	}
	if !truncated || !p.AllowForming || lastSeen < 0 {
		return none
	}

	// The series ended inside the window: accept a move that has covered
	// enough of the way from the last extreme to the neckline.
	c := candles[lastSeen]
	neck := s.Neckline.At(lastSeen)
	distance := s.LastExtreme - neck
	moved := s.LastExtreme - c.Close
	if !s.Bearish {
		distance, moved = -distance, -moved
	}
	progress := p.FormingProgress
	if progress <= 0 {
		progress = DefaultFormingProgress
	}
	if distance > 0 && moved/distance >= progress {
		return point(candles, lastSeen, neck, s.Bearish, analysis.BreakoutForming, p)
	}
	return none
}

func point(candles []models.Candle, i int, neck float64, bearish bool, status analysis.BreakoutStatus, p Params) analysis.BreakoutPoint {
	c := candles[i]
	pen := 0.0
	if neck > 0 {
		pen = (c.Close - neck) / neck
		if bearish {
			pen = -pen
		}
	}
	return analysis.BreakoutPoint{
		Index:       i,
		Date:        c.Date(),
		Price:       c.Close,
		Volume:      c.Volume,
		Status:      status,
		VolumeRatio: VolumeRatio(candles, i, p.VolumeLookback),
		Penetration: pen,
	}
}

// VolumeRatio compares the volume at index i with the mean volume of the
// lookback valid bars before it. A zero mean yields the neutral ratio 1.
func VolumeRatio(candles []models.Candle, i, lookback int) float64 {
	if i < 0 || i >= len(candles) {
		return 1
	}
	if lookback <= 0 {
		lookback = DefaultVolumeLookback
	}

	var total float64
	n := 0
	for j := i - 1; j >= 0 && n < lookback; j-- {
		if !candles[j].Valid() {
			continue
		}
		total += float64(candles[j].Volume)
		n++
	}
	if n == 0 || total <= 0 {
		return 1
	}
	ratio := float64(candles[i].Volume) / (total / float64(n))
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 1
	}
	return ratio
}
