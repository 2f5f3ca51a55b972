// Package patterns detects reversal chart formations: double and triple
// tops and bottoms, head-and-shoulders and its inverse.
package patterns

import (
	"math"
	"time"

	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/models"
)

// Role distinguishes local maxima from local minima.
type Role string

const (
	RolePeak   Role = "peak"
	RoleTrough Role = "trough"
)

// Opposite returns the other role.
func (r Role) Opposite() Role {
	if r == RolePeak {
		return RoleTrough
	}
	return RolePeak
}

// TurningPoint is a local extreme: the high of a peak or the low of a trough.
type TurningPoint struct {
	Index        int
	Role         Role
	Price        float64
	Volume       int64
	Significance float64
	Timestamp    time.Time
}

// Requirement is the minimum number of turning points a formation needs.
type Requirement struct {
	Peaks   int
	Troughs int
}

// Met reports whether the counts satisfy r.
func (r Requirement) Met(peaks, troughs int) bool {
	return peaks >= r.Peaks && troughs >= r.Troughs
}

// Extractor finds peaks and troughs with a volatility-adaptive window.
type Extractor struct {
	params ExtractorParams
	vol    VolatilityParams
}

// NewExtractor creates an extractor from the detection config.
func NewExtractor(cfg Config) *Extractor {
	p := cfg.Extractor
	if p.MinWindow < 1 {
		p.MinWindow = 2
	}
	if p.MaxWindow < p.MinWindow {
		p.MaxWindow = p.MinWindow
	}
	return &Extractor{params: p, vol: cfg.Volatility}
}

// BaseWindow returns the starting window for a series: the configured size,
// or one chosen from the series length and overall volatility.
func (e *Extractor) BaseWindow(candles []models.Candle) int {
	if e.params.WindowSize > 0 {
		return e.clamp(e.params.WindowSize)
	}

	n := len(candles)
	var w float64
	switch {
	case n < 50:
		w = 3
	case n < 100:
		w = 5
	case n < 200:
		w = 7
	default:
		w = 10
	}

	ratio := indicators.SeriesVolatility(candles)
	switch indicators.Regime(ratio, e.vol.Low, e.vol.High) {
	case indicators.RegimeHigh:
		w *= e.vol.HighWindowScale
	case indicators.RegimeLow:
		w *= e.vol.LowWindowScale
	}
	return e.clamp(int(math.Round(w)))
}

func (e *Extractor) clamp(w int) int {
	if w < e.params.MinWindow {
		return e.params.MinWindow
	}
	if w > e.params.MaxWindow {
		return e.params.MaxWindow
	}
	return w
}

// Extract returns index-ascending peaks and troughs. When req is not met the
// window shrinks one bar at a time down to MinWindow; the last attempt is
// returned along with the window it used.
func (e *Extractor) Extract(candles []models.Candle, req Requirement) (peaks, troughs []TurningPoint, window int) {
	window = e.BaseWindow(candles)
	for {
		peaks, troughs = e.extract(candles, window)
		if req.Met(len(peaks), len(troughs)) || window <= e.params.MinWindow {
			return peaks, troughs, window
		}
		window--
	}
}

// extract runs one pass with a fixed window.
func (e *Extractor) extract(candles []models.Candle, w int) (peaks, troughs []TurningPoint) {
	n := len(candles)
	for i := w; i < n-w; i++ {
		c := candles[i]
		if !c.Valid() {
			continue
		}

		isPeak, isTrough := true, true
		var midSum float64
		mids := 0
		for j := i - w; j <= i+w; j++ {
			o := candles[j]
			if !o.Valid() {
				continue
			}
			midSum += o.MidPrice()
			mids++
			if o.High > c.High {
				isPeak = false
			}
			if o.Low < c.Low {
				isTrough = false
			}
		}
		if mids == 0 {
			continue
		}
		localMean := midSum / float64(mids)
		if localMean <= 0 {
			continue
		}

		if isPeak {
			sig := math.Abs(c.High-localMean) / localMean
			if sig > e.params.MinSignificance {
				peaks = addPoint(peaks, newTurningPoint(c, i, RolePeak, sig), w)
			}
		}
		if isTrough {
			sig := math.Abs(c.Low-localMean) / localMean
			if sig > e.params.MinSignificance {
				troughs = addPoint(troughs, newTurningPoint(c, i, RoleTrough, sig), w)
			}
		}
	}
	return peaks, troughs
}

func newTurningPoint(c models.Candle, i int, role Role, sig float64) TurningPoint {
	price := c.High
	if role == RoleTrough {
		price = c.Low
	}
	return TurningPoint{
		Index:        i,
		Role:         role,
		Price:        price,
		Volume:       c.Volume,
		Significance: sig,
		Timestamp:    c.Timestamp,
	}
}

// addPoint appends tp unless it sits on the same plateau as the previous
// point, in which case the more extreme of the two is kept.
func addPoint(points []TurningPoint, tp TurningPoint, w int) []TurningPoint {
	if len(points) == 0 {
		return append(points, tp)
	}
	last := &points[len(points)-1]
	if tp.Index-last.Index > w {
		return append(points, tp)
	}
	if moreExtreme(tp, *last) {
		*last = tp
	}
	return points
}

func moreExtreme(a, b TurningPoint) bool {
	if a.Role == RolePeak {
		return a.Price > b.Price
	}
	return a.Price < b.Price
}
