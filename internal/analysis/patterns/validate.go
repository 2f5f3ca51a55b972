package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/breakout"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/analysis/scoring"
	"pattern-scanner/internal/models"
)

// Rejection reasons, tallied per search.
const (
	rejectIntermediate = "no intermediate extreme"
	rejectSpacing      = "spacing"
	rejectSpan         = "span"
	rejectSimilarity   = "level similarity"
	rejectReversal     = "intermediate reversal"
	rejectHead         = "head dominance"
	rejectBreakout     = "no breakout"
	rejectHeight       = "non-positive height"
)

// candidate is an ordered tuple of same-role turning points plus the nearest
// opposite-role point before the first of them.
type candidate struct {
	points []TurningPoint
	anchor *TurningPoint
}

// evaluation is the read-only state shared by every candidate of one search.
type evaluation struct {
	pt      analysis.PatternType
	bearish bool
	candles []models.Candle
	cfg     Config
	params  PatternParams
	trend   indicators.TrendAnalyzer
}

// vertex is a chronological pattern point before it gets its key name.
type vertex struct {
	index int
	price float64
}

// assembly carries a validated candidate into result construction.
type assembly struct {
	vertices []vertex
	// extremes are averaged for the pattern height.
	extremes []float64
	refIndex int
	neckline analysis.Neckline
	bp       analysis.BreakoutPoint
	sub      scoring.SubScores
	metrics  map[string]float64
}

// LevelsWithin reports whether a and b differ by at most tol as a fraction of
// the larger. The boundary is inclusive.
func LevelsWithin(a, b, tol float64) bool {
	return levelDiff(a, b) <= tol
}

func levelDiff(a, b float64) float64 {
	m := math.Max(a, b)
	if m <= 0 {
		return math.Inf(1)
	}
	return math.Abs(a-b) / m
}

// spread is the relative distance between the highest and lowest level.
func spread(levels ...float64) float64 {
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, l := range levels {
		hi = math.Max(hi, l)
		lo = math.Min(lo, l)
	}
	return levelDiff(hi, lo)
}

// outer returns the level furthest in the pattern's extreme direction: the
// highest for tops, the lowest for bottoms.
func outer(bearish bool, levels ...float64) float64 {
	v := levels[0]
	for _, l := range levels[1:] {
		if (bearish && l > v) || (!bearish && l < v) {
			v = l
		}
	}
	return v
}

// reversalDepth is the move from level to the intermediate extreme mid as a
// fraction of level, positive when mid lies on the reversal side.
func reversalDepth(level, mid float64, bearish bool) float64 {
	if level <= 0 {
		return 0
	}
	if bearish {
		return (level - mid) / level
	}
	return (mid - level) / level
}

func mean(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// intermediateExtreme finds the lowest low (lows=true) or highest high
// strictly between from and to. Ties keep the earliest bar.
func intermediateExtreme(candles []models.Candle, from, to int, lows bool) (vertex, bool) {
	best := vertex{index: -1}
	for i := from + 1; i < to; i++ {
		c := candles[i]
		if !c.Valid() {
			continue
		}
		if lows {
			if best.index < 0 || c.Low < best.price {
				best = vertex{index: i, price: c.Low}
			}
		} else if best.index < 0 || c.High > best.price {
			best = vertex{index: i, price: c.High}
		}
	}
	return best, best.index >= 0
}

// checkSpacing verifies consecutive gaps and the total span.
func checkSpacing(vertices []vertex, minSpacing, maxSpan int) string {
	for i := 1; i < len(vertices); i++ {
		if vertices[i].index-vertices[i-1].index < minSpacing {
			return rejectSpacing
		}
	}
	if maxSpan > 0 && vertices[len(vertices)-1].index-vertices[0].index > maxSpan {
		return rejectSpan
	}
	return ""
}

// thresholdsAt adapts the pattern thresholds to volatility ending at index i.
func (ev *evaluation) thresholdsAt(i int) thresholds {
	ratio := indicators.VolatilityRatio(ev.candles, ev.cfg.Volatility.Period, i)
	return ev.cfg.adjust(ev.params, ratio)
}

// findBreakout searches past the last pattern point.
func (ev *evaluation) findBreakout(neck analysis.Neckline, last TurningPoint, extreme float64, t thresholds) analysis.BreakoutPoint {
	setup := breakout.Setup{
		Bearish:     ev.bearish,
		Neckline:    neck,
		LastIndex:   last.Index,
		Extreme:     extreme,
		LastExtreme: last.Price,
	}
	return breakout.Detect(ev.candles, setup, ev.cfg.breakoutParams(ev.params, t))
}

// trendScore combines the regression trend into the first point with the
// move from the anchor, keeping the stronger of the two.
func (ev *evaluation) trendScore(first TurningPoint, anchor *TurningPoint, minReversal float64) float64 {
	tr := ev.trend.Analyze(ev.candles, first.Index)
	score := scoring.TrendScore(tr, ev.bearish)
	if anchor != nil && anchor.Price > 0 {
		move := (first.Price - anchor.Price) / anchor.Price
		if !ev.bearish {
			move = -move
		}
		score = math.Max(score, scoring.PriorMoveScore(move, minReversal))
	}
	return score
}

func volumes(points []TurningPoint) []int64 {
	out := make([]int64, len(points))
	for i, p := range points {
		out[i] = p.Volume
	}
	return out
}

// finish derives metrics, names the key points and scores the candidate.
func (ev *evaluation) finish(a assembly) (analysis.PatternResult, string) {
	avg := mean(a.extremes...)
	height := avg - a.neckline.At(a.refIndex)
	if !ev.bearish {
		height = -height
	}
	if height <= 0 || math.IsNaN(height) {
		return analysis.PatternResult{}, rejectHeight
	}

	level := a.neckline.At(a.bp.Index)
	target := level - height
	if !ev.bearish {
		target = level + height
	}

	names := analysis.KeyPointNames(ev.pt)
	keyPoints := make(map[string]analysis.KeyPoint, len(names))
	for i, v := range a.vertices {
		keyPoints[names[i]] = analysis.NewKeyPoint(ev.candles, v.index, v.price)
	}
	keyPoints[names[len(names)-1]] = a.bp.KeyPoint()

	confidence := scoring.Score(a.sub, ev.params.Weights)
	forming := a.bp.Status == analysis.BreakoutForming
	if forming {
		confidence = scoring.FormingBand(confidence)
	}

	metrics := a.sub.Map()
	for k, v := range a.metrics {
		metrics[k] = v
	}
	metrics["volumeRatio"] = a.bp.VolumeRatio
	metrics["penetration"] = a.bp.Penetration

	first := ev.candles[a.vertices[0].index].Timestamp
	days := int(math.Round(ev.candles[a.bp.Index].Timestamp.Sub(first).Hours() / 24))

	bp := a.bp
	return analysis.PatternResult{
		Detected:      true,
		PatternType:   ev.pt,
		Confidence:    confidence,
		KeyPoints:     keyPoints,
		Neckline:      a.neckline,
		NecklineLevel: level,
		PriceTarget:   target,
		PatternHeight: height,
		TimespanDays:  days,
		Breakout:      &bp,
		Forming:       forming,
		Metrics:       metrics,
	}, ""
}
