package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/scoring"
)

// validateTriple checks three same-role points separated by two intermediate
// reversals. The flat neckline sits at the reversal nearest the extremes.
func (ev *evaluation) validateTriple(c candidate) (analysis.PatternResult, string) {
	p1, p2, p3 := c.points[0], c.points[1], c.points[2]

	m1, ok := intermediateExtreme(ev.candles, p1.Index, p2.Index, ev.bearish)
	if !ok {
		return analysis.PatternResult{}, rejectIntermediate
	}
	m2, ok := intermediateExtreme(ev.candles, p2.Index, p3.Index, ev.bearish)
	if !ok {
		return analysis.PatternResult{}, rejectIntermediate
	}
	vertices := []vertex{
		{p1.Index, p1.Price},
		m1,
		{p2.Index, p2.Price},
		m2,
		{p3.Index, p3.Price},
	}
	if reason := checkSpacing(vertices, ev.params.MinSpacing, ev.params.MaxSpan); reason != "" {
		return analysis.PatternResult{}, reason
	}

	t := ev.thresholdsAt(p3.Index)

	diff := spread(p1.Price, p2.Price, p3.Price)
	if diff > t.tolerance {
		return analysis.PatternResult{}, rejectSimilarity
	}

	d1 := reversalDepth(mean(p1.Price, p2.Price), m1.price, ev.bearish)
	d2 := reversalDepth(mean(p2.Price, p3.Price), m2.price, ev.bearish)
	depth := math.Min(d1, d2)
	if depth < t.minReversal {
		return analysis.PatternResult{}, rejectReversal
	}

	// Tops take the higher valley, bottoms the lower peak.
	neckV := m1
	if outer(ev.bearish, m1.price, m2.price) != m1.price {
		neckV = m2
	}
	neck := analysis.FlatNeckline(neckV.price)

	bp := ev.findBreakout(neck, p3, outer(ev.bearish, p1.Price, p2.Price, p3.Price), t)
	if bp.Status == analysis.BreakoutNone {
		return analysis.PatternResult{}, rejectBreakout
	}

	return ev.finish(assembly{
		vertices: vertices,
		extremes: []float64{p1.Price, p2.Price, p3.Price},
		refIndex: neckV.index,
		neckline: neck,
		bp:       bp,
		sub: scoring.SubScores{
			Similarity: scoring.SimilarityScore(diff, t.tolerance),
			Depth:      scoring.DepthScore(depth, t.minReversal),
			Volume:     scoring.VolumeScore(volumes(c.points), bp.VolumeRatio),
			Trend:      ev.trendScore(p1, c.anchor, t.minReversal),
			Breakout:   scoring.BreakoutScore(bp),
		},
		metrics: map[string]float64{
			"levelDifference":   diff,
			"reversalDepth":     depth,
			"tolerance":         t.tolerance,
			"volatilityRatio":   t.ratio,
			"breakoutThreshold": t.breakout,
		},
	})
}
