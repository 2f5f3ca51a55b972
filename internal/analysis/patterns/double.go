package patterns

import (
	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/scoring"
)

// validateDouble checks a double top (two peaks around a valley) or a double
// bottom (two troughs around a peak).
func (ev *evaluation) validateDouble(c candidate) (analysis.PatternResult, string) {
	first, second := c.points[0], c.points[1]

	mid, ok := intermediateExtreme(ev.candles, first.Index, second.Index, ev.bearish)
	if !ok {
		return analysis.PatternResult{}, rejectIntermediate
	}
	vertices := []vertex{
		{first.Index, first.Price},
		mid,
		{second.Index, second.Price},
	}
	if reason := checkSpacing(vertices, ev.params.MinSpacing, ev.params.MaxSpan); reason != "" {
		return analysis.PatternResult{}, reason
	}

	t := ev.thresholdsAt(second.Index)

	diff := levelDiff(first.Price, second.Price)
	if diff > t.tolerance {
		return analysis.PatternResult{}, rejectSimilarity
	}

	depth := reversalDepth(mean(first.Price, second.Price), mid.price, ev.bearish)
	if depth < t.minReversal {
		return analysis.PatternResult{}, rejectReversal
	}

	neck := analysis.FlatNeckline(mid.price)
	bp := ev.findBreakout(neck, second, outer(ev.bearish, first.Price, second.Price), t)
	if bp.Status == analysis.BreakoutNone {
		return analysis.PatternResult{}, rejectBreakout
	}

	return ev.finish(assembly{
		vertices: vertices,
		extremes: []float64{first.Price, second.Price},
		refIndex: mid.index,
		neckline: neck,
		bp:       bp,
		sub: scoring.SubScores{
			Similarity: scoring.SimilarityScore(diff, t.tolerance),
			Depth:      scoring.DepthScore(depth, t.minReversal),
			Volume:     scoring.VolumeScore(volumes(c.points), bp.VolumeRatio),
			Trend:      ev.trendScore(first, c.anchor, t.minReversal),
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
