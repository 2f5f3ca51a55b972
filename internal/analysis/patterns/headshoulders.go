package patterns

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/scoring"
)

// validateHeadAndShoulders checks a head flanked by two shoulders. For the
// bearish form the points are peaks and the neckline runs through the two
// troughs beside the head; the inverse form mirrors it on troughs and peaks.
func (ev *evaluation) validateHeadAndShoulders(c candidate) (analysis.PatternResult, string) {
	left, head, right := c.points[0], c.points[1], c.points[2]

	leftNeck, ok := intermediateExtreme(ev.candles, left.Index, head.Index, ev.bearish)
	if !ok {
		return analysis.PatternResult{}, rejectIntermediate
	}
	rightNeck, ok := intermediateExtreme(ev.candles, head.Index, right.Index, ev.bearish)
	if !ok {
		return analysis.PatternResult{}, rejectIntermediate
	}
	vertices := []vertex{
		{left.Index, left.Price},
		leftNeck,
		{head.Index, head.Price},
		rightNeck,
		{right.Index, right.Price},
	}
	if reason := checkSpacing(vertices, ev.params.MinSpacing, ev.params.MaxSpan); reason != "" {
		return analysis.PatternResult{}, reason
	}

	t := ev.thresholdsAt(right.Index)

	// The head must clear the more extreme shoulder by the margin.
	shoulder := outer(ev.bearish, left.Price, right.Price)
	prominence := (head.Price - shoulder) / shoulder
	if !ev.bearish {
		prominence = -prominence
	}
	if prominence < t.headMargin {
		return analysis.PatternResult{}, rejectHead
	}

	diff := levelDiff(left.Price, right.Price)
	if diff > t.tolerance {
		return analysis.PatternResult{}, rejectSimilarity
	}

	leftDepth := reversalDepth(left.Price, leftNeck.price, ev.bearish)
	rightDepth := reversalDepth(right.Price, rightNeck.price, ev.bearish)
	depth := math.Min(leftDepth, rightDepth)
	if depth < t.minReversal {
		return analysis.PatternResult{}, rejectReversal
	}

	neck := analysis.LineThrough(leftNeck.index, leftNeck.price, rightNeck.index, rightNeck.price)
	bp := ev.findBreakout(neck, right, head.Price, t)
	if bp.Status == analysis.BreakoutNone {
		return analysis.PatternResult{}, rejectBreakout
	}

	depthScore := scoring.DepthScore(depth, t.minReversal)
	if t.headMargin > 0 {
		depthScore = mean(depthScore, scoring.DepthScore(prominence, t.headMargin))
	}

	return ev.finish(assembly{
		vertices: vertices,
		extremes: []float64{head.Price},
		refIndex: head.Index,
		neckline: neck,
		bp:       bp,
		sub: scoring.SubScores{
			Similarity: scoring.SimilarityScore(diff, t.tolerance),
			Depth:      depthScore,
			Volume:     scoring.VolumeScore(volumes(c.points), bp.VolumeRatio),
			Trend:      ev.trendScore(left, c.anchor, t.minReversal),
			Breakout:   scoring.BreakoutScore(bp),
		},
		metrics: map[string]float64{
			"shoulderDifference": diff,
			"headProminence":     prominence,
			"reversalDepth":      depth,
			"necklineSlope":      neck.Slope,
			"tolerance":          t.tolerance,
			"volatilityRatio":    t.ratio,
			"breakoutThreshold":  t.breakout,
		},
	})
}
