// Package scoring combines pattern sub-scores into a composite confidence.
package scoring

import (
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/pkg/utils"
)

// Neutral replaces sub-scores that cannot be computed.
const Neutral = 0.5

// Forming results are reported inside this confidence band.
const (
	FormingMin = 0.30
	FormingMax = 0.55
)

// SubScores are the per-aspect quality measures of one candidate, each in
// [0, 1].
type SubScores struct {
	Similarity float64
	Depth      float64
	Volume     float64
	Trend      float64
	Breakout   float64
}

// Map returns the sub-scores keyed by name for result metrics.
func (s SubScores) Map() map[string]float64 {
	return map[string]float64{
		"similarity": s.Similarity,
		"depth":      s.Depth,
		"volume":     s.Volume,
		"trend":      s.Trend,
		"breakout":   s.Breakout,
	}
}

// Weights defines the weight of each sub-score in the composite.
type Weights struct {
	Similarity float64 `toml:"similarity" mapstructure:"similarity"`
	Depth      float64 `toml:"depth" mapstructure:"depth"`
	Volume     float64 `toml:"volume" mapstructure:"volume"`
	Trend      float64 `toml:"trend" mapstructure:"trend"`
	Breakout   float64 `toml:"breakout" mapstructure:"breakout"`
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Similarity + w.Depth + w.Volume + w.Trend + w.Breakout
}

// DefaultWeights returns the weight table for a pattern type.
func DefaultWeights(pt analysis.PatternType) Weights {
	switch pt {
	case analysis.HeadAndShoulders:
		return Weights{Similarity: 0.25, Depth: 0.20, Volume: 0.15, Trend: 0.25, Breakout: 0.15}
	case analysis.InverseHeadAndShoulders:
		return Weights{Similarity: 0.20, Depth: 0.20, Volume: 0.15, Trend: 0.25, Breakout: 0.20}
	default:
		// Double and triple formations share one table.
		return Weights{Similarity: 0.25, Depth: 0.20, Volume: 0.15, Trend: 0.20, Breakout: 0.20}
	}
}

// Score returns the weighted composite, normalized by the weight sum,
// clamped to [0, 1] and rounded to two decimals.
func Score(s SubScores, w Weights) float64 {
	total := w.Sum()
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return Neutral
	}

	composite := sanitize(s.Similarity)*w.Similarity +
		sanitize(s.Depth)*w.Depth +
		sanitize(s.Volume)*w.Volume +
		sanitize(s.Trend)*w.Trend +
		sanitize(s.Breakout)*w.Breakout

	return utils.Round2(utils.Clamp01(composite / total))
}

// FormingBand maps a composite score into the forming confidence band.
func FormingBand(score float64) float64 {
	return utils.Round2(math.Max(FormingMin, math.Min(FormingMax, sanitize(score))))
}

// sanitize substitutes Neutral for NaN/Inf and clamps to [0, 1].
func sanitize(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Neutral
	}
	return utils.Clamp01(x)
}

// SimilarityScore rates how close two levels are given the tolerance used to
// accept them: 1 for identical levels, 0 at the tolerance edge.
func SimilarityScore(diff, tolerance float64) float64 {
	if tolerance <= 0 {
		return Neutral
	}
	return utils.Clamp01(1 - diff/tolerance)
}

// DepthScore rates a reversal depth against the minimum accepted depth. A
// depth twice the minimum saturates.
func DepthScore(depth, minReversal float64) float64 {
	if minReversal <= 0 {
		return Neutral
	}
	return utils.Clamp01(depth / (2 * minReversal))
}

// PriorMoveScore rates the move from the anchor point into the pattern.
func PriorMoveScore(move, minReversal float64) float64 {
	if move <= 0 {
		return 0
	}
	return DepthScore(move, minReversal)
}

// BreakoutScore rates the breakout status; confirmed breakouts earn up to
// 0.2 extra for above-average volume.
func BreakoutScore(bp analysis.BreakoutPoint) float64 {
	switch bp.Status {
	case analysis.BreakoutConfirmed:
		bonus := 0.0
		if bp.VolumeRatio > 1 && !math.IsInf(bp.VolumeRatio, 0) {
			bonus = math.Min((bp.VolumeRatio-1)*0.2, 0.2)
		}
		return 0.8 + bonus
	case analysis.BreakoutPartial:
		return 0.5
	case analysis.BreakoutForming:
		return 0.25
	}
	return 0
}

// VolumeScore rewards volume that fades across successive same-role points
// and expands on the breakout. All-zero volumes give Neutral.
func VolumeScore(volumes []int64, breakoutRatio float64) float64 {
	if len(volumes) < 2 {
		return Neutral
	}
	var total int64
	for _, v := range volumes {
		total += v
	}
	if total <= 0 {
		return Neutral
	}

	declining := 0
	for i := 1; i < len(volumes); i++ {
		if volumes[i] < volumes[i-1] {
			declining++
		}
	}
	score := 0.3 + 0.5*float64(declining)/float64(len(volumes)-1)
	if breakoutRatio >= 1.2 {
		score += 0.2
	}
	return utils.Clamp01(score)
}

// TrendScore rates how well the prior trend sets up a reversal: tops want a
// preceding uptrend, bottoms a preceding downtrend.
func TrendScore(t indicators.TrendResult, bearish bool) float64 {
	if !t.Sufficient {
		return Neutral
	}
	aligned := (bearish && t.Direction == indicators.TrendUp) ||
		(!bearish && t.Direction == indicators.TrendDown)

	switch {
	case aligned:
		return 0.5 + 0.5*t.Strength
	case t.Direction == indicators.TrendSideways:
		return 0.4
	default:
		return math.Max(0.1, 0.3-0.2*t.Strength)
	}
}
