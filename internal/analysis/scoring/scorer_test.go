package scoring

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/indicators"
)

func TestDefaultWeightsSumToOne(t *testing.T) {
	for _, pt := range analysis.AllPatternTypes() {
		if sum := DefaultWeights(pt).Sum(); math.Abs(sum-1) > 1e-9 {
			t.Errorf("%s weights sum to %v", pt, sum)
		}
	}
}

func TestScore(t *testing.T) {
	w := DefaultWeights(analysis.DoubleTop)
	s := SubScores{Similarity: 1, Depth: 1, Volume: 1, Trend: 1, Breakout: 1}
	if got := Score(s, w); got != 1 {
		t.Errorf("perfect sub-scores: got %v, want 1", got)
	}

	s = SubScores{Similarity: 0.88, Depth: 0.9, Volume: 0.8, Trend: 1, Breakout: 0.8}
	want := 0.25*0.88 + 0.2*0.9 + 0.15*0.8 + 0.2*1 + 0.2*0.8
	if got := Score(s, w); math.Abs(got-math.Round(want*100)/100) > 1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScore_NaNBecomesNeutral(t *testing.T) {
	w := Weights{Similarity: 1}
	if got := Score(SubScores{Similarity: math.NaN()}, w); got != Neutral {
		t.Errorf("NaN sub-score: got %v, want %v", got, Neutral)
	}
	if got := Score(SubScores{Similarity: math.Inf(1)}, w); got != Neutral {
		t.Errorf("Inf sub-score: got %v, want %v", got, Neutral)
	}
}

func TestScore_ZeroWeights(t *testing.T) {
	if got := Score(SubScores{Similarity: 1}, Weights{}); got != Neutral {
		t.Errorf("zero weights: got %v, want %v", got, Neutral)
	}
}

func TestScore_NormalizesWeights(t *testing.T) {
	s := SubScores{Similarity: 0.6, Depth: 0.6, Volume: 0.6, Trend: 0.6, Breakout: 0.6}
	w := Weights{Similarity: 2, Depth: 2, Volume: 2, Trend: 2, Breakout: 2}
	if got := Score(s, w); got != 0.6 {
		t.Errorf("got %v, want 0.6", got)
	}
}

func TestFormingBand(t *testing.T) {
	tests := map[float64]float64{0.1: 0.30, 0.42: 0.42, 0.9: 0.55}
	for in, want := range tests {
		if got := FormingBand(in); got != want {
			t.Errorf("FormingBand(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestBreakoutScoreOrdering(t *testing.T) {
	confirmed := BreakoutScore(analysis.BreakoutPoint{Status: analysis.BreakoutConfirmed, VolumeRatio: 1})
	loud := BreakoutScore(analysis.BreakoutPoint{Status: analysis.BreakoutConfirmed, VolumeRatio: 5})
	partial := BreakoutScore(analysis.BreakoutPoint{Status: analysis.BreakoutPartial})
	forming := BreakoutScore(analysis.BreakoutPoint{Status: analysis.BreakoutForming})
	none := BreakoutScore(analysis.BreakoutPoint{Status: analysis.BreakoutNone})

	if !(loud > confirmed && confirmed > partial && partial > forming && forming > none) {
		t.Errorf("unexpected ordering: %v %v %v %v %v", loud, confirmed, partial, forming, none)
	}
	if loud != 1 {
		t.Errorf("volume bonus should cap at 1, got %v", loud)
	}
}

func TestVolumeScore(t *testing.T) {
	if got := VolumeScore([]int64{0, 0}, 1); got != Neutral {
		t.Errorf("zero volumes: got %v", got)
	}
	if got := VolumeScore([]int64{300, 200, 100}, 1.5); math.Abs(got-1) > 1e-9 {
		t.Errorf("fading volume with expansion: got %v, want 1", got)
	}
	if got := VolumeScore([]int64{100, 200}, 1); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("rising volume: got %v, want 0.3", got)
	}
}

func TestTrendScore(t *testing.T) {
	up := indicators.TrendResult{Direction: indicators.TrendUp, Strength: 1, Sufficient: true}
	down := indicators.TrendResult{Direction: indicators.TrendDown, Strength: 1, Sufficient: true}
	flat := indicators.TrendResult{Direction: indicators.TrendSideways, Sufficient: true}

	if got := TrendScore(up, true); got != 1 {
		t.Errorf("uptrend into top: got %v", got)
	}
	if got := TrendScore(down, false); got != 1 {
		t.Errorf("downtrend into bottom: got %v", got)
	}
	if got := TrendScore(flat, true); got != 0.4 {
		t.Errorf("sideways: got %v", got)
	}
	if got := TrendScore(down, true); got >= 0.4 {
		t.Errorf("counter trend should score below sideways, got %v", got)
	}
	if got := TrendScore(indicators.TrendResult{}, true); got != Neutral {
		t.Errorf("insufficient: got %v", got)
	}
}

// Property: the composite confidence always lies in [0, 1] with at most two
// decimals, whatever the sub-scores and weights.
func TestProperty_ScoreBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	subGen := gen.Float64Range(-2, 3)
	weightGen := gen.Float64Range(0, 1)

	properties.Property("score within [0,1]", prop.ForAll(
		func(a, b, c, d, e, w1, w2, w3 float64) bool {
			s := SubScores{Similarity: a, Depth: b, Volume: c, Trend: d, Breakout: e}
			w := Weights{Similarity: w1, Depth: w2, Volume: w3, Trend: w1, Breakout: w2}
			got := Score(s, w)
			return got >= 0 && got <= 1 && math.Abs(got*100-math.Round(got*100)) < 1e-6
		},
		subGen, subGen, subGen, subGen, subGen, weightGen, weightGen, weightGen,
	))

	properties.TestingRun(t)
}
