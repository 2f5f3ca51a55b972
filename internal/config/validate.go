package config

import (
	"fmt"
	"math"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/errors"
)

const weightSumTolerance = 1e-3

// Validate checks ranges and weight sums. The first problem found is
// returned as a *errors.ConfigError.
func (c *Config) Validate() error {
	if err := c.Detection.validate(); err != nil {
		return err
	}

	for name, p := range c.Patterns {
		if pt, ok := analysis.ParsePatternType(name); !ok || string(pt) != name {
			return errors.NewConfigError("patterns."+name, "unknown pattern type")
		}
		if err := validatePattern("patterns."+name, p); err != nil {
			return err
		}
	}

	for name, p := range c.Profiles {
		key := "profiles." + name
		if p.LowVolatility < 0 || p.HighVolatility < 0 {
			return errors.NewConfigError(key, "volatility thresholds must be non-negative")
		}
		if p.LowVolatility > 0 && p.HighVolatility > 0 && p.LowVolatility >= p.HighVolatility {
			return errors.NewConfigError(key, "low_volatility must be below high_volatility")
		}
		if p.ToleranceScale < 0 || p.ReversalScale < 0 || p.BreakoutThreshold < 0 || p.WindowSize < 0 {
			return errors.NewConfigError(key, "overrides must be non-negative")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewConfigError("logging.level", fmt.Sprintf("invalid level %q (debug, info, warn, error)", c.Logging.Level))
	}
	if c.Store.BusyRetries < 0 {
		return errors.NewConfigError("store.busy_retries", "must be non-negative")
	}
	return nil
}

func (d DetectionConfig) validate() error {
	v := d.Volatility
	if v.Period < 1 {
		return errors.NewConfigError("detection.volatility.period", "must be at least 1")
	}
	if v.Low <= 0 || v.High <= v.Low {
		return errors.NewConfigError("detection.volatility", "require 0 < low < high")
	}
	for key, scale := range map[string]float64{
		"high_tolerance_scale": v.HighToleranceScale,
		"low_tolerance_scale":  v.LowToleranceScale,
		"high_reversal_scale":  v.HighReversalScale,
		"low_reversal_scale":   v.LowReversalScale,
		"high_window_scale":    v.HighWindowScale,
		"low_window_scale":     v.LowWindowScale,
	} {
		if scale <= 0 {
			return errors.NewConfigError("detection.volatility."+key, "must be positive")
		}
	}

	b := d.Breakout
	if b.Window < 1 {
		return errors.NewConfigError("detection.breakout.window", "must be at least 1")
	}
	if !inOpenUnit(b.Threshold) || !inOpenUnit(b.HighThreshold) || !inOpenUnit(b.LowThreshold) {
		return errors.NewConfigError("detection.breakout", "thresholds must be in (0, 1)")
	}
	if b.FormingProgress <= 0 || b.FormingProgress > 1 {
		return errors.NewConfigError("detection.breakout.forming_progress", "must be in (0, 1]")
	}
	if b.VolumeLookback < 1 {
		return errors.NewConfigError("detection.breakout.volume_lookback", "must be at least 1")
	}

	e := d.Extractor
	if e.MinWindow < 1 || e.MaxWindow < e.MinWindow {
		return errors.NewConfigError("detection.extractor", "require 1 <= min_window <= max_window")
	}
	if e.WindowSize < 0 || e.MinSignificance < 0 {
		return errors.NewConfigError("detection.extractor", "window_size and min_significance must be non-negative")
	}

	t := d.Trend
	if t.Lookback < 2 || t.Threshold <= 0 || t.StrengthCap <= 0 {
		return errors.NewConfigError("detection.trend", "require lookback >= 2 and positive threshold and strength_cap")
	}

	s := d.Search
	if s.MaxCandidates < 0 {
		return errors.NewConfigError("detection.search.max_candidates", "must be non-negative")
	}
	if s.HighConfidence <= 0 || s.HighConfidence > 1 {
		return errors.NewConfigError("detection.search.high_confidence", "must be in (0, 1]")
	}
	if s.Parallelism < 1 || s.ChunkSize < 1 {
		return errors.NewConfigError("detection.search", "parallelism and chunk_size must be at least 1")
	}
	return nil
}

func validatePattern(key string, p patterns.PatternParams) error {
	if p.MinBars < 3 {
		return errors.NewConfigError(key+".min_bars", "must be at least 3")
	}
	if !inOpenUnit(p.Tolerance) {
		return errors.NewConfigError(key+".tolerance", "must be in (0, 1)")
	}
	if p.MinReversal < 0 || p.MinReversal >= 1 {
		return errors.NewConfigError(key+".min_reversal", "must be in [0, 1)")
	}
	if p.HeadMargin < 0 {
		return errors.NewConfigError(key+".head_margin", "must be non-negative")
	}
	if p.MinSpacing < 1 || p.MaxSpan < 0 {
		return errors.NewConfigError(key, "min_spacing must be at least 1 and max_span non-negative")
	}

	w := p.Weights
	for _, x := range []float64{w.Similarity, w.Depth, w.Volume, w.Trend, w.Breakout} {
		if x < 0 || math.IsNaN(x) {
			return errors.NewConfigError(key+".weights", "weights must be non-negative")
		}
	}
	if math.Abs(w.Sum()-1) > weightSumTolerance {
		return errors.NewConfigError(key+".weights", fmt.Sprintf("weights sum to %.3f, want 1", w.Sum()))
	}
	return nil
}

func inOpenUnit(x float64) bool {
	return x > 0 && x < 1
}
