package patterns

import (
	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/breakout"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/analysis/scoring"
)

// PatternParams holds the per-formation thresholds.
type PatternParams struct {
	MinBars int `toml:"min_bars" mapstructure:"min_bars"`
	// Tolerance is the accepted level difference between same-role points
	// (shoulders for the head-and-shoulders family).
	Tolerance float64 `toml:"tolerance" mapstructure:"tolerance"`
	// MinReversal is the minimum intermediate reversal depth.
	MinReversal float64 `toml:"min_reversal" mapstructure:"min_reversal"`
	// HeadMargin is how far the head must exceed both shoulders.
	HeadMargin   float64         `toml:"head_margin" mapstructure:"head_margin"`
	MinSpacing   int             `toml:"min_spacing" mapstructure:"min_spacing"`
	MaxSpan      int             `toml:"max_span" mapstructure:"max_span"`
	AllowForming bool            `toml:"allow_forming" mapstructure:"allow_forming"`
	Weights      scoring.Weights `toml:"weights" mapstructure:"weights"`
}

// VolatilityParams controls how thresholds adapt to the ATR ratio.
type VolatilityParams struct {
	Period int     `toml:"period" mapstructure:"period"`
	Low    float64 `toml:"low" mapstructure:"low"`
	High   float64 `toml:"high" mapstructure:"high"`

	HighToleranceScale float64 `toml:"high_tolerance_scale" mapstructure:"high_tolerance_scale"`
	LowToleranceScale  float64 `toml:"low_tolerance_scale" mapstructure:"low_tolerance_scale"`
	HighReversalScale  float64 `toml:"high_reversal_scale" mapstructure:"high_reversal_scale"`
	LowReversalScale   float64 `toml:"low_reversal_scale" mapstructure:"low_reversal_scale"`
	HighWindowScale    float64 `toml:"high_window_scale" mapstructure:"high_window_scale"`
	LowWindowScale     float64 `toml:"low_window_scale" mapstructure:"low_window_scale"`
}

// BreakoutParams controls the neckline break search.
type BreakoutParams struct {
	Window          int     `toml:"window" mapstructure:"window"`
	Threshold       float64 `toml:"threshold" mapstructure:"threshold"`
	HighThreshold   float64 `toml:"high_threshold" mapstructure:"high_threshold"`
	LowThreshold    float64 `toml:"low_threshold" mapstructure:"low_threshold"`
	FormingProgress float64 `toml:"forming_progress" mapstructure:"forming_progress"`
	VolumeLookback  int     `toml:"volume_lookback" mapstructure:"volume_lookback"`
}

// ExtractorParams controls turning-point extraction.
type ExtractorParams struct {
	// WindowSize overrides the adaptive window when positive.
	WindowSize      int     `toml:"window_size" mapstructure:"window_size"`
	MinWindow       int     `toml:"min_window" mapstructure:"min_window"`
	MaxWindow       int     `toml:"max_window" mapstructure:"max_window"`
	MinSignificance float64 `toml:"min_significance" mapstructure:"min_significance"`
}

// TrendParams configures the prior-trend analyzer.
type TrendParams struct {
	Lookback    int     `toml:"lookback" mapstructure:"lookback"`
	Threshold   float64 `toml:"threshold" mapstructure:"threshold"`
	StrengthCap float64 `toml:"strength_cap" mapstructure:"strength_cap"`
}

// SearchParams bounds the candidate search.
type SearchParams struct {
	MaxCandidates  int     `toml:"max_candidates" mapstructure:"max_candidates"`
	HighConfidence float64 `toml:"high_confidence" mapstructure:"high_confidence"`
	// Parallelism > 1 evaluates candidates on a worker pool.
	Parallelism int `toml:"parallelism" mapstructure:"parallelism"`
	ChunkSize   int `toml:"chunk_size" mapstructure:"chunk_size"`
}

// Config is the complete detection configuration. It is a plain value:
// build it once with NewConfig and hand copies to engines.
type Config struct {
	Volatility VolatilityParams `toml:"volatility" mapstructure:"volatility"`
	Breakout   BreakoutParams   `toml:"breakout" mapstructure:"breakout"`
	Extractor  ExtractorParams  `toml:"extractor" mapstructure:"extractor"`
	Trend      TrendParams      `toml:"trend" mapstructure:"trend"`
	Search     SearchParams     `toml:"search" mapstructure:"search"`

	DoubleTop               PatternParams `toml:"double_top" mapstructure:"double_top"`
	DoubleBottom            PatternParams `toml:"double_bottom" mapstructure:"double_bottom"`
	TripleTop               PatternParams `toml:"triple_top" mapstructure:"triple_top"`
	TripleBottom            PatternParams `toml:"triple_bottom" mapstructure:"triple_bottom"`
	HeadAndShoulders        PatternParams `toml:"head_and_shoulders" mapstructure:"head_and_shoulders"`
	InverseHeadAndShoulders PatternParams `toml:"inverse_head_and_shoulders" mapstructure:"inverse_head_and_shoulders"`
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	double := PatternParams{
		MinBars:      30,
		Tolerance:    0.08,
		MinReversal:  0.05,
		MinSpacing:   5,
		MaxSpan:      150,
		AllowForming: true,
	}
	triple := PatternParams{
		MinBars:      50,
		Tolerance:    0.06,
		MinReversal:  0.04,
		MinSpacing:   4,
		MaxSpan:      150,
		AllowForming: true,
	}
	hs := PatternParams{
		MinBars:      60,
		Tolerance:    0.15,
		MinReversal:  0.03,
		HeadMargin:   0.03,
		MinSpacing:   4,
		MaxSpan:      150,
		AllowForming: true,
	}

	cfg := Config{
		Volatility: VolatilityParams{
			Period:             indicators.DefaultATRPeriod,
			Low:                indicators.DefaultLowVolatility,
			High:               indicators.DefaultHighVolatility,
			HighToleranceScale: 1.5,
			LowToleranceScale:  0.8,
			HighReversalScale:  2.0,
			LowReversalScale:   0.8,
			HighWindowScale:    0.7,
			LowWindowScale:     1.3,
		},
		Breakout: BreakoutParams{
			Window:          breakout.DefaultWindow,
			Threshold:       breakout.DefaultThreshold,
			HighThreshold:   0.04,
			LowThreshold:    0.01,
			FormingProgress: breakout.DefaultFormingProgress,
			VolumeLookback:  breakout.DefaultVolumeLookback,
		},
		Extractor: ExtractorParams{
			MinWindow:       2,
			MaxWindow:       15,
			MinSignificance: 0.003,
		},
		Trend: TrendParams{
			Lookback:    indicators.DefaultTrendLookback,
			Threshold:   indicators.DefaultTrendThreshold,
			StrengthCap: indicators.DefaultTrendStrengthCap,
		},
		Search: SearchParams{
			MaxCandidates:  5000,
			HighConfidence: 0.85,
			Parallelism:    1,
			ChunkSize:      64,
		},
	}

	cfg.DoubleTop = double
	cfg.DoubleBottom = double
	cfg.TripleTop = triple
	cfg.TripleBottom = triple
	cfg.HeadAndShoulders = hs
	cfg.InverseHeadAndShoulders = hs
	cfg.InverseHeadAndShoulders.Tolerance = 0.25

	for _, pt := range analysis.AllPatternTypes() {
		p := cfg.Params(pt)
		p.Weights = scoring.DefaultWeights(pt)
		cfg.SetParams(pt, p)
	}
	return cfg
}

// Option modifies a Config under construction.
type Option func(*Config)

// NewConfig builds a Config from the defaults and opts.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithPatternParams replaces the parameters of one formation.
func WithPatternParams(pt analysis.PatternType, p PatternParams) Option {
	return func(c *Config) { c.SetParams(pt, p) }
}

// WithWindowSize fixes the turning-point window.
func WithWindowSize(n int) Option {
	return func(c *Config) { c.Extractor.WindowSize = n }
}

// WithParallelism sets the number of candidate workers.
func WithParallelism(n int) Option {
	return func(c *Config) { c.Search.Parallelism = n }
}

// WithVolatility replaces the volatility parameters.
func WithVolatility(v VolatilityParams) Option {
	return func(c *Config) { c.Volatility = v }
}

// WithBreakout replaces the breakout parameters.
func WithBreakout(b BreakoutParams) Option {
	return func(c *Config) { c.Breakout = b }
}

// WithSearch replaces the search bounds.
func WithSearch(s SearchParams) Option {
	return func(c *Config) { c.Search = s }
}

// Params returns the parameters of one formation.
func (c Config) Params(pt analysis.PatternType) PatternParams {
	switch pt {
	case analysis.DoubleTop:
		return c.DoubleTop
	case analysis.DoubleBottom:
		return c.DoubleBottom
	case analysis.TripleTop:
		return c.TripleTop
	case analysis.TripleBottom:
		return c.TripleBottom
	case analysis.HeadAndShoulders:
		return c.HeadAndShoulders
	case analysis.InverseHeadAndShoulders:
		return c.InverseHeadAndShoulders
	}
	return PatternParams{}
}

// SetParams replaces the parameters of one formation.
func (c *Config) SetParams(pt analysis.PatternType, p PatternParams) {
	switch pt {
	case analysis.DoubleTop:
		c.DoubleTop = p
	case analysis.DoubleBottom:
		c.DoubleBottom = p
	case analysis.TripleTop:
		c.TripleTop = p
	case analysis.TripleBottom:
		c.TripleBottom = p
	case analysis.HeadAndShoulders:
		c.HeadAndShoulders = p
	case analysis.InverseHeadAndShoulders:
		c.InverseHeadAndShoulders = p
	}
}

// thresholds are the volatility-adjusted limits applied to one candidate.
type thresholds struct {
	ratio       float64
	regime      indicators.VolatilityRegime
	tolerance   float64
	minReversal float64
	headMargin  float64
	breakout    float64
}

// adjust scales p's thresholds to the volatility ratio at the candidate.
func (c Config) adjust(p PatternParams, ratio float64) thresholds {
	t := thresholds{
		ratio:       ratio,
		regime:      indicators.Regime(ratio, c.Volatility.Low, c.Volatility.High),
		tolerance:   p.Tolerance,
		minReversal: p.MinReversal,
		headMargin:  p.HeadMargin,
		breakout:    c.Breakout.Threshold,
	}
	switch t.regime {
	case indicators.RegimeHigh:
		t.tolerance *= c.Volatility.HighToleranceScale
		t.minReversal *= c.Volatility.HighReversalScale
		t.headMargin *= c.Volatility.HighToleranceScale
		t.breakout = c.Breakout.HighThreshold
	case indicators.RegimeLow:
		t.tolerance *= c.Volatility.LowToleranceScale
		t.minReversal *= c.Volatility.LowReversalScale
		t.headMargin *= c.Volatility.LowToleranceScale
		t.breakout = c.Breakout.LowThreshold
	}
	return t
}

// breakoutParams assembles the breakout search for a candidate.
func (c Config) breakoutParams(p PatternParams, t thresholds) breakout.Params {
	return breakout.Params{
		Window:          c.Breakout.Window,
		Threshold:       t.breakout,
		Invalidation:    t.tolerance,
		AllowForming:    p.AllowForming,
		FormingProgress: c.Breakout.FormingProgress,
		VolumeLookback:  c.Breakout.VolumeLookback,
	}
}
