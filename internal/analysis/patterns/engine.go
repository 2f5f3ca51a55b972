package patterns

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/indicators"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
	"pattern-scanner/internal/performance"
)

const (
	reasonInsufficientPoints = "insufficient points"
	reasonNoPattern          = "no valid pattern found"
	reasonCancelled          = "search cancelled"
)

// patternSpec binds a formation to its point roles and validator.
type patternSpec struct {
	pt       analysis.PatternType
	role     Role
	arity    int
	validate func(*evaluation, candidate) (analysis.PatternResult, string)
}

func (s patternSpec) requirement() Requirement {
	if s.role == RolePeak {
		return Requirement{Peaks: s.arity, Troughs: s.arity - 1}
	}
	return Requirement{Peaks: s.arity - 1, Troughs: s.arity}
}

var specs = map[analysis.PatternType]patternSpec{
	analysis.DoubleTop:               {analysis.DoubleTop, RolePeak, 2, (*evaluation).validateDouble},
	analysis.DoubleBottom:            {analysis.DoubleBottom, RoleTrough, 2, (*evaluation).validateDouble},
	analysis.TripleTop:               {analysis.TripleTop, RolePeak, 3, (*evaluation).validateTriple},
	analysis.TripleBottom:            {analysis.TripleBottom, RoleTrough, 3, (*evaluation).validateTriple},
	analysis.HeadAndShoulders:        {analysis.HeadAndShoulders, RolePeak, 3, (*evaluation).validateHeadAndShoulders},
	analysis.InverseHeadAndShoulders: {analysis.InverseHeadAndShoulders, RoleTrough, 3, (*evaluation).validateHeadAndShoulders},
}

// Engine runs the reversal pattern detectors against a candle series.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg       Config
	extractor *Extractor
	trend     indicators.TrendAnalyzer
	logger    zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for search diagnostics.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine for cfg.
func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:       cfg,
		extractor: NewExtractor(cfg),
		trend: indicators.TrendAnalyzer{
			Lookback:    cfg.Trend.Lookback,
			Threshold:   cfg.Trend.Threshold,
			StrengthCap: cfg.Trend.StrengthCap,
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Detect runs the detector for pt. The error is non-nil only for an unknown
// pattern type; data problems are reported through the result reason.
func (e *Engine) Detect(ctx context.Context, pt analysis.PatternType, candles []models.Candle) (analysis.PatternResult, error) {
	spec, ok := specs[pt]
	if !ok {
		return analysis.PatternResult{}, errors.Wrapf(errors.ErrUnknownPattern, "%q", pt)
	}
	return e.run(ctx, spec, candles), nil
}

// DetectAll runs every detector in AllPatternTypes order.
func (e *Engine) DetectAll(ctx context.Context, candles []models.Candle) []analysis.PatternResult {
	types := analysis.AllPatternTypes()
	results := make([]analysis.PatternResult, 0, len(types))
	for _, pt := range types {
		results = append(results, e.run(ctx, specs[pt], candles))
	}
	return results
}

// DetectDoubleTop finds the best double top.
func (e *Engine) DetectDoubleTop(ctx context.Context, candles []models.Candle) analysis.PatternResult {
	return e.run(ctx, specs[analysis.DoubleTop], candles)
}

// DetectDoubleBottom finds the best double bottom.
func (e *Engine) DetectDoubleBottom(ctx context.Context, candles []models.Candle) analysis.PatternResult {
	return e.run(ctx, specs[analysis.DoubleBottom], candles)
}

// DetectTripleTop finds the best triple top.
func (e *Engine) DetectTripleTop(ctx context.Context, candles []models.Candle) analysis.PatternResult {
	return e.run(ctx, specs[analysis.TripleTop], candles)
}

// DetectTripleBottom finds the best triple bottom.
func (e *Engine) DetectTripleBottom(ctx context.Context, candles []models.Candle) analysis.PatternResult {
	return e.run(ctx, specs[analysis.TripleBottom], candles)
}

// DetectHeadAndShoulders finds the best head-and-shoulders top.
func (e *Engine) DetectHeadAndShoulders(ctx context.Context, candles []models.Candle) analysis.PatternResult {
	return e.run(ctx, specs[analysis.HeadAndShoulders], candles)
}

// DetectInverseHeadAndShoulders finds the best inverse head-and-shoulders.
func (e *Engine) DetectInverseHeadAndShoulders(ctx context.Context, candles []models.Candle) analysis.PatternResult {
	return e.run(ctx, specs[analysis.InverseHeadAndShoulders], candles)
}

// Detector returns a single-pattern view of the engine.
func (e *Engine) Detector(pt analysis.PatternType) (analysis.Detector, error) {
	spec, ok := specs[pt]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownPattern, "%q", pt)
	}
	return patternDetector{engine: e, spec: spec}, nil
}

type patternDetector struct {
	engine *Engine
	spec   patternSpec
}

func (d patternDetector) Name() string {
	return string(d.spec.pt)
}

func (d patternDetector) Detect(ctx context.Context, candles []models.Candle) analysis.PatternResult {
	return d.engine.run(ctx, d.spec, candles)
}

// run extracts turning points, enumerates candidates and keeps the best.
func (e *Engine) run(ctx context.Context, spec patternSpec, candles []models.Candle) analysis.PatternResult {
	start := time.Now()
	params := e.cfg.Params(spec.pt)
	log := e.logger.With().Str("pattern", string(spec.pt)).Logger()

	valid := models.Series(candles).ValidCount()
	if valid < params.MinBars {
		return analysis.NotDetectedf(spec.pt, "insufficient data: need at least %d candles, got %d", params.MinBars, valid)
	}

	peaks, troughs, window := e.extractor.Extract(candles, spec.requirement())
	byRole := map[Role][]TurningPoint{RolePeak: peaks, RoleTrough: troughs}
	same, opposite := byRole[spec.role], byRole[spec.role.Opposite()]
	if len(same) < spec.arity || len(opposite) < spec.arity-1 {
		log.Debug().
			Int("peaks", len(peaks)).
			Int("troughs", len(troughs)).
			Int("window", window).
			Msg("Not enough turning points")
		return analysis.NotDetected(spec.pt, reasonInsufficientPoints)
	}

	cands := enumerate(same, opposite, spec.arity, params.MaxSpan, e.cfg.Search.MaxCandidates)
	ev := &evaluation{
		pt:      spec.pt,
		bearish: spec.pt.Bearish(),
		candles: candles,
		cfg:     e.cfg,
		params:  params,
		trend:   e.trend,
	}

	var out *searchOutcome
	if e.cfg.Search.Parallelism > 1 && len(cands) > 1 {
		out = e.searchParallel(ctx, ev, spec, cands)
	} else {
		out = e.searchSequential(ctx, ev, spec, cands)
	}

	event := log.Debug().
		Int("peaks", len(peaks)).
		Int("troughs", len(troughs)).
		Int("window", window).
		Int("candidates", len(cands)).
		Int("evaluated", out.evaluated).
		Bool("early_exit", out.early).
		Bool("cancelled", out.cancelled).
		Dur("elapsed", time.Since(start))
	if len(out.rejects) > 0 {
		dict := zerolog.Dict()
		for reason, n := range out.rejects {
			dict = dict.Int(reason, n)
		}
		event = event.Dict("rejected", dict)
	}
	event.Msg("Pattern search finished")

	switch {
	case out.best != nil:
		return *out.best
	case out.cancelled:
		return analysis.NotDetected(spec.pt, reasonCancelled)
	default:
		return analysis.NotDetected(spec.pt, reasonNoPattern)
	}
}

// enumerate lists same-role tuples grouped by first point, newest first
// point first and in index order within a group. Tuples wider than maxSpan
// are skipped and the listing stops at limit, so a cap drops the oldest.
func enumerate(same, opposite []TurningPoint, arity, maxSpan, limit int) []candidate {
	if limit <= 0 {
		limit = int(^uint(0) >> 1)
	}
	var out []candidate
	chosen := make([]int, 0, arity)

	var walk func(from int) bool
	walk = func(from int) bool {
		if len(chosen) == arity {
			points := make([]TurningPoint, arity)
			for k, idx := range chosen {
				points[k] = same[idx]
			}
			out = append(out, candidate{
				points: points,
				anchor: anchorBefore(opposite, points[0].Index),
			})
			return len(out) < limit
		}
		for i := from; i < len(same); i++ {
			if len(chosen) > 0 && maxSpan > 0 && same[i].Index-same[chosen[0]].Index > maxSpan {
				break
			}
			chosen = append(chosen, i)
			more := walk(i + 1)
			chosen = chosen[:len(chosen)-1]
			if !more {
				return false
			}
		}
		return true
	}
	for first := len(same) - 1; first >= 0; first-- {
		chosen = append(chosen[:0], first)
		if !walk(first + 1) {
			break
		}
	}
	return out
}

// anchorBefore returns the nearest point strictly before index, or nil.
func anchorBefore(points []TurningPoint, index int) *TurningPoint {
	i := sort.Search(len(points), func(k int) bool { return points[k].Index >= index })
	if i == 0 {
		return nil
	}
	a := points[i-1]
	return &a
}

// searchOutcome accumulates the selection over candidates in enumeration
// order: strictly higher confidence wins, so ties keep the earlier one.
type searchOutcome struct {
	best      *analysis.PatternResult
	evaluated int
	rejects   map[string]int
	cancelled bool
	early     bool
	high      float64
}

func newOutcome(high float64) *searchOutcome {
	return &searchOutcome{rejects: make(map[string]int), high: high}
}

// offer records one evaluation and reports whether the search can stop.
func (o *searchOutcome) offer(r analysis.PatternResult, reason string) bool {
	o.evaluated++
	if reason != "" {
		o.rejects[reason]++
		return false
	}
	if o.best == nil || r.Confidence > o.best.Confidence {
		best := r
		o.best = &best
	}
	if r.Confidence > o.high {
		o.early = true
		return true
	}
	return false
}

func (e *Engine) searchSequential(ctx context.Context, ev *evaluation, spec patternSpec, cands []candidate) *searchOutcome {
	out := newOutcome(e.cfg.Search.HighConfidence)
	for _, c := range cands {
		if ctx.Err() != nil {
			out.cancelled = true
			break
		}
		if out.offer(spec.validate(ev, c)) {
			break
		}
	}
	return out
}

// searchParallel evaluates candidates in chunks on a worker pool, one batch
// of chunks at a time, then applies the sequential selection rule to each
// batch in order. The outcome matches searchSequential.
func (e *Engine) searchParallel(ctx context.Context, ev *evaluation, spec patternSpec, cands []candidate) *searchOutcome {
	workers := e.cfg.Search.Parallelism
	chunk := e.cfg.Search.ChunkSize
	if chunk <= 0 {
		chunk = 64
	}

	pool := performance.NewWorkerPool(workers)
	pool.Start()
	defer pool.Stop()

	type slot struct {
		result analysis.PatternResult
		reason string
		done   bool
	}
	slots := make([]slot, len(cands))
	out := newOutcome(e.cfg.Search.HighConfidence)
	batch := chunk * workers

	for lo := 0; lo < len(cands); lo += batch {
		if ctx.Err() != nil {
			out.cancelled = true
			return out
		}
		hi := min(lo+batch, len(cands))

		var tasks []func()
		for from := lo; from < hi; from += chunk {
			from := from
			to := min(from+chunk, hi)
			tasks = append(tasks, func() {
				for k := from; k < to; k++ {
					if ctx.Err() != nil {
						return
					}
					r, reason := spec.validate(ev, cands[k])
					slots[k] = slot{result: r, reason: reason, done: true}
				}
			})
		}
		pool.Run(tasks)

		for k := lo; k < hi; k++ {
			if !slots[k].done {
				out.cancelled = true
				return out
			}
			if out.offer(slots[k].result, slots[k].reason) {
				return out
			}
		}
	}
	return out
}
