package cli

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/store"
	"pattern-scanner/pkg/utils"
)

// ScanError records a symbol that could not be scanned.
type ScanError struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// ScanReport is the JSON output of scan.
type ScanReport struct {
	RunID      string      `json:"runId"`
	Symbols    int         `json:"symbols"`
	Elapsed    string      `json:"elapsed"`
	Detections []Detection `json:"detections"`
	Errors     []ScanError `json:"errors,omitempty"`
}

// scanJob is one series to scan.
type scanJob struct {
	symbol string
	source store.CandleSource
	label  string
}

// scanSlot holds the outcome of one job; each goroutine writes only its own.
type scanSlot struct {
	detections []Detection
	err        error
}

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan many symbols for reversal patterns",
		Long: `Scan many candle series concurrently and list the detected patterns
ordered by confidence.

Series come from the candle cache (--symbols), from every CSV and JSON
file in a directory (--dir), or from explicit files (--files).`,
		Example: `  patternscan scan --symbols ACME,BETA
  patternscan scan --dir data --patterns dt,db --min-confidence 0.6
  patternscan scan --files a.csv,b.json --concurrency 8 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbols, _ := cmd.Flags().GetStringSlice("symbols")
			dir, _ := cmd.Flags().GetString("dir")
			files, _ := cmd.Flags().GetStringSlice("files")
			patternArg, _ := cmd.Flags().GetString("patterns")
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
			profile, _ := cmd.Flags().GetString("profile")

			types, err := parsePatternArg(patternArg)
			if err != nil {
				return err
			}
			if concurrency < 1 {
				return errors.NewValidationError("concurrency", concurrency, "must be at least 1")
			}
			engine, err := app.engine(profile)
			if err != nil {
				return err
			}

			jobs, closeFn, err := app.scanJobs(symbols, dir, files)
			if err != nil {
				return err
			}
			defer closeFn()

			runID := uuid.NewString()
			logger := logging.WithRunID(app.Logger, runID)
			logger.Info().
				Int("symbols", len(jobs)).
				Int("concurrency", concurrency).
				Str("patterns", patternArg).
				Msg("Scan started")

			start := time.Now()
			slots, err := runScan(logging.WithLogger(cmd.Context(), logger), engine, jobs, types, concurrency)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			report := ScanReport{RunID: runID, Symbols: len(jobs), Elapsed: elapsed.Round(time.Millisecond).String()}
			for i, slot := range slots {
				if slot.err != nil {
					report.Errors = append(report.Errors, ScanError{Symbol: jobs[i].symbol, Error: slot.err.Error()})
					continue
				}
				for _, d := range slot.detections {
					if d.Result.Detected && d.Result.Confidence >= minConfidence {
						report.Detections = append(report.Detections, d)
					}
				}
			}
			sortDetections(report.Detections)

			logger.Info().
				Int("detections", len(report.Detections)).
				Int("errors", len(report.Errors)).
				Dur("elapsed", elapsed).
				Msg("Scan finished")

			if output.IsJSON() {
				if err := output.JSON(report); err != nil {
					return err
				}
			} else {
				printScan(output, report)
			}

			if len(jobs) > 0 && len(report.Errors) == len(jobs) {
				return errors.Wrap(errors.ErrDataNotFound, "no symbol could be scanned")
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("symbols", nil, "symbols from the candle cache")
	cmd.Flags().String("dir", "", "directory of CSV/JSON candle files")
	cmd.Flags().StringSlice("files", nil, "CSV/JSON candle files")
	cmd.Flags().String("patterns", "all", "comma-separated patterns or aliases")
	cmd.Flags().IntP("concurrency", "c", 4, "number of symbols scanned in parallel")
	cmd.Flags().Float64("min-confidence", 0, "hide detections below this confidence")
	cmd.Flags().String("profile", "", "volatility profile (see 'config show')")

	return cmd
}

// scanJobs builds the job list from the input flags. The returned function
// releases the candle cache when it was opened.
func (app *App) scanJobs(symbols []string, dir string, files []string) ([]scanJob, func(), error) {
	noop := func() {}

	if dir != "" {
		for _, pattern := range []string{"*.csv", "*.json"} {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				return nil, noop, errors.Wrap(err, "listing directory")
			}
			files = append(files, matches...)
		}
		sort.Strings(files)
	}

	var jobs []scanJob
	for _, f := range files {
		jobs = append(jobs, scanJob{symbol: store.SymbolFromPath(f), source: store.FileSource{Path: f}, label: f})
	}

	if len(symbols) > 0 {
		s, err := app.openStore()
		if err != nil {
			return nil, noop, err
		}
		for _, sym := range symbols {
			sym = strings.ToUpper(strings.TrimSpace(sym))
			if sym == "" {
				continue
			}
			jobs = append(jobs, scanJob{symbol: sym, source: s, label: "sqlite"})
		}
		noop = func() { s.Close() }
	}

	if len(jobs) == 0 {
		return nil, noop, errors.NewValidationError("symbols", "", "one of --symbols, --dir or --files is required")
	}
	return jobs, noop, nil
}

// runScan fans the jobs out over at most concurrency goroutines. Load
// failures are recorded per slot; only cancellation aborts the run.
func runScan(ctx context.Context, engine *patterns.Engine, jobs []scanJob, types []analysis.PatternType, concurrency int) ([]scanSlot, error) {
	logger := logging.FromContext(ctx)
	slots := make([]scanSlot, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			symLogger := logging.WithSymbol(logger, job.symbol)
			candles, err := job.source.Candles(ctx, job.symbol)
			logging.LogLoad(symLogger, job.label, job.symbol, len(candles), err)
			if err != nil {
				slots[i].err = err
				return nil
			}
			slots[i].detections = runDetections(logging.WithLogger(ctx, symLogger), engine, job.symbol, types, candles, false)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}

// sortDetections orders by confidence, then symbol, then pattern.
func sortDetections(ds []Detection) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Result.Confidence != b.Result.Confidence {
			return a.Result.Confidence > b.Result.Confidence
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Result.PatternType < b.Result.PatternType
	})
}

func printScan(output *Output, report ScanReport) {
	output.Bold("Scanned %d symbols in %s", report.Symbols, report.Elapsed)
	output.Dim("Run %s", report.RunID)
	output.Println()

	if len(report.Detections) == 0 {
		output.Info("No patterns detected")
	} else {
		t := output.NewTable([]string{"Symbol", "Pattern", "Confidence", "Neckline", "Target", "Breakout", "Span"}, 3, 4, 5, 7)
		for _, d := range report.Detections {
			r := d.Result
			breakout := "-"
			if r.Breakout != nil {
				breakout = string(r.Breakout.Status) + " " + r.Breakout.Date
			}
			pattern := r.PatternType.Title()
			if r.PatternType.Bearish() {
				pattern = output.Red(pattern)
			} else {
				pattern = output.Green(pattern)
			}
			t.AppendRow([]interface{}{
				d.Symbol,
				pattern,
				utils.FormatRatio(r.Confidence),
				utils.FormatPrice(r.NecklineLevel),
				utils.FormatPrice(r.PriceTarget),
				breakout,
				r.TimespanDays,
			})
		}
		t.Render()
	}

	for _, e := range report.Errors {
		output.Warning("%s: %s", e.Symbol, e.Error)
	}
}
