package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
	"pattern-scanner/pkg/utils"
)

// Detection is one result as printed by detect and scan.
type Detection struct {
	Symbol  string                 `json:"symbol"`
	Result  analysis.PatternResult `json:"result"`
	Overlay *analysis.Overlay      `json:"overlay,omitempty"`
}

func newDetectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <pattern|all>",
		Short: "Detect a reversal pattern in one candle series",
		Long: `Detect a reversal pattern in one candle series.

Patterns: double_top (dt), double_bottom (db), triple_top (tt),
triple_bottom (tb), head_and_shoulders (hs),
inverse_head_and_shoulders (ihs), or all.`,
		Example: `  patternscan detect double_top --file data/acme.csv
  patternscan detect all --symbol ACME --json --overlay
  patternscan detect hs --symbol BTC --profile crypto`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			file, _ := cmd.Flags().GetString("file")
			symbol, _ := cmd.Flags().GetString("symbol")
			profile, _ := cmd.Flags().GetString("profile")
			withOverlay, _ := cmd.Flags().GetBool("overlay")

			types, err := parsePatternArg(args[0])
			if err != nil {
				return err
			}
			engine, err := app.engine(profile)
			if err != nil {
				return err
			}

			ctx := logging.WithLogger(cmd.Context(), app.Logger)
			candles, symbol, err := app.loadCandles(ctx, file, symbol)
			if err != nil {
				return err
			}

			detections := runDetections(ctx, engine, symbol, types, candles, withOverlay)
			if output.IsJSON() {
				if len(detections) == 1 {
					return output.JSON(detections[0])
				}
				return output.JSON(detections)
			}

			output.Bold("%s: %d candles (%s to %s)", symbol, len(candles), firstDate(candles), lastDate(candles))
			output.Println()
			for _, d := range detections {
				printResult(output, d.Result)
			}
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "CSV or JSON candle file")
	cmd.Flags().StringP("symbol", "s", "", "symbol (read from the candle cache unless --file is set)")
	cmd.Flags().String("profile", "", "volatility profile (see 'config show')")
	cmd.Flags().Bool("overlay", false, "include chart overlay segments in JSON output")

	return cmd
}

// parsePatternArg resolves a pattern name, alias, or "all".
func parsePatternArg(arg string) ([]analysis.PatternType, error) {
	if strings.EqualFold(arg, "all") {
		return analysis.AllPatternTypes(), nil
	}
	var types []analysis.PatternType
	for _, name := range strings.Split(arg, ",") {
		pt, ok := analysis.ParsePatternType(name)
		if !ok {
			return nil, errors.Wrapf(errors.ErrUnknownPattern, "%q", name)
		}
		types = append(types, pt)
	}
	return types, nil
}

// runDetections runs the detectors for types in order and logs each result
// with the logger carried by ctx.
func runDetections(ctx context.Context, engine *patterns.Engine, symbol string, types []analysis.PatternType, candles []models.Candle, withOverlay bool) []Detection {
	logger := logging.FromContext(ctx)
	detections := make([]Detection, 0, len(types))
	for _, pt := range types {
		start := time.Now()
		// pt comes from ParsePatternType so Detect cannot fail.
		r, _ := engine.Detect(ctx, pt, candles)
		logging.LogDetection(logger, symbol, r, time.Since(start))

		d := Detection{Symbol: symbol, Result: r}
		if withOverlay {
			d.Overlay = analysis.BuildOverlay(r)
		}
		detections = append(detections, d)
	}
	return detections
}

func printResult(output *Output, r analysis.PatternResult) {
	if !r.Detected {
		output.Dim("%s: not detected (%s)", r.PatternType.Title(), r.Reason)
		return
	}

	title := r.PatternType.Title()
	if r.Forming {
		title += " (forming)"
	}
	if r.PatternType.Bearish() {
		output.Bearish("▼ %s  confidence %s", title, utils.FormatRatio(r.Confidence))
	} else {
		output.Bullish("▲ %s  confidence %s", title, utils.FormatRatio(r.Confidence))
	}

	output.Printf("  Neckline:        %s", utils.FormatPrice(r.NecklineLevel))
	if r.Neckline.Sloped {
		output.Printf(" (sloped %+.4f/bar)", r.Neckline.Slope)
	}
	output.Println()
	output.Printf("  Height:          %s\n", utils.FormatPrice(r.PatternHeight))
	output.Printf("  Target:          %s\n", utils.FormatPrice(r.PriceTarget))
	output.Printf("  Timespan:        %d days\n", r.TimespanDays)
	if b := r.Breakout; b != nil {
		output.Printf("  Breakout:        %s on %s at %s, volume %sx\n",
			b.Status, b.Date, utils.FormatPrice(b.Price), utils.FormatPrice(b.VolumeRatio))
	}

	t := output.NewTable([]string{"Point", "Date", "Price", "Volume"}, 3, 4)
	for _, name := range analysis.KeyPointNames(r.PatternType) {
		kp, ok := r.KeyPoints[name]
		if !ok {
			continue
		}
		t.AppendRow([]interface{}{name, kp.Date, utils.FormatPrice(kp.Price), utils.FormatVolume(kp.Volume)})
	}
	t.Render()
	output.Println()
}

func firstDate(candles []models.Candle) string {
	if len(candles) == 0 {
		return "-"
	}
	return candles[0].Date()
}

func lastDate(candles []models.Candle) string {
	if len(candles) == 0 {
		return "-"
	}
	return candles[len(candles)-1].Date()
}
