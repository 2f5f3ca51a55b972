package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/store"
)

func newImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a candle file into the local cache",
		Long: `Import a CSV or JSON candle file into the local candle cache.

Existing candles of the symbol with the same date are replaced. Invalid
rows are skipped.`,
		Example: `  patternscan import data/acme.csv
  patternscan import btc.json --symbol BTCUSD`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := args[0]
			symbol, _ := cmd.Flags().GetString("symbol")
			if symbol == "" {
				symbol = store.SymbolFromPath(path)
			}
			symbol = strings.ToUpper(symbol)

			candles, err := store.LoadFile(path)
			logging.LogLoad(app.Logger, path, symbol, len(candles), err)
			if err != nil {
				return errors.NewDataError(path, symbol, "load failed", err)
			}

			s, err := app.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			saved, err := s.SaveCandles(cmd.Context(), symbol, candles)
			if err != nil {
				return err
			}
			if saved == 0 {
				return errors.Wrapf(errors.ErrInvalidCandle, "%s has no valid candles", path)
			}
			skipped := len(candles) - saved
			app.Logger.Info().
				Str("symbol", symbol).
				Int("saved", saved).
				Int("skipped", skipped).
				Msg("Candles imported")

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":  symbol,
					"saved":   saved,
					"skipped": skipped,
				})
			}
			output.Success("✓ Imported %d candles for %s", saved, symbol)
			if skipped > 0 {
				output.Warning("Skipped %d invalid rows", skipped)
			}
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "", "symbol to store under (default: file name)")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <symbol>",
		Short: "Export cached candles as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := strings.ToUpper(args[0])
			out, _ := cmd.Flags().GetString("out")

			s, err := app.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			candles, err := s.Candles(cmd.Context(), symbol)
			if err != nil {
				return err
			}
			data, err := store.WriteCSV(candles)
			if err != nil {
				return err
			}

			if out == "" {
				_, err = output.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return errors.Wrap(err, "writing export")
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"symbol": symbol, "candles": len(candles), "path": out})
			}
			output.Success("✓ Wrote %d candles to %s", len(candles), out)
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "output file (default: stdout)")
	return cmd
}

func newSymbolsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "List cached symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			infos, err := s.ListSymbols(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if infos == nil {
					infos = []store.SymbolInfo{}
				}
				return output.JSON(infos)
			}
			if len(infos) == 0 {
				output.Info("No cached symbols. Use 'patternscan import <file>' to add some.")
				return nil
			}

			t := output.NewTable([]string{"Symbol", "Candles"}, 2)
			for _, info := range infos {
				t.AppendRow([]interface{}{info.Symbol, info.Candles})
			}
			t.Render()
			return nil
		},
	}
}
