// Package cli provides the command-line interface for the pattern scanner.
package cli

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/config"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/logging"
	"pattern-scanner/internal/models"
	"pattern-scanner/internal/store"
)

// annotationSkipConfig marks commands that handle the config file
// themselves and must run even when it is invalid.
const annotationSkipConfig = "skip-config"

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies. Config and Logger are filled in
// by the root command before any subcommand runs.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	ConfigDir string
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "patternscan",
		Short: "Reversal chart pattern scanner",
		Long: `patternscan detects reversal chart patterns in daily OHLCV candles:
double tops and bottoms, triple tops and bottoms, and head-and-shoulders
in both orientations.

Candles are read from CSV or JSON files, or from the local candle cache
filled with 'patternscan import'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/pattern-scanner)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newDetectCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
	rootCmd.AddCommand(newSymbolsCmd(app))

	return rootCmd
}

// init loads the configuration and builds the logger.
func (app *App) init(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	app.ConfigDir = dir
	if cmd.Annotations[annotationSkipConfig] == "true" {
		return nil
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	app.Config = cfg

	logCfg := logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Out:        cmd.ErrOrStderr(),
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logCfg.Level = "debug"
	}
	app.Logger = logging.NewLoggerWithConfig(logCfg)
	app.Logger.Debug().Str("config_dir", dir).Msg("configuration loaded")
	return nil
}

// engine builds a detection engine for the named profile.
func (app *App) engine(profile string) (*patterns.Engine, error) {
	pc, err := app.Config.PatternConfig(profile)
	if err != nil {
		return nil, err
	}
	return patterns.NewEngine(pc, patterns.WithLogger(app.Logger)), nil
}

// openStore opens the candle cache configured in [store].
func (app *App) openStore() (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(app.Config.Store.Path, app.Config.Store.BusyRetries)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	return s, nil
}

// loadCandles reads candles from file when set, otherwise from the cache.
// It returns the symbol the candles belong to.
func (app *App) loadCandles(ctx context.Context, file, symbol string) ([]models.Candle, string, error) {
	var src store.CandleSource
	source := file
	if file != "" {
		if symbol == "" {
			symbol = store.SymbolFromPath(file)
		}
		src = store.FileSource{Path: file}
	} else {
		if symbol == "" {
			return nil, "", errors.NewValidationError("symbol", symbol, "either --file or --symbol is required")
		}
		s, err := app.openStore()
		if err != nil {
			return nil, "", err
		}
		defer s.Close()
		src = s
		source = "sqlite"
	}

	candles, err := src.Candles(ctx, symbol)
	logging.LogLoad(app.Logger, source, symbol, len(candles), err)
	if err != nil {
		return nil, symbol, err
	}
	return candles, symbol, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{annotationSkipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("patternscan v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}
