package cli

import (
	"github.com/spf13/cobra"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/config"
	"pattern-scanner/pkg/utils"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage the scanner configuration.",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			profile, _ := cmd.Flags().GetString("profile")
			asTOML, _ := cmd.Flags().GetBool("toml")

			pc, err := app.Config.PatternConfig(profile)
			if err != nil {
				return err
			}
			if asTOML {
				b, err := config.EncodeTOML(pc)
				if err != nil {
					return err
				}
				_, err = output.Write(b)
				return err
			}
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config, pc, profile)
		},
	}
	show.Flags().Bool("toml", false, "print the effective detection config as TOML")
	show.Flags().String("profile", "", "apply a volatility profile")
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration file path",
		Annotations: map[string]string{annotationSkipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := config.Path(app.ConfigDir)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := config.Load(app.ConfigDir); err != nil {
				if output.IsJSON() {
					output.JSON(map[string]interface{}{"valid": false, "error": err.Error()})
				} else {
					output.Error("Configuration validation failed: %v", err)
				}
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write the default config.toml",
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			force, _ := cmd.Flags().GetBool("force")
			if err := config.WriteTemplate(app.ConfigDir, force); err != nil {
				return err
			}
			path := config.Path(app.ConfigDir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Success("✓ Wrote %s", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing config file")
	cmd.AddCommand(initCmd)

	return cmd
}

func showConfig(output *Output, cfg *config.Config, pc patterns.Config, profile string) error {
	if profile != "" {
		output.Info("Profile: %s", profile)
		output.Println()
	}

	output.Bold("Detection")
	output.Printf("  Volatility:      period %d, low %s, high %s\n",
		pc.Volatility.Period, utils.FormatRatio(pc.Volatility.Low), utils.FormatRatio(pc.Volatility.High))
	output.Printf("  Breakout:        window %d, threshold %s\n",
		pc.Breakout.Window, utils.FormatRatio(pc.Breakout.Threshold))
	output.Printf("  Extractor:       window %d (0 = adaptive), %d-%d\n",
		pc.Extractor.WindowSize, pc.Extractor.MinWindow, pc.Extractor.MaxWindow)
	output.Printf("  Search:          %d candidates, parallelism %d\n",
		pc.Search.MaxCandidates, pc.Search.Parallelism)
	output.Println()

	output.Bold("Patterns")
	t := output.NewTable([]string{"Pattern", "Min Bars", "Tolerance", "Min Reversal", "Span"}, 2, 3, 4, 5)
	for _, pt := range analysis.AllPatternTypes() {
		p := pc.Params(pt)
		t.AppendRow([]interface{}{
			pt.Title(),
			p.MinBars,
			utils.FormatRatio(p.Tolerance),
			utils.FormatRatio(p.MinReversal),
			p.MaxSpan,
		})
	}
	t.Render()
	output.Println()

	output.Bold("Profiles")
	for _, name := range cfg.ProfileNames() {
		output.Printf("  %-16s %s\n", name, cfg.Profiles[name].Description)
	}
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %v (%s)\n", cfg.Logging.File, cfg.Logging.FilePath)
	output.Println()

	output.Bold("Store")
	output.Printf("  Path:            %s\n", cfg.Store.Path)

	return nil
}
