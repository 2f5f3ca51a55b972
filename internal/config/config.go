// Package config provides configuration management for the pattern scanner.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/analysis/patterns"
	"pattern-scanner/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g.
// PATTERNSCAN_DETECTION_SEARCH_PARALLELISM=4.
const EnvPrefix = "PATTERNSCAN"

// Config holds all application configuration.
type Config struct {
	Detection DetectionConfig                   `mapstructure:"detection"`
	Patterns  map[string]patterns.PatternParams `mapstructure:"patterns"`
	Profiles  map[string]Profile                `mapstructure:"profiles"`
	Logging   LoggingConfig                     `mapstructure:"logging"`
	Store     StoreConfig                       `mapstructure:"store"`
}

// DetectionConfig holds the engine-wide detection parameters.
type DetectionConfig struct {
	Volatility patterns.VolatilityParams `mapstructure:"volatility"`
	Breakout   patterns.BreakoutParams   `mapstructure:"breakout"`
	Extractor  patterns.ExtractorParams  `mapstructure:"extractor"`
	Trend      patterns.TrendParams      `mapstructure:"trend"`
	Search     patterns.SearchParams     `mapstructure:"search"`
}

// Profile overrides detection parameters for a class of instruments with
// similar volatility. Zero fields leave the base value untouched.
type Profile struct {
	Description       string  `mapstructure:"description"`
	LowVolatility     float64 `mapstructure:"low_volatility"`
	HighVolatility    float64 `mapstructure:"high_volatility"`
	ToleranceScale    float64 `mapstructure:"tolerance_scale"`
	ReversalScale     float64 `mapstructure:"reversal_scale"`
	BreakoutThreshold float64 `mapstructure:"breakout_threshold"`
	WindowSize        int     `mapstructure:"window_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// StoreConfig holds the local candle cache settings.
type StoreConfig struct {
	Path string `mapstructure:"path"`
	// BusyRetries is the number of attempts made while the database is
	// locked by another process.
	BusyRetries int `mapstructure:"busy_retries"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/pattern-scanner"
	}
	return filepath.Join(home, ".config", "pattern-scanner")
}

// Path returns the config file location inside configDir.
func Path(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory. If configDir is
// empty the default directory is used. A missing config file is replaced by
// the template and the defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env values never override variables already set in the environment.
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "loading .env")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "reading config.toml")
		}
		if err := WriteTemplate(configDir, false); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	d := patterns.DefaultConfig()
	cfg := &Config{
		Detection: DetectionConfig{
			Volatility: d.Volatility,
			Breakout:   d.Breakout,
			Extractor:  d.Extractor,
			Trend:      d.Trend,
			Search:     d.Search,
		},
		Patterns: make(map[string]patterns.PatternParams),
		Profiles: builtinProfiles(),
		Logging:  defaultLogging(DefaultConfigDir()),
		Store:    defaultStore(DefaultConfigDir()),
	}
	for _, pt := range analysis.AllPatternTypes() {
		cfg.Patterns[string(pt)] = d.Params(pt)
	}
	return cfg
}

func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		"crypto": {
			Description:       "24/7 markets with wide daily ranges",
			LowVolatility:     0.02,
			HighVolatility:    0.06,
			ToleranceScale:    1.25,
			BreakoutThreshold: 0.03,
		},
		"index": {
			Description:       "broad equity indices",
			LowVolatility:     0.006,
			HighVolatility:    0.02,
			ToleranceScale:    0.8,
			ReversalScale:     0.8,
			BreakoutThreshold: 0.015,
		},
	}
}

func defaultLogging(configDir string) LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(configDir, "logs", "patternscan.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	}
}

func defaultStore(configDir string) StoreConfig {
	return StoreConfig{
		Path:        filepath.Join(configDir, "candles.db"),
		BusyRetries: 3,
	}
}

func setDefaults(v *viper.Viper, configDir string) {
	d := Default()

	vol := d.Detection.Volatility
	v.SetDefault("detection.volatility.period", vol.Period)
	v.SetDefault("detection.volatility.low", vol.Low)
	v.SetDefault("detection.volatility.high", vol.High)
	v.SetDefault("detection.volatility.high_tolerance_scale", vol.HighToleranceScale)
	v.SetDefault("detection.volatility.low_tolerance_scale", vol.LowToleranceScale)
	v.SetDefault("detection.volatility.high_reversal_scale", vol.HighReversalScale)
	v.SetDefault("detection.volatility.low_reversal_scale", vol.LowReversalScale)
	v.SetDefault("detection.volatility.high_window_scale", vol.HighWindowScale)
	v.SetDefault("detection.volatility.low_window_scale", vol.LowWindowScale)

	bo := d.Detection.Breakout
	v.SetDefault("detection.breakout.window", bo.Window)
	v.SetDefault("detection.breakout.threshold", bo.Threshold)
	v.SetDefault("detection.breakout.high_threshold", bo.HighThreshold)
	v.SetDefault("detection.breakout.low_threshold", bo.LowThreshold)
	v.SetDefault("detection.breakout.forming_progress", bo.FormingProgress)
	v.SetDefault("detection.breakout.volume_lookback", bo.VolumeLookback)

	ex := d.Detection.Extractor
	v.SetDefault("detection.extractor.window_size", ex.WindowSize)
	v.SetDefault("detection.extractor.min_window", ex.MinWindow)
	v.SetDefault("detection.extractor.max_window", ex.MaxWindow)
	v.SetDefault("detection.extractor.min_significance", ex.MinSignificance)

	tr := d.Detection.Trend
	v.SetDefault("detection.trend.lookback", tr.Lookback)
	v.SetDefault("detection.trend.threshold", tr.Threshold)
	v.SetDefault("detection.trend.strength_cap", tr.StrengthCap)

	s := d.Detection.Search
	v.SetDefault("detection.search.max_candidates", s.MaxCandidates)
	v.SetDefault("detection.search.high_confidence", s.HighConfidence)
	v.SetDefault("detection.search.parallelism", s.Parallelism)
	v.SetDefault("detection.search.chunk_size", s.ChunkSize)

	for name, p := range d.Patterns {
		prefix := "patterns." + name + "."
		v.SetDefault(prefix+"min_bars", p.MinBars)
		v.SetDefault(prefix+"tolerance", p.Tolerance)
		v.SetDefault(prefix+"min_reversal", p.MinReversal)
		v.SetDefault(prefix+"head_margin", p.HeadMargin)
		v.SetDefault(prefix+"min_spacing", p.MinSpacing)
		v.SetDefault(prefix+"max_span", p.MaxSpan)
		v.SetDefault(prefix+"allow_forming", p.AllowForming)
		v.SetDefault(prefix+"weights.similarity", p.Weights.Similarity)
		v.SetDefault(prefix+"weights.depth", p.Weights.Depth)
		v.SetDefault(prefix+"weights.volume", p.Weights.Volume)
		v.SetDefault(prefix+"weights.trend", p.Weights.Trend)
		v.SetDefault(prefix+"weights.breakout", p.Weights.Breakout)
	}

	for name, p := range d.Profiles {
		prefix := "profiles." + name + "."
		v.SetDefault(prefix+"description", p.Description)
		v.SetDefault(prefix+"low_volatility", p.LowVolatility)
		v.SetDefault(prefix+"high_volatility", p.HighVolatility)
		v.SetDefault(prefix+"tolerance_scale", p.ToleranceScale)
		v.SetDefault(prefix+"reversal_scale", p.ReversalScale)
		v.SetDefault(prefix+"breakout_threshold", p.BreakoutThreshold)
		v.SetDefault(prefix+"window_size", p.WindowSize)
	}

	lg := defaultLogging(configDir)
	v.SetDefault("logging.level", lg.Level)
	v.SetDefault("logging.console", lg.Console)
	v.SetDefault("logging.file", lg.File)
	v.SetDefault("logging.file_path", lg.FilePath)
	v.SetDefault("logging.max_size", lg.MaxSize)
	v.SetDefault("logging.max_backups", lg.MaxBackups)
	v.SetDefault("logging.max_age", lg.MaxAge)

	st := defaultStore(configDir)
	v.SetDefault("store.path", st.Path)
	v.SetDefault("store.busy_retries", st.BusyRetries)
}

// ProfileNames returns the configured profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PatternConfig assembles the engine configuration, applying the named
// profile when profile is non-empty.
func (c *Config) PatternConfig(profile string) (patterns.Config, error) {
	pc := patterns.DefaultConfig()
	pc.Volatility = c.Detection.Volatility
	pc.Breakout = c.Detection.Breakout
	pc.Extractor = c.Detection.Extractor
	pc.Trend = c.Detection.Trend
	pc.Search = c.Detection.Search
	for _, pt := range analysis.AllPatternTypes() {
		if p, ok := c.Patterns[string(pt)]; ok {
			pc.SetParams(pt, p)
		}
	}

	if profile == "" {
		return pc, nil
	}
	p, ok := c.Profiles[strings.ToLower(profile)]
	if !ok {
		return pc, errors.Wrapf(errors.ErrUnknownProfile, "%q", profile)
	}
	p.Apply(&pc)
	return pc, nil
}

// Apply overrides cfg with the non-zero profile fields.
func (p Profile) Apply(cfg *patterns.Config) {
	if p.LowVolatility > 0 {
		cfg.Volatility.Low = p.LowVolatility
	}
	if p.HighVolatility > 0 {
		cfg.Volatility.High = p.HighVolatility
	}
	if p.BreakoutThreshold > 0 {
		cfg.Breakout.Threshold = p.BreakoutThreshold
	}
	if p.WindowSize > 0 {
		cfg.Extractor.WindowSize = p.WindowSize
	}
	for _, pt := range analysis.AllPatternTypes() {
		params := cfg.Params(pt)
		if p.ToleranceScale > 0 {
			params.Tolerance *= p.ToleranceScale
		}
		if p.ReversalScale > 0 {
			params.MinReversal *= p.ReversalScale
		}
		cfg.SetParams(pt, params)
	}
}

// EncodeTOML renders an engine configuration as TOML.
func EncodeTOML(cfg patterns.Config) ([]byte, error) {
	b, err := toml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "encoding config")
	}
	return b, nil
}
