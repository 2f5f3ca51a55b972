package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Pattern Scanner Configuration
# Environment variables override any key: PATTERNSCAN_<SECTION>_<KEY>,
# e.g. PATTERNSCAN_DETECTION_SEARCH_PARALLELISM=4

[detection.volatility]
# ATR period for the volatility ratio (ATR / mean mid price)
period = 14
# Ratios below low or above high switch to the low or high regime
low = 0.01
high = 0.03
# Threshold scales applied in the high and low regimes
high_tolerance_scale = 1.5
low_tolerance_scale = 0.8
high_reversal_scale = 2.0
low_reversal_scale = 0.8
# Turning-point window scales
high_window_scale = 0.7
low_window_scale = 1.3

[detection.breakout]
# Bars searched after the last pattern point
window = 30
# Close beyond the neckline needed for a confirmed breakout
threshold = 0.02
high_threshold = 0.04
low_threshold = 0.01
# Share of the move toward the neckline needed to report a forming pattern
forming_progress = 0.25
volume_lookback = 20

[detection.extractor]
# 0 selects the window from series length and volatility
window_size = 0
min_window = 2
max_window = 15
min_significance = 0.003

[detection.trend]
lookback = 20
threshold = 0.03
strength_cap = 0.15

[detection.search]
# Upper bound on candidate tuples per pattern
max_candidates = 5000
# Stop searching once a candidate scores above this
high_confidence = 0.85
# Workers evaluating candidates (1 = sequential)
parallelism = 1
chunk_size = 64

[patterns.double_top]
min_bars = 30
tolerance = 0.08
min_reversal = 0.05
min_spacing = 5
max_span = 150
allow_forming = true

[patterns.double_top.weights]
similarity = 0.25
depth = 0.20
volume = 0.15
trend = 0.20
breakout = 0.20

[patterns.double_bottom]
min_bars = 30
tolerance = 0.08
min_reversal = 0.05
min_spacing = 5
max_span = 150
allow_forming = true

[patterns.triple_top]
min_bars = 50
tolerance = 0.06
min_reversal = 0.04
min_spacing = 4
max_span = 150
allow_forming = true

[patterns.triple_bottom]
min_bars = 50
tolerance = 0.06
min_reversal = 0.04
min_spacing = 4
max_span = 150
allow_forming = true

[patterns.head_and_shoulders]
min_bars = 60
# Shoulder similarity
tolerance = 0.15
min_reversal = 0.03
# Minimum head prominence over the higher shoulder
head_margin = 0.03
min_spacing = 4
max_span = 150
allow_forming = true

[patterns.inverse_head_and_shoulders]
min_bars = 60
tolerance = 0.25
min_reversal = 0.03
head_margin = 0.03
min_spacing = 4
max_span = 150
allow_forming = true

# Profiles override detection for a class of instruments (--profile NAME)
[profiles.crypto]
description = "24/7 markets with wide daily ranges"
low_volatility = 0.02
high_volatility = 0.06
tolerance_scale = 1.25
breakout_threshold = 0.03

[profiles.index]
description = "broad equity indices"
low_volatility = 0.006
high_volatility = 0.02
tolerance_scale = 0.8
reversal_scale = 0.8
breakout_threshold = 0.015

[logging]
# debug, info, warn, error
level = "info"
console = true
file = true
# Defaults to <config dir>/logs/patternscan.log
# file_path = ""
max_size = 50
max_backups = 5
max_age = 30

[store]
# Defaults to <config dir>/candles.db
# path = ""
busy_retries = 3
`

// WriteTemplate writes the commented default config.toml into configDir.
// An existing file is only replaced when force is set.
func WriteTemplate(configDir string, force bool) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
