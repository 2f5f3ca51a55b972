// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero to two decimal places. NaN and Inf pass
// through unchanged.
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	v, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return v
}

// Clamp01 limits x to [0, 1]. NaN becomes 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// FormatPrice formats a price with two decimals and thousands separators.
func FormatPrice(price float64) string {
	negative := price < 0
	if negative {
		price = -price
	}

	str := decimal.NewFromFloat(price).StringFixed(2)
	parts := strings.Split(str, ".")
	result := groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatRatio formats a fraction (0.0734) as a percentage (7.34%).
func FormatRatio(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}

// FormatVolume formats a volume in compact form (K/M/B).
func FormatVolume(v int64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", float64(v)/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(v)/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fK", float64(v)/1_000)
	}
	return fmt.Sprintf("%d", v)
}
