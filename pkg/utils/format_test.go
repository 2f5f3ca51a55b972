package utils

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.885, 0.89},
		{0.884999, 0.88},
		{-1.005, -1.01},
		{1, 1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !math.IsNaN(Round2(math.NaN())) {
		t.Error("Round2(NaN) should stay NaN")
	}
}

func TestClamp01(t *testing.T) {
	if Clamp01(-0.2) != 0 || Clamp01(1.7) != 1 || Clamp01(0.4) != 0.4 {
		t.Error("Clamp01 out of range")
	}
	if Clamp01(math.NaN()) != 0 {
		t.Error("Clamp01(NaN) should be 0")
	}
}

func TestFormatPrice(t *testing.T) {
	tests := map[float64]string{
		0:          "0.00",
		120:        "120.00",
		1234.5:     "1,234.50",
		-98765.432: "-98,765.43",
		1000000:    "1,000,000.00",
	}
	for in, want := range tests {
		if got := FormatPrice(in); got != want {
			t.Errorf("FormatPrice(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatVolume(t *testing.T) {
	if got := FormatVolume(950); got != "950" {
		t.Errorf("FormatVolume(950) = %q", got)
	}
	if got := FormatVolume(1500); got != "1.5K" {
		t.Errorf("FormatVolume(1500) = %q", got)
	}
	if got := FormatVolume(2_500_000); got != "2.50M" {
		t.Errorf("FormatVolume(2500000) = %q", got)
	}
}

// Property: Round2 never moves a value by more than half a cent and always
// yields at most two decimals.
func TestProperty_Round2(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Round2 stays within 0.005", prop.ForAll(
		func(x float64) bool {
			r := Round2(x)
			return math.Abs(r-x) <= 0.005+1e-9
		},
		gen.Float64Range(-1e6, 1e6),
	))

	properties.Property("Round2 output has at most two decimals", prop.ForAll(
		func(x float64) bool {
			s := strconv.FormatFloat(Round2(x), 'f', -1, 64)
			parts := strings.Split(s, ".")
			return len(parts) == 1 || len(parts[1]) <= 2
		},
		gen.Float64Range(-1e4, 1e4),
	))

	properties.TestingRun(t)
}

// Property: FormatPrice round-trips to the two-decimal value.
func TestProperty_FormatPriceRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatPrice parses back to Round2", prop.ForAll(
		func(x float64) bool {
			s := strings.ReplaceAll(FormatPrice(x), ",", "")
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				t.Logf("parse %q: %v", s, err)
				return false
			}
			return math.Abs(v-Round2(x)) < 1e-9
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.TestingRun(t)
}
