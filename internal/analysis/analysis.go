// Package analysis provides the shared types of the reversal pattern engine:
// pattern identifiers, detection results, necklines and breakout points.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"pattern-scanner/internal/models"
)

// Detector defines the interface for a single-pattern detector.
type Detector interface {
	Name() string
	Detect(ctx context.Context, candles []models.Candle) PatternResult
}

// PatternType identifies a reversal formation.
type PatternType string

const (
	DoubleTop               PatternType = "double_top"
	DoubleBottom            PatternType = "double_bottom"
	TripleTop               PatternType = "triple_top"
	TripleBottom            PatternType = "triple_bottom"
	HeadAndShoulders        PatternType = "head_and_shoulders"
	InverseHeadAndShoulders PatternType = "inverse_head_and_shoulders"
)

// AllPatternTypes lists the supported formations in a stable order.
func AllPatternTypes() []PatternType {
	return []PatternType{
		DoubleTop,
		DoubleBottom,
		TripleTop,
		TripleBottom,
		HeadAndShoulders,
		InverseHeadAndShoulders,
	}
}

// ParsePatternType accepts snake_case, kebab-case and a few short aliases.
func ParsePatternType(s string) (PatternType, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	switch key {
	case "double_top", "dt":
		return DoubleTop, true
	case "double_bottom", "db":
		return DoubleBottom, true
	case "triple_top", "tt":
		return TripleTop, true
	case "triple_bottom", "tb":
		return TripleBottom, true
	case "head_and_shoulders", "head_shoulders", "hs":
		return HeadAndShoulders, true
	case "inverse_head_and_shoulders", "inverse_head_shoulders", "ihs":
		return InverseHeadAndShoulders, true
	}
	return "", false
}

// Bearish reports whether the formation resolves downward.
func (p PatternType) Bearish() bool {
	return p == DoubleTop || p == TripleTop || p == HeadAndShoulders
}

// Title returns a human readable name.
func (p PatternType) Title() string {
	switch p {
	case DoubleTop:
		return "Double Top"
	case DoubleBottom:
		return "Double Bottom"
	case TripleTop:
		return "Triple Top"
	case TripleBottom:
		return "Triple Bottom"
	case HeadAndShoulders:
		return "Head and Shoulders"
	case InverseHeadAndShoulders:
		return "Inverse Head and Shoulders"
	}
	return string(p)
}

// BreakoutStatus classifies how far a neckline break has progressed.
type BreakoutStatus string

const (
	BreakoutConfirmed BreakoutStatus = "confirmed"
	BreakoutPartial   BreakoutStatus = "partial"
	BreakoutForming   BreakoutStatus = "forming"
	BreakoutNone      BreakoutStatus = "none"
)

// KeyPoint is a named point of a detected pattern.
type KeyPoint struct {
	Index  int     `json:"index"`
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
}

// NewKeyPoint builds a key point from the candle at index i.
func NewKeyPoint(candles []models.Candle, i int, price float64) KeyPoint {
	c := candles[i]
	return KeyPoint{Index: i, Date: c.Date(), Price: price, Volume: c.Volume}
}

// Neckline is either a constant level or a line through two extrema,
// evaluated as Slope*index + Intercept.
type Neckline struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	Sloped    bool    `json:"sloped"`
}

// FlatNeckline returns a constant neckline at level.
func FlatNeckline(level float64) Neckline {
	return Neckline{Intercept: level}
}

// LineThrough returns the neckline through (i1,p1) and (i2,p2).
func LineThrough(i1 int, p1 float64, i2 int, p2 float64) Neckline {
	if i2 == i1 {
		return FlatNeckline((p1 + p2) / 2)
	}
	slope := (p2 - p1) / float64(i2-i1)
	return Neckline{Slope: slope, Intercept: p1 - slope*float64(i1), Sloped: true}
}

// At evaluates the neckline at bar index i.
func (n Neckline) At(i int) float64 {
	return n.Slope*float64(i) + n.Intercept
}

// BreakoutPoint describes the bar that broke (or is approaching) the neckline.
type BreakoutPoint struct {
	Index       int            `json:"index"`
	Date        string         `json:"date"`
	Price       float64        `json:"price"`
	Volume      int64          `json:"volume"`
	Status      BreakoutStatus `json:"status"`
	VolumeRatio float64        `json:"volumeRatio"`
	Penetration float64        `json:"penetration"`
}

// KeyPoint converts the breakout to a named key point.
func (b BreakoutPoint) KeyPoint() KeyPoint {
	return KeyPoint{Index: b.Index, Date: b.Date, Price: b.Price, Volume: b.Volume}
}

// PatternResult is the outcome of one detection call. When Detected is false
// only PatternType and Reason are meaningful.
type PatternResult struct {
	Detected      bool                `json:"detected"`
	PatternType   PatternType         `json:"patternType"`
	Reason        string              `json:"reason,omitempty"`
	Confidence    float64             `json:"confidence"`
	KeyPoints     map[string]KeyPoint `json:"keyPoints,omitempty"`
	Neckline      Neckline            `json:"neckline"`
	NecklineLevel float64             `json:"necklineLevel"`
	PriceTarget   float64             `json:"priceTarget"`
	PatternHeight float64             `json:"patternHeight"`
	TimespanDays  int                 `json:"timespanDays"`
	Breakout      *BreakoutPoint      `json:"breakout,omitempty"`
	Forming       bool                `json:"forming"`
	Metrics       map[string]float64  `json:"metrics,omitempty"`
}

// NotDetected returns a failure result carrying reason.
func NotDetected(pt PatternType, reason string) PatternResult {
	return PatternResult{PatternType: pt, Reason: reason}
}

// NotDetectedf is NotDetected with a formatted reason.
func NotDetectedf(pt PatternType, format string, args ...interface{}) PatternResult {
	return NotDetected(pt, fmt.Sprintf(format, args...))
}

// KeyPointNames returns the key names the API layer expects for a pattern,
// in chronological order.
func KeyPointNames(pt PatternType) []string {
	switch pt {
	case DoubleTop:
		return []string{"firstPeak", "valley", "secondPeak", "breakoutPoint"}
	case DoubleBottom:
		return []string{"firstTrough", "peak", "secondTrough", "breakoutPoint"}
	case TripleTop:
		return []string{"firstPeak", "firstValley", "secondPeak", "secondValley", "thirdPeak", "breakoutPoint"}
	case TripleBottom:
		return []string{"firstTrough", "firstPeak", "secondTrough", "secondPeak", "thirdTrough", "breakoutPoint"}
	case HeadAndShoulders:
		return []string{"leftShoulder", "leftTrough", "head", "rightTrough", "rightShoulder", "breakoutPoint"}
	case InverseHeadAndShoulders:
		return []string{"leftShoulder", "leftPeak", "head", "rightPeak", "rightShoulder", "breakoutPoint"}
	}
	return nil
}
