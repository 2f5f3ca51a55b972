package analysis

import (
	"sort"
	"time"

	"pattern-scanner/internal/models"
)

// OverlayPoint is one vertex of a chart overlay line.
type OverlayPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// Overlay holds the three line segments drawn over a detected pattern.
type Overlay struct {
	Neckline []OverlayPoint `json:"neckline"`
	Outline  []OverlayPoint `json:"outline"`
	Target   []OverlayPoint `json:"target"`
}

// BuildOverlay derives the neckline segment, the chronological outline through
// every key point, and the target projection from the breakout to the price
// target one day later. It returns nil for undetected results.
func BuildOverlay(r PatternResult) *Overlay {
	if !r.Detected || len(r.KeyPoints) == 0 {
		return nil
	}

	points := make([]KeyPoint, 0, len(r.KeyPoints))
	for _, name := range KeyPointNames(r.PatternType) {
		if kp, ok := r.KeyPoints[name]; ok {
			points = append(points, kp)
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Index < points[j].Index })
	if len(points) == 0 {
		return nil
	}

	o := &Overlay{}
	for _, kp := range points {
		o.Outline = append(o.Outline, OverlayPoint{Date: kp.Date, Price: kp.Price})
	}

	first, last := points[0], points[len(points)-1]
	o.Neckline = []OverlayPoint{
		{Date: first.Date, Price: r.Neckline.At(first.Index)},
		{Date: last.Date, Price: r.Neckline.At(last.Index)},
	}

	if r.Breakout != nil {
		next := r.Breakout.Date
		if t, err := time.Parse(models.DateLayout, r.Breakout.Date); err == nil {
			next = t.AddDate(0, 0, 1).Format(models.DateLayout)
		}
		o.Target = []OverlayPoint{
			{Date: r.Breakout.Date, Price: r.Breakout.Price},
			{Date: next, Price: r.PriceTarget},
		}
	}

	return o
}
