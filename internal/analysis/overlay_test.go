package analysis

import "testing"

func TestBuildOverlay(t *testing.T) {
	r := PatternResult{
		Detected:    true,
		PatternType: DoubleTop,
		KeyPoints: map[string]KeyPoint{
			"firstPeak":     {Index: 10, Date: "2024-01-11", Price: 130},
			"valley":        {Index: 24, Date: "2024-01-25", Price: 120},
			"secondPeak":    {Index: 39, Date: "2024-02-09", Price: 129},
			"breakoutPoint": {Index: 50, Date: "2024-02-20", Price: 115},
		},
		Neckline:    FlatNeckline(120),
		PriceTarget: 110.5,
		Breakout:    &BreakoutPoint{Index: 50, Date: "2024-02-20", Price: 115},
	}

	o := BuildOverlay(r)
	if o == nil {
		t.Fatal("expected overlay")
	}
	if len(o.Outline) != 4 || o.Outline[0].Date != "2024-01-11" || o.Outline[3].Price != 115 {
		t.Errorf("outline = %+v", o.Outline)
	}
	if len(o.Neckline) != 2 || o.Neckline[0].Price != 120 || o.Neckline[1].Date != "2024-02-20" {
		t.Errorf("neckline = %+v", o.Neckline)
	}
	want := []OverlayPoint{{"2024-02-20", 115}, {"2024-02-21", 110.5}}
	if len(o.Target) != 2 || o.Target[0] != want[0] || o.Target[1] != want[1] {
		t.Errorf("target = %+v, want %+v", o.Target, want)
	}
}

func TestBuildOverlaySlopedNeckline(t *testing.T) {
	r := PatternResult{
		Detected:    true,
		PatternType: HeadAndShoulders,
		KeyPoints: map[string]KeyPoint{
			"leftShoulder":  {Index: 12, Date: "2024-01-13", Price: 125},
			"leftTrough":    {Index: 22, Date: "2024-01-23", Price: 114},
			"head":          {Index: 34, Date: "2024-02-04", Price: 135},
			"rightTrough":   {Index: 46, Date: "2024-02-16", Price: 116},
			"rightShoulder": {Index: 58, Date: "2024-02-28", Price: 124},
			"breakoutPoint": {Index: 70, Date: "2024-03-11", Price: 112},
		},
		Neckline: LineThrough(22, 114, 46, 116),
	}

	o := BuildOverlay(r)
	if got, want := o.Neckline[0].Price, r.Neckline.At(12); got != want {
		t.Errorf("neckline start = %v, want %v", got, want)
	}
	if got, want := o.Neckline[1].Price, r.Neckline.At(70); got != want {
		t.Errorf("neckline end = %v, want %v", got, want)
	}
	if o.Target != nil {
		t.Errorf("target without breakout = %+v", o.Target)
	}
}

func TestBuildOverlayNotDetected(t *testing.T) {
	if o := BuildOverlay(NotDetected(DoubleTop, "no valid pattern found")); o != nil {
		t.Errorf("expected nil overlay, got %+v", o)
	}
}

func TestParsePatternType(t *testing.T) {
	tests := map[string]PatternType{
		"double_top":             DoubleTop,
		"Double-Bottom":          DoubleBottom,
		"tt":                     TripleTop,
		"hs":                     HeadAndShoulders,
		"inverse-head-shoulders": InverseHeadAndShoulders,
	}
	for in, want := range tests {
		got, ok := ParsePatternType(in)
		if !ok || got != want {
			t.Errorf("ParsePatternType(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParsePatternType("wedge"); ok {
		t.Error("unknown pattern accepted")
	}
}

func TestLineThrough(t *testing.T) {
	n := LineThrough(22, 114.7, 46, 115.7)
	if !n.Sloped {
		t.Fatal("expected sloped neckline")
	}
	if d := n.At(46) - 115.7; d > 1e-9 || d < -1e-9 {
		t.Errorf("At(46) = %v", n.At(46))
	}
	if flat := LineThrough(5, 100, 5, 102); flat.Sloped || flat.At(99) != 101 {
		t.Errorf("degenerate line = %+v", flat)
	}
}
