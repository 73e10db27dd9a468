package analysis

import (
	"image"
	"testing"
)

func boxAt(cx, cy int) image.Rectangle {
	return image.Rect(cx-10, cy-8, cx+10, cy+8)
}

func lineAt(text string, cx, cy int) DetectedText {
	return DetectedText{Text: text, Box: boxAt(cx, cy), Confidence: 0.9}
}

func TestZoneContainsBoundaryInclusive(t *testing.T) {
	z := Zone{Left: 0.25, Top: 0.25, Right: 0.75, Bottom: 0.75}
	// center exactly on the left/top corner of the zone
	if !z.Contains(lineAt("x", 25, 25), 100, 100) {
		t.Fatalf("expected closed bounds to include corner center")
	}
	if !z.Contains(lineAt("x", 75, 75), 100, 100) {
		t.Fatalf("expected closed bounds to include bottom-right center")
	}
	if z.Contains(lineAt("x", 24, 25), 100, 100) {
		t.Fatalf("center left of zone should be excluded")
	}
	if z.Contains(lineAt("x", 50, 76), 100, 100) {
		t.Fatalf("center below zone should be excluded")
	}
}

func TestZoneContainsDegenerateFrame(t *testing.T) {
	z := Zone{Left: 0, Top: 0, Right: 1, Bottom: 1}
	if z.Contains(lineAt("x", 10, 10), 0, 0) {
		t.Fatalf("zero-sized frame must not classify")
	}
}

func TestDoublePingThreshold(t *testing.T) {
	e := NewEngine(DefaultConfig())
	// overlap band of the default zones on a 720x1280 frame: y in [576,704]
	mk := func(n int) []DetectedText {
		var out []DetectedText
		for i := 0; i < n; i++ {
			out = append(out, lineAt("card text", 360, 600+i*5))
		}
		return out
	}
	if res := e.Analyze(mk(5), 720, 1280); res.DoublePing {
		t.Fatalf("5 overlap lines must not flag double ping (threshold is strictly greater)")
	}
	if res := e.Analyze(mk(6), 720, 1280); !res.DoublePing {
		t.Fatalf("6 overlap lines must flag double ping")
	}
}

func TestPartitionDoesNotMutateInput(t *testing.T) {
	e := NewEngine(DefaultConfig())
	in := []DetectedText{lineAt("₹85", 360, 300), lineAt("2 Km", 360, 350)}
	before := make([]DetectedText, len(in))
	copy(before, in)
	e.Analyze(in, 720, 1280)
	for i := range in {
		if in[i] != before[i] {
			t.Fatalf("input slice mutated at %d", i)
		}
	}
}
