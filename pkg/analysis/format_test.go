package analysis

import (
	"strings"
	"testing"
)

func TestFormatScanningPlaceholder(t *testing.T) {
	if got := FormatResult(AnalysisResult{}); got != scanningPlaceholder {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestFormatRapidoBeforeUber(t *testing.T) {
	res := AnalysisResult{
		Rapido: &FareResult{Platform: PlatformRapido, BaseFare: 85, PickupKm: 2, DropKm: 3, costPerKm: 2.40, profitThreshold: 6.0},
		Uber:   &FareResult{Platform: PlatformUber, BaseFare: 20, PickupKm: 5, costPerKm: 2.40, profitThreshold: 6.0},
	}
	out := FormatResult(res)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	if !strings.Contains(lines[0], "Rapido") || !strings.Contains(lines[1], "Uber") {
		t.Fatalf("wrong order: %q", out)
	}
	// 14.6/km profitable, 1.6/km not
	if !strings.HasPrefix(lines[0], "✅") || !strings.Contains(lines[0], "14.6") {
		t.Fatalf("bad rapido line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "❌") || !strings.Contains(lines[1], "1.6") {
		t.Fatalf("bad uber line: %q", lines[1])
	}
}

func TestFormatBonusAndSurgeWording(t *testing.T) {
	res := AnalysisResult{
		Rapido: &FareResult{Platform: PlatformRapido, BaseFare: 60, Bonus: 15, PickupKm: 4, costPerKm: 2.40, profitThreshold: 6.0},
		Uber:   &FareResult{Platform: PlatformUber, BaseFare: 90, Bonus: 30, PickupKm: 5, costPerKm: 2.40, profitThreshold: 6.0},
	}
	out := FormatResult(res)
	if !strings.Contains(out, "bonus ₹15") {
		t.Fatalf("missing rapido bonus note: %q", out)
	}
	if !strings.Contains(out, "surge ₹30") {
		t.Fatalf("missing uber surge note: %q", out)
	}
}

func TestFormatBlockedUberLine(t *testing.T) {
	res := AnalysisResult{
		Uber: &FareResult{Platform: PlatformUber, Blocked: true, Confidence: 1.0},
	}
	out := FormatResult(res)
	if out != "⛔ Uber price blocked" {
		t.Fatalf("expected unconditional blocked line, got %q", out)
	}
}

func TestFormatOmitsAbsentPlatform(t *testing.T) {
	res := AnalysisResult{
		Rapido: &FareResult{Platform: PlatformRapido, BaseFare: 85, PickupKm: 5, costPerKm: 2.40, profitThreshold: 6.0},
	}
	out := FormatResult(res)
	if strings.Contains(out, "Uber") || strings.Contains(out, "\n") {
		t.Fatalf("absent platform must be omitted: %q", out)
	}
}
