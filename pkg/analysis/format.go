package analysis

import (
	"fmt"
	"strings"
)

// scanningPlaceholder is shown while neither platform has produced an offer.
const scanningPlaceholder = "Scanning offers..."

// FormatResult renders the per-frame analysis as the short multi-line status
// string the overlay displays. Rapido before Uber; absent platforms are
// omitted rather than rendered as errors.
func FormatResult(res AnalysisResult) string {
	var lines []string
	if res.Rapido != nil {
		lines = append(lines, formatOffer(res.Rapido, "bonus"))
	}
	if res.Uber != nil {
		if res.Uber.Blocked {
			lines = append(lines, "⛔ Uber price blocked")
		} else {
			lines = append(lines, formatOffer(res.Uber, "surge"))
		}
	}
	if len(lines) == 0 {
		return scanningPlaceholder
	}
	return strings.Join(lines, "\n")
}

func formatOffer(r *FareResult, bonusWord string) string {
	marker := "❌"
	if r.Profitable() {
		marker = "✅"
	}
	s := fmt.Sprintf("%s %s ₹%.1f/km", marker, r.Platform, r.ProfitPerKm())
	if r.Bonus > 0 {
		s += fmt.Sprintf(" (%s ₹%.0f)", bonusWord, r.Bonus)
	}
	return s
}
