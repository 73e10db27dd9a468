package analysis

import (
	"regexp"
	"strconv"
	"strings"
)

// Field extraction is driven by a per-platform table of (field, matcher)
// rows rather than a conditional chain, so pattern tuning stays separate
// from the scan control flow. Every configured pattern is tried against
// every line; the per-field accumulators decide what sticks.

type fieldKind int

const (
	fieldBase fieldKind = iota
	fieldBonus
	fieldDistance
	fieldBlocked
)

type pattern struct {
	kind fieldKind
	re   *regexp.Regexp
}

// Currency markers are matched tolerantly: OCR renders ₹ as "₹", "Rs" or
// "INR" depending on font and preprocessing. The base-fare pattern is
// anchored at line start so restatements inside bonus phrasing ("Customer
// added ₹15 extra") do not steal the fare slot.
const currencyMarker = `(?:₹|Rs\.?|INR)`

var (
	reBaseFare   = regexp.MustCompile(`^\s*` + currencyMarker + `\s*([0-9]+)`)
	reRapidoTip  = regexp.MustCompile(`(?i)customer\s+added\s*(?:₹|Rs\.?|INR)?\s*([0-9]+)`)
	reUberSurge  = regexp.MustCompile(`\+\s*(?:₹|Rs\.?|INR)?\s*([0-9]+)`)
	reRapidoDist = regexp.MustCompile(`(?i)\b([0-9]+(?:\.[0-9]+)?)\s*km\b`)
	reUberDist   = regexp.MustCompile(`(?i)\(\s*([0-9]+(?:\.[0-9]+)?)\s*km\s*\)`)
	reUberBlock  = regexp.MustCompile(`(?i)\b(?:price|fare)\s+(?:not\s+(?:shown|available)|hidden|blocked)\b`)
)

// rapidoPatterns and uberPatterns are scanned in this priority order on
// every line of the platform's subset.
var rapidoPatterns = []pattern{
	{fieldBase, reBaseFare},
	{fieldBonus, reRapidoTip},
	{fieldDistance, reRapidoDist},
}

var uberPatterns = []pattern{
	{fieldBase, reBaseFare},
	{fieldBonus, reUberSurge},
	{fieldDistance, reUberDist},
	{fieldBlocked, reUberBlock},
}

func patternsFor(p Platform) []pattern {
	if p == PlatformUber {
		return uberPatterns
	}
	return rapidoPatterns
}

// overwritePolicy controls how repeated matches for the same field combine
// within one extraction pass.
type overwritePolicy int

const (
	// firstWins locks the field on the first match (base fare).
	firstWins overwritePolicy = iota
	// lastWins lets every later match overwrite (bonus/surge, restated near
	// the confirmation line on some cards).
	lastWins
	// firstSecond fills two slots in order (pickup then drop distance) and
	// ignores everything after the second match.
	firstSecond
)

type accState int

const (
	accUnset accState = iota
	accSet
	accLocked
)

// fieldAcc is the small per-field state machine that enforces the overwrite
// policy. The explicit states keep the first/last/second-only rules from
// degenerating into ad hoc boolean juggling.
type fieldAcc struct {
	policy overwritePolicy
	state  accState
	value  float64
	second float64
}

func newFieldAcc(p overwritePolicy) *fieldAcc { return &fieldAcc{policy: p} }

func (a *fieldAcc) offer(v float64) {
	switch a.policy {
	case firstWins:
		if a.state == accUnset {
			a.value = v
			a.state = accLocked
		}
	case lastWins:
		a.value = v
		a.state = accSet
	case firstSecond:
		switch a.state {
		case accUnset:
			a.value = v
			a.state = accSet
		case accSet:
			a.second = v
			a.state = accLocked
		}
	}
}

func (a *fieldAcc) found() bool { return a.state != accUnset }

// parseNum converts a captured substring to a number. Malformed captures
// yield 0 rather than an error: extraction is best-effort per frame and one
// garbled field must not abort the whole analysis.
func parseNum(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
