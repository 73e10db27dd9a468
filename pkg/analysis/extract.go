package analysis

import "sort"

// Engine runs the per-frame zone classification and fare extraction. It is
// stateless across frames: Analyze is a pure function of its input and the
// construction-time Config, so one Engine may serve concurrent frames.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine { return &Engine{cfg: cfg} }

// Config returns the engine's construction-time configuration.
func (e *Engine) Config() Config { return e.cfg }

// Analyze classifies one frame's recognized lines by zone and extracts a
// fare result per platform. frameW/frameH are the frame's pixel dimensions,
// used only to normalize box centers. Empty input is an ordinary frame that
// yields no results, not an error.
func (e *Engine) Analyze(lines []DetectedText, frameW, frameH int) AnalysisResult {
	rapidoLines, uberLines, overlapCount := e.partition(lines, frameW, frameH)

	res := AnalysisResult{
		DoublePing: overlapCount > e.cfg.DoublePingLines,
		Rapido:     e.extract(PlatformRapido, rapidoLines),
		Uber:       e.extract(PlatformUber, uberLines),
	}
	for _, l := range lines {
		res.RawLines = append(res.RawLines, l.Text)
	}
	return res
}

// extract runs the platform's pattern table over its line subset and decides
// the outcome. Returns nil when the required fields are missing.
func (e *Engine) extract(platform Platform, lines []DetectedText) *FareResult {
	if len(lines) == 0 {
		return nil
	}

	// OCR emits lines in arbitrary order; the pickup-before-drop convention
	// only holds in reading order.
	sorted := make([]DetectedText, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return centerY(sorted[i]) < centerY(sorted[j])
	})

	base := newFieldAcc(firstWins)
	bonus := newFieldAcc(lastWins)
	dist := newFieldAcc(firstSecond)
	blocked := false

	for _, line := range sorted {
		for _, p := range patternsFor(platform) {
			m := p.re.FindStringSubmatch(line.Text)
			if m == nil {
				continue
			}
			switch p.kind {
			case fieldBase:
				base.offer(parseNum(m[1]))
			case fieldBonus:
				bonus.offer(parseNum(m[1]))
			case fieldDistance:
				dist.offer(parseNum(m[1]))
			case fieldBlocked:
				blocked = true
			}
		}
	}

	// Uber hides the fare on some cards. An explicit block phrase always
	// wins; a card with distance but no fare text is treated as an implicit
	// block (heuristic: could equally be an OCR miss on the fare line).
	if platform == PlatformUber && (blocked || (!base.found() && dist.found())) {
		return &FareResult{
			Platform:        platform,
			Blocked:         true,
			Confidence:      1.0,
			costPerKm:       e.cfg.CostPerKm,
			profitThreshold: e.cfg.ProfitThreshold,
		}
	}

	if !base.found() || !dist.found() {
		return nil
	}

	conf := 0.0
	if len(sorted) > e.cfg.MinLinesBoost {
		conf += 0.3
	}
	if base.found() {
		conf += 0.4
	}
	if dist.found() {
		conf += 0.3
	}

	return &FareResult{
		Platform:        platform,
		BaseFare:        base.value,
		Bonus:           bonus.value,
		PickupKm:        dist.value,
		DropKm:          dist.second,
		Confidence:      conf,
		costPerKm:       e.cfg.CostPerKm,
		profitThreshold: e.cfg.ProfitThreshold,
	}
}

func centerY(l DetectedText) int { return (l.Box.Min.Y + l.Box.Max.Y) / 2 }
