package analysis

// Zone is a rectangular region of the frame in normalized [0,1] coordinates
// where one platform's offer card is expected to render. Zones are
// configuration values and never mutated.
type Zone struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Contains reports whether the line's bounding-box center, normalized by the
// frame dimensions, falls inside the zone. Bounds are closed on all four
// edges so cards flush against a zone edge still classify.
func (z Zone) Contains(line DetectedText, frameW, frameH int) bool {
	if frameW <= 0 || frameH <= 0 {
		return false
	}
	cx := float64(line.Box.Min.X+line.Box.Max.X) / 2 / float64(frameW)
	cy := float64(line.Box.Min.Y+line.Box.Max.Y) / 2 / float64(frameH)
	return cx >= z.Left && cx <= z.Right && cy >= z.Top && cy <= z.Bottom
}

// partition splits the frame's lines into the per-platform subsets and
// counts the overlap band. A line may land in more than one subset; the
// input is never modified.
func (e *Engine) partition(lines []DetectedText, frameW, frameH int) (rapido, uber []DetectedText, overlapCount int) {
	for _, l := range lines {
		if e.cfg.RapidoZone.Contains(l, frameW, frameH) {
			rapido = append(rapido, l)
		}
		if e.cfg.UberZone.Contains(l, frameW, frameH) {
			uber = append(uber, l)
		}
		if e.cfg.OverlapZone.Contains(l, frameW, frameH) {
			overlapCount++
		}
	}
	return rapido, uber, overlapCount
}
