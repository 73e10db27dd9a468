package analysis

// Config carries the market-tuned constants the engine needs. It is fixed at
// construction; the engine never mutates it, so one engine is safe for
// concurrent frames. Zones are normalized so the capture resolution can
// change without retuning them; the patterns themselves assume the current
// app UI phrasing and are known to be brittle to UI redesigns.
type Config struct {
	// CostPerKm is the driver's running cost per kilometre.
	CostPerKm float64
	// ProfitThreshold is the minimum profit-per-km for an offer to count as
	// profitable (boundary inclusive).
	ProfitThreshold float64

	RapidoZone  Zone
	UberZone    Zone
	OverlapZone Zone

	// DoublePingLines is the overlap-zone line count above which (strictly)
	// the frame is flagged as showing both apps' offers at once.
	DoublePingLines int
	// MinLinesBoost is the subset size above which (strictly) the density
	// confidence bonus applies.
	MinLinesBoost int
}

// DefaultConfig returns the constants tuned against 720x1280 captures of the
// Indian market builds of both apps.
func DefaultConfig() Config {
	return Config{
		CostPerKm:       2.40,
		ProfitThreshold: 6.0,
		RapidoZone:      Zone{Left: 0.05, Top: 0.15, Right: 0.95, Bottom: 0.55},
		UberZone:        Zone{Left: 0.05, Top: 0.45, Right: 0.95, Bottom: 0.90},
		OverlapZone:     Zone{Left: 0.05, Top: 0.45, Right: 0.95, Bottom: 0.55},
		DoublePingLines: 5,
		MinLinesBoost:   3,
	}
}
