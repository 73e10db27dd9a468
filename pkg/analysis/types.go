package analysis

import (
	"encoding/json"
	"image"
)

// Platform identifies which ride-hailing app rendered an offer card.
type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformRapido
	PlatformUber
)

func (p Platform) String() string {
	switch p {
	case PlatformRapido:
		return "Rapido"
	case PlatformUber:
		return "Uber"
	}
	return "Unknown"
}

// DetectedText is one recognized OCR line: text content, its pixel bounding
// box within the captured frame, and the recognizer's confidence in [0,1].
// Produced fresh per frame by the vision layer; never retained across frames.
type DetectedText struct {
	Text       string          `json:"text"`
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"`
}

// FareResult is one platform's extracted offer for a single frame.
// A nil *FareResult means the required fields could not be recovered;
// partially-filled placeholders are never produced.
type FareResult struct {
	Platform   Platform `json:"platform"`
	BaseFare   float64  `json:"base_fare"`
	Bonus      float64  `json:"bonus"`
	PickupKm   float64  `json:"pickup_km"`
	DropKm     float64  `json:"drop_km"`
	Blocked    bool     `json:"blocked"`
	Confidence float64  `json:"confidence"`

	costPerKm       float64
	profitThreshold float64
}

// TotalFare is base fare plus bonus/surge.
func (r *FareResult) TotalFare() float64 { return r.BaseFare + r.Bonus }

// TotalKm is pickup plus drop distance.
func (r *FareResult) TotalKm() float64 { return r.PickupKm + r.DropKm }

// Cost is the fixed running cost for the whole trip.
func (r *FareResult) Cost() float64 { return r.TotalKm() * r.costPerKm }

// NetProfit is total fare minus running cost.
func (r *FareResult) NetProfit() float64 { return r.TotalFare() - r.Cost() }

// ProfitPerKm is net profit per kilometre; 0 when total distance is 0 so the
// value stays finite for blocked or distance-less results.
func (r *FareResult) ProfitPerKm() float64 {
	km := r.TotalKm()
	if km == 0 {
		return 0
	}
	return r.NetProfit() / km
}

// Profitable reports whether profit-per-km meets the configured threshold.
// The boundary is inclusive: exactly the threshold counts as profitable.
func (r *FareResult) Profitable() bool { return r.ProfitPerKm() >= r.profitThreshold }

// MarshalJSON includes the derived profitability fields so display clients
// can pick state/colour without recomputing them.
func (r *FareResult) MarshalJSON() ([]byte, error) {
	type alias FareResult
	return json.Marshal(struct {
		*alias
		TotalFare   float64 `json:"total_fare"`
		TotalKm     float64 `json:"total_km"`
		NetProfit   float64 `json:"net_profit"`
		ProfitPerKm float64 `json:"profit_per_km"`
		Profitable  bool    `json:"profitable"`
	}{
		alias:       (*alias)(r),
		TotalFare:   r.TotalFare(),
		TotalKm:     r.TotalKm(),
		NetProfit:   r.NetProfit(),
		ProfitPerKm: r.ProfitPerKm(),
		Profitable:  r.Profitable(),
	})
}

// AnalysisResult is the per-frame output: an optional FareResult per
// platform, the simultaneous-offer flag, and the raw recognized strings
// kept for diagnostics.
type AnalysisResult struct {
	Rapido     *FareResult `json:"rapido,omitempty"`
	Uber       *FareResult `json:"uber,omitempty"`
	DoublePing bool        `json:"double_ping"`
	RawLines   []string    `json:"raw_lines"`
}
