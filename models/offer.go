package models

import "time"

// OfferRecord is one platform's extracted offer from one frame, persisted
// for history and earnings review. Derived profitability figures are stored
// because the cost constants they were computed with may be retuned later.
type OfferRecord struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      uint   `gorm:"index;not null"`
	FrameID     *uint  `gorm:"index;uniqueIndex:idx_frame_platform"`
	Platform    string `gorm:"size:16;not null;uniqueIndex:idx_frame_platform"`
	BaseFare    float64
	Bonus       float64
	PickupKm    float64
	DropKm      float64
	ProfitPerKm float64
	Profitable  bool `gorm:"index"`
	Blocked     bool `gorm:"default:false"`
	Confidence  float64
	SeenAt      time.Time `gorm:"not null;index"`
}
