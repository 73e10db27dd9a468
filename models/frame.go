package models

import "time"

// FrameCapture is one processed screen frame. Failed captures keep their
// record so the backlog can be reviewed instead of silently vanishing.
type FrameCapture struct {
	ID           uint `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UserID       uint   `gorm:"index;not null;uniqueIndex:idx_user_frame"`
	FileName     string `gorm:"size:255;not null;uniqueIndex:idx_user_frame"`
	StorePath    string `gorm:"column:store_path;size:512"`
	ContentType  string `gorm:"size:128"`
	Width        int
	Height       int
	LineCount    int
	DoublePing   bool          `gorm:"default:false"`
	Failed       bool          `gorm:"default:false;index"`
	FailedReason string        `gorm:"size:255"`
	Offers       []OfferRecord `gorm:"foreignKey:FrameID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
