package models

import "time"

// LoadNegotiation is the mutable record of a load's negotiation. One row per
// load, created on the first inbound email referencing it. Version backs the
// optimistic-concurrency check in loadstate; rows are never hard-deleted
// while a negotiation is active — terminal states set ClosedAt instead.
type LoadNegotiation struct {
	LoadID        string  `gorm:"primaryKey;size:64"`
	ThreadID      string  `gorm:"size:64;index"`
	Status        string  `gorm:"size:16;default:new;index"`
	Origin        string  `gorm:"size:128"`
	Destination   string  `gorm:"size:128"`
	DistanceMiles float64 `gorm:"default:0"`
	WeightLbs     float64 `gorm:"default:0"`
	Equipment     string  `gorm:"size:32"`
	Commodity     string  `gorm:"size:128"`
	RatePerMile   float64 `gorm:"default:0"`
	TotalRate     float64 `gorm:"default:0"`
	InfoRequested bool    `gorm:"default:false"`
	BidRequested  bool    `gorm:"default:false"`
	Rounds        int     `gorm:"default:0"`
	Reason        string  `gorm:"size:32"`
	Version       int     `gorm:"default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ClosedAt      *time.Time

	Warnings []Warning `gorm:"foreignKey:LoadID"`
}

// Warning severities.
const (
	SeverityInfo     = "info"
	SeverityCaution  = "caution"
	SeverityBlocking = "blocking"
)

// Warning is a compliance finding raised against a load. Warnings are
// append-only for the lifetime of a negotiation; a later explicit action
// sets Resolved rather than deleting the row.
type Warning struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	LoadID      string `gorm:"size:64;not null;index"`
	Kind        string `gorm:"size:32;not null"`
	Description string `gorm:"type:text"`
	Severity    string `gorm:"size:16;default:info"`
	Resolved    bool   `gorm:"default:false"`
	CreatedAt   time.Time
}
