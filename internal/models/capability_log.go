package models

import "time"

// CapabilityLog captures complete capability I/O for debugging.
type CapabilityLog struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ThreadID   string `gorm:"size:64;index:idx_thread_capability"`
	LoadID     string `gorm:"size:64;index"`
	Capability string `gorm:"size:32;index:idx_thread_capability"`
	Direction  string `gorm:"size:4"`
	Content    string `gorm:"type:mediumtext"`
	Model      string `gorm:"size:64"`
	LatencyMs  int
	CreatedAt  time.Time
}
