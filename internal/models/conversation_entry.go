package models

import "time"

// Conversation roles. Broker messages come in, agent messages go out,
// system entries record internal capability results for the thread.
const (
	RoleBroker = "broker"
	RoleSystem = "system"
	RoleAgent  = "agent"
)

// ConversationEntry is one turn in a negotiation thread. Entries are
// immutable once appended; Sequence is strictly increasing per ThreadID
// and the composite unique index rejects duplicates.
type ConversationEntry struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	ThreadID      string `gorm:"size:64;not null;uniqueIndex:idx_thread_seq,priority:1"`
	Sequence      int    `gorm:"not null;uniqueIndex:idx_thread_seq,priority:2"`
	Role          string `gorm:"size:16;not null"`
	Content       string `gorm:"type:mediumtext;not null"`
	CapabilityTag string `gorm:"size:32"`
	CreatedAt     time.Time
}
