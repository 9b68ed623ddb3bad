// Package ledger maintains the append-only conversation log per negotiation
// thread. The ledger is the single source of truth for routing decisions:
// every inbound broker email, every internal capability result, and every
// outbound agent reply lands here before anything else consults it.
package ledger

import (
	"fmt"

	"github.com/zulandar/loadline/internal/models"
	"gorm.io/gorm"
)

// Append durably records one conversation turn for the thread and returns
// the stored entry. The sequence is assigned inside a transaction so it is
// strictly increasing per thread; the unique (thread_id, sequence) index
// rejects a racing writer. Either the entry is recorded whole or an error
// is returned and nothing is persisted.
func Append(db *gorm.DB, threadID, role, content, capabilityTag string) (*models.ConversationEntry, error) {
	if threadID == "" {
		return nil, fmt.Errorf("ledger: threadID is required")
	}
	switch role {
	case models.RoleBroker, models.RoleSystem, models.RoleAgent:
	default:
		return nil, fmt.Errorf("ledger: unknown role %q", role)
	}

	entry := models.ConversationEntry{
		ThreadID:      threadID,
		Role:          role,
		Content:       content,
		CapabilityTag: capabilityTag,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var last int
		row := tx.Model(&models.ConversationEntry{}).
			Where("thread_id = ?", threadID).
			Select("COALESCE(MAX(sequence), 0)").
			Row()
		if err := row.Scan(&last); err != nil {
			return fmt.Errorf("scan max sequence: %w", err)
		}
		entry.Sequence = last + 1
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("create entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: append %s: %w", threadID, err)
	}
	return &entry, nil
}

// Read returns the full thread history, oldest first. Read reflects all
// prior successful appends for the thread.
func Read(db *gorm.DB, threadID string) ([]models.ConversationEntry, error) {
	if threadID == "" {
		return nil, fmt.Errorf("ledger: threadID is required")
	}
	var entries []models.ConversationEntry
	if err := db.Where("thread_id = ?", threadID).
		Order("sequence ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", threadID, err)
	}
	return entries, nil
}

// Tail returns up to n most recent entries, oldest first.
func Tail(db *gorm.DB, threadID string, n int) ([]models.ConversationEntry, error) {
	if threadID == "" {
		return nil, fmt.Errorf("ledger: threadID is required")
	}
	if n <= 0 {
		return nil, nil
	}
	var entries []models.ConversationEntry
	if err := db.Where("thread_id = ?", threadID).
		Order("sequence DESC").Limit(n).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("ledger: tail %s: %w", threadID, err)
	}
	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// LastInbound returns the most recent broker entry, or nil when the thread
// has no broker turns yet.
func LastInbound(db *gorm.DB, threadID string) (*models.ConversationEntry, error) {
	if threadID == "" {
		return nil, fmt.Errorf("ledger: threadID is required")
	}
	var entry models.ConversationEntry
	err := db.Where("thread_id = ? AND role = ?", threadID, models.RoleBroker).
		Order("sequence DESC").First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: last inbound %s: %w", threadID, err)
	}
	return &entry, nil
}
