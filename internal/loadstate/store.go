package loadstate

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/loadline/internal/models"
	"gorm.io/gorm"
)

// ErrConcurrentModification is returned by Put when the stored row was
// mutated since the caller's Get. The caller re-reads and retries the whole
// routing decision.
var ErrConcurrentModification = errors.New("loadstate: concurrent modification")

// ErrNotFound is returned by Get when no negotiation exists for the load.
var ErrNotFound = errors.New("loadstate: not found")

// Get loads the negotiation row for loadID, warnings included.
func Get(db *gorm.DB, loadID string) (*models.LoadNegotiation, error) {
	if loadID == "" {
		return nil, fmt.Errorf("loadstate: loadID is required")
	}
	var state models.LoadNegotiation
	err := db.Preload("Warnings").First(&state, "load_id = ?", loadID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loadstate: get %s: %w", loadID, err)
	}
	return &state, nil
}

// Create inserts a fresh negotiation row in status new.
func Create(db *gorm.DB, state *models.LoadNegotiation) error {
	if state == nil || state.LoadID == "" {
		return fmt.Errorf("loadstate: loadID is required")
	}
	if state.Status == "" {
		state.Status = string(StatusNew)
	}
	state.Version = 0
	if err := db.Create(state).Error; err != nil {
		return fmt.Errorf("loadstate: create %s: %w", state.LoadID, err)
	}
	return nil
}

// Put writes the mutated state back, guarded by the version read at Get
// time. The write succeeds only when no other writer has bumped the version
// in between; otherwise ErrConcurrentModification is returned and nothing is
// persisted. Terminal statuses stamp ClosedAt.
func Put(db *gorm.DB, state *models.LoadNegotiation) error {
	if state == nil || state.LoadID == "" {
		return fmt.Errorf("loadstate: loadID is required")
	}
	if Terminal(Status(state.Status)) && state.ClosedAt == nil {
		now := time.Now()
		state.ClosedAt = &now
	}

	readVersion := state.Version
	updates := map[string]interface{}{
		"thread_id":      state.ThreadID,
		"status":         state.Status,
		"origin":         state.Origin,
		"destination":    state.Destination,
		"distance_miles": state.DistanceMiles,
		"weight_lbs":     state.WeightLbs,
		"equipment":      state.Equipment,
		"commodity":      state.Commodity,
		"rate_per_mile":  state.RatePerMile,
		"total_rate":     state.TotalRate,
		"info_requested": state.InfoRequested,
		"bid_requested":  state.BidRequested,
		"rounds":         state.Rounds,
		"reason":         state.Reason,
		"closed_at":      state.ClosedAt,
		"version":        readVersion + 1,
	}

	result := db.Model(&models.LoadNegotiation{}).
		Where("load_id = ? AND version = ?", state.LoadID, readVersion).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("loadstate: put %s: %w", state.LoadID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	state.Version = readVersion + 1
	return nil
}

// AppendWarnings records new compliance findings for the load. Existing
// warnings are never touched; a finding with the same kind as one already
// raised is skipped so re-runs stay idempotent.
func AppendWarnings(db *gorm.DB, loadID string, warnings []models.Warning) error {
	if loadID == "" {
		return fmt.Errorf("loadstate: loadID is required")
	}
	if len(warnings) == 0 {
		return nil
	}

	var existing []models.Warning
	if err := db.Where("load_id = ?", loadID).Find(&existing).Error; err != nil {
		return fmt.Errorf("loadstate: append warnings %s: %w", loadID, err)
	}
	seen := make(map[string]bool, len(existing))
	for _, w := range existing {
		seen[w.Kind] = true
	}

	for i := range warnings {
		if seen[warnings[i].Kind] {
			continue
		}
		warnings[i].LoadID = loadID
		if warnings[i].Severity == "" {
			warnings[i].Severity = models.SeverityInfo
		}
		if err := db.Create(&warnings[i]).Error; err != nil {
			return fmt.Errorf("loadstate: append warnings %s: %w", loadID, err)
		}
		seen[warnings[i].Kind] = true
	}
	return nil
}

// HasBlockingWarning reports whether any unresolved blocking warning exists
// on the state already in hand.
func HasBlockingWarning(state *models.LoadNegotiation) bool {
	for _, w := range state.Warnings {
		if w.Severity == models.SeverityBlocking && !w.Resolved {
			return true
		}
	}
	return false
}

// RequiredFieldsPresent reports whether origin, destination, weight and
// equipment are all known. Negotiation cannot start before these are
// populated.
func RequiredFieldsPresent(state *models.LoadNegotiation) bool {
	return state.Origin != "" &&
		state.Destination != "" &&
		state.WeightLbs > 0 &&
		state.Equipment != ""
}

// MissingFields lists the required fields that are still unknown, in a
// fixed order so replies are deterministic.
func MissingFields(state *models.LoadNegotiation) []string {
	var missing []string
	if state.Origin == "" {
		missing = append(missing, "origin")
	}
	if state.Destination == "" {
		missing = append(missing, "destination")
	}
	if state.WeightLbs <= 0 {
		missing = append(missing, "weight")
	}
	if state.Equipment == "" {
		missing = append(missing, "equipment")
	}
	return missing
}
