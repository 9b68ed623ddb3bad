package loadstate

import (
	"errors"
	"testing"

	"github.com/zulandar/loadline/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.LoadNegotiation{}, &models.Warning{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func TestGet_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := Get(db, "L-404")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateAndGet(t *testing.T) {
	db := openTestDB(t)

	state := &models.LoadNegotiation{LoadID: "L-1", ThreadID: "t-1"}
	if err := Create(db, state); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := Get(db, "L-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != string(StatusNew) {
		t.Errorf("status = %q, want new", got.Status)
	}
	if got.Version != 0 {
		t.Errorf("version = %d, want 0", got.Version)
	}
}

func TestPut_BumpsVersion(t *testing.T) {
	db := openTestDB(t)
	Create(db, &models.LoadNegotiation{LoadID: "L-1", ThreadID: "t-1"})

	state, _ := Get(db, "L-1")
	state.Status = string(StatusVerified)
	state.Origin = "Chicago, IL"
	if err := Put(db, state); err != nil {
		t.Fatalf("put: %v", err)
	}
	if state.Version != 1 {
		t.Errorf("in-memory version = %d, want 1", state.Version)
	}

	got, _ := Get(db, "L-1")
	if got.Status != string(StatusVerified) || got.Origin != "Chicago, IL" {
		t.Errorf("stored state = %+v", got)
	}
	if got.Version != 1 {
		t.Errorf("stored version = %d, want 1", got.Version)
	}
}

func TestPut_ConcurrentModification(t *testing.T) {
	db := openTestDB(t)
	Create(db, &models.LoadNegotiation{LoadID: "L-1", ThreadID: "t-1"})

	first, _ := Get(db, "L-1")
	second, _ := Get(db, "L-1")

	first.Status = string(StatusVerified)
	if err := Put(db, first); err != nil {
		t.Fatalf("first put: %v", err)
	}

	second.Status = string(StatusInfoRequested)
	err := Put(db, second)
	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("second put err = %v, want ErrConcurrentModification", err)
	}

	// The losing write must leave no trace.
	got, _ := Get(db, "L-1")
	if got.Status != string(StatusVerified) {
		t.Errorf("stored status = %q, want verified", got.Status)
	}
}

func TestPut_TerminalStampsClosedAt(t *testing.T) {
	db := openTestDB(t)
	Create(db, &models.LoadNegotiation{LoadID: "L-1", ThreadID: "t-1", Status: string(StatusNegotiating)})

	state, _ := Get(db, "L-1")
	state.Status = string(StatusAccepted)
	if err := Put(db, state); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, _ := Get(db, "L-1")
	if got.ClosedAt == nil {
		t.Error("ClosedAt not stamped on terminal status")
	}
}

func TestAppendWarnings_AppendOnlyAndDeduped(t *testing.T) {
	db := openTestDB(t)
	Create(db, &models.LoadNegotiation{LoadID: "L-1", ThreadID: "t-1"})

	first := []models.Warning{
		{Kind: "hazmat", Description: "hazmat endorsement missing", Severity: models.SeverityBlocking},
		{Kind: "overweight", Description: "48k lbs on a 45k trailer", Severity: models.SeverityCaution},
	}
	if err := AppendWarnings(db, "L-1", first); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Re-raising the same kind is a no-op; a new kind still lands.
	second := []models.Warning{
		{Kind: "hazmat", Description: "duplicate", Severity: models.SeverityBlocking},
		{Kind: "excluded_state", Description: "route crosses NV", Severity: models.SeverityInfo},
	}
	if err := AppendWarnings(db, "L-1", second); err != nil {
		t.Fatalf("append: %v", err)
	}

	state, _ := Get(db, "L-1")
	if len(state.Warnings) != 3 {
		t.Fatalf("len(warnings) = %d, want 3", len(state.Warnings))
	}
}

func TestAppendWarnings_DefaultSeverity(t *testing.T) {
	db := openTestDB(t)
	Create(db, &models.LoadNegotiation{LoadID: "L-1"})

	AppendWarnings(db, "L-1", []models.Warning{{Kind: "note", Description: "n"}})
	state, _ := Get(db, "L-1")
	if len(state.Warnings) != 1 || state.Warnings[0].Severity != models.SeverityInfo {
		t.Errorf("warnings = %+v", state.Warnings)
	}
}

func TestHasBlockingWarning(t *testing.T) {
	state := &models.LoadNegotiation{
		Warnings: []models.Warning{
			{Kind: "a", Severity: models.SeverityCaution},
			{Kind: "b", Severity: models.SeverityBlocking, Resolved: true},
		},
	}
	if HasBlockingWarning(state) {
		t.Error("resolved blocking warning must not count")
	}
	state.Warnings = append(state.Warnings, models.Warning{Kind: "c", Severity: models.SeverityBlocking})
	if !HasBlockingWarning(state) {
		t.Error("unresolved blocking warning must count")
	}
}

func TestRequiredFieldsAndMissing(t *testing.T) {
	state := &models.LoadNegotiation{}
	if RequiredFieldsPresent(state) {
		t.Error("empty state must not be complete")
	}
	missing := MissingFields(state)
	want := []string{"origin", "destination", "weight", "equipment"}
	if len(missing) != len(want) {
		t.Fatalf("missing = %v", missing)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Errorf("missing[%d] = %q, want %q", i, missing[i], want[i])
		}
	}

	state.Origin = "Chicago, IL"
	state.Destination = "Dallas, TX"
	state.WeightLbs = 42000
	state.Equipment = "V"
	if !RequiredFieldsPresent(state) {
		t.Error("complete state must be complete")
	}
	if m := MissingFields(state); len(m) != 0 {
		t.Errorf("missing = %v, want none", m)
	}
}
