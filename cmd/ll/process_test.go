package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/loadline/internal/db"
	"github.com/zulandar/loadline/internal/loadstate"
	"github.com/zulandar/loadline/internal/models"
)

// writeTestConfig writes a config that runs fully offline: sqlite store and
// the mock capability provider.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := `
company:
  name: Wide Road Carriers
  mc_number: "784512"
truck:
  equipment: V
  max_weight_lbs: 44000
negotiation:
  floor_rate_per_mile: 1.40
  target_rate_per_mile: 1.90
database:
  driver: sqlite
  path: ` + filepath.Join(dir, "ll.db") + `
capability:
  provider: mock
  max_attempts: 1
mailer:
  base_url: http://127.0.0.1:9
`
	path := filepath.Join(dir, "loadline.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestProcessCmd_DryRun(t *testing.T) {
	cfgPath := writeTestConfig(t)

	emailPath := filepath.Join(filepath.Dir(cfgPath), "email.json")
	email := `{"threadId":"t-1","loadId":"L-1","subject":"Load Chicago to Dallas","body":"Van load available, interested?"}`
	if err := os.WriteFile(emailPath, []byte(email), 0644); err != nil {
		t.Fatalf("write email: %v", err)
	}

	// The mock provider rejects every unscripted call, which the pipeline
	// answers by asking for the missing load details.
	out, err := runCommand(t, "process", emailPath, "--config", cfgPath, "--dry-run")
	if err != nil {
		t.Fatalf("process: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"replied"`) {
		t.Errorf("output missing disposition: %s", out)
	}
	if !strings.Contains(out, "reply (not sent)") {
		t.Errorf("dry run did not print the reply: %s", out)
	}
	if !strings.Contains(out, "pickup location") {
		t.Errorf("reply body = %s", out)
	}
}

func TestProcessCmd_BadEmailFile(t *testing.T) {
	cfgPath := writeTestConfig(t)

	emailPath := filepath.Join(filepath.Dir(cfgPath), "bad.json")
	if err := os.WriteFile(emailPath, []byte(`{"subject":"no ids"}`), 0644); err != nil {
		t.Fatalf("write email: %v", err)
	}

	if _, err := runCommand(t, "process", emailPath, "--config", cfgPath, "--dry-run"); err == nil {
		t.Error("expected error for email without identifiers")
	}
}

func TestStatusCmd_ShowsLoad(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, gormDB, err := openFromConfig(cfgPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	state := &models.LoadNegotiation{
		LoadID:   "L-7",
		ThreadID: "t-7",
		Origin:   "Chicago, IL",
	}
	if err := loadstate.Create(gormDB, state); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, err := runCommand(t, "status", "L-7", "--config", cfgPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Load L-7") || !strings.Contains(out, "Chicago, IL") {
		t.Errorf("output = %s", out)
	}

	out, err = runCommand(t, "status", "--config", cfgPath)
	if err != nil {
		t.Fatalf("status list: %v", err)
	}
	if !strings.Contains(out, "L-7") || !strings.Contains(out, "new") {
		t.Errorf("list output = %s", out)
	}
}
