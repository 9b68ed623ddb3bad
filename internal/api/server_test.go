package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/loadline/internal/capability"
	"github.com/zulandar/loadline/internal/config"
	"github.com/zulandar/loadline/internal/loadstate"
	"github.com/zulandar/loadline/internal/locator"
	"github.com/zulandar/loadline/internal/mailer"
	"github.com/zulandar/loadline/internal/models"
	"github.com/zulandar/loadline/internal/orchestrator"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.ConversationEntry{},
		&models.LoadNegotiation{},
		&models.Warning{},
		&models.CapabilityLog{},
	)
	if err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func testOpts(t *testing.T, mock *capability.MockInvoker) StartOpts {
	t.Helper()
	db := openTestDB(t)
	cfg := &config.Config{
		Company: config.CompanyConfig{Name: "Wide Road Carriers", MCNumber: "784512"},
		Truck:   config.TruckConfig{ID: "TRK-7", Equipment: "V", MaxWeightLbs: 44000},
		Negotiation: config.NegotiationConfig{
			FloorRatePerMile:  1.40,
			TargetRatePerMile: 1.90,
			RoundingIncrement: 0.05,
			MaxRounds:         3,
		},
		Capability: config.CapabilityConfig{Provider: "mock", MaxAttempts: 1},
	}
	o := orchestrator.New(db, mock, mailer.NewMemoryMailer(), nil, cfg, zerolog.Nop())
	return StartOpts{
		DB:           db,
		Orchestrator: o,
		Locator:      locator.New(""),
		Cfg:          cfg,
		Log:          zerolog.Nop(),
	}
}

func TestStart_Validation(t *testing.T) {
	if err := Start(context.Background(), StartOpts{}); err == nil || !strings.Contains(err.Error(), "db is required") {
		t.Errorf("err = %v, want db required", err)
	}
	opts := StartOpts{DB: openTestDB(t)}
	if err := Start(context.Background(), opts); err == nil || !strings.Contains(err.Error(), "orchestrator is required") {
		t.Errorf("err = %v, want orchestrator required", err)
	}
}

func TestHealthz(t *testing.T) {
	router := newRouter(testOpts(t, capability.NewMockInvoker()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newRouter(testOpts(t, capability.NewMockInvoker()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestInboundEmail_BadPayload(t *testing.T) {
	router := newRouter(testOpts(t, capability.NewMockInvoker()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/emails/inbound", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/emails/inbound", strings.NewReader(`{"subject":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status without ids = %d, want 400", w.Code)
	}
}

func TestInboundEmail_ProcessesAndReturnsOutcome(t *testing.T) {
	mock := capability.NewMockInvoker().
		Script(capability.Extract, &capability.Result{Fields: map[string]interface{}{}, Confidence: 0.3})
	opts := testOpts(t, mock)
	router := newRouter(opts)

	payload := `{"threadId":"t-1","loadId":"L-1","subject":"Load Chicago to Dallas","body":"Van load, interested?"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/emails/inbound", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out orchestrator.Outcome
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if out.Disposition != "replied" {
		t.Errorf("disposition = %q, want replied", out.Disposition)
	}
	if out.Status != string(loadstate.StatusInfoRequested) {
		t.Errorf("status = %q, want info_requested", out.Status)
	}
}

func TestLoadStatus(t *testing.T) {
	opts := testOpts(t, capability.NewMockInvoker())
	router := newRouter(opts)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/loads/L-404", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	if err := loadstate.Create(opts.DB, &models.LoadNegotiation{LoadID: "L-1", ThreadID: "t-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/loads/L-1", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"new"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestLoadETA_NotConfigured(t *testing.T) {
	router := newRouter(testOpts(t, capability.NewMockInvoker()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/loads/L-1/eta", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", w.Code)
	}
}

func TestLoadETA_ProxiesLocator(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/trucks/TRK-7/position" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"truckId":"TRK-7","city":"Joliet","state":"IL","etaHours":3.5}`))
	}))
	defer upstream.Close()

	opts := testOpts(t, capability.NewMockInvoker())
	opts.Locator = locator.New(upstream.URL)
	router := newRouter(opts)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/loads/L-1/eta", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Joliet") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestThreadEntries(t *testing.T) {
	mock := capability.NewMockInvoker().
		Script(capability.Extract, &capability.Result{Fields: map[string]interface{}{}, Confidence: 0.3})
	opts := testOpts(t, mock)
	router := newRouter(opts)

	payload := `{"threadId":"t-9","loadId":"L-9","subject":"Load","body":"Van load, interested?"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/emails/inbound", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("seed run failed: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/threads/t-9/entries", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Entries []models.ConversationEntry `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Entries) != 2 {
		t.Errorf("entries = %d, want broker + agent", len(body.Entries))
	}
}
