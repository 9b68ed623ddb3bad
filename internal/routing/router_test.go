package routing

import (
	"testing"

	"github.com/zulandar/loadline/internal/capability"
	"github.com/zulandar/loadline/internal/loadstate"
	"github.com/zulandar/loadline/internal/models"
)

func brokerTail(content string) []models.ConversationEntry {
	return []models.ConversationEntry{
		{ThreadID: "t-1", Sequence: 1, Role: models.RoleAgent, Content: "posting", CapabilityTag: "bootstrap"},
		{ThreadID: "t-1", Sequence: 2, Role: models.RoleBroker, Content: content},
	}
}

func fullState(status loadstate.Status) *models.LoadNegotiation {
	return &models.LoadNegotiation{
		LoadID:      "L-1",
		Status:      string(status),
		Origin:      "Chicago, IL",
		Destination: "Dallas, TX",
		WeightLbs:   42000,
		Equipment:   "V",
	}
}

func TestRoute_CancellationBeatsEverything(t *testing.T) {
	tail := brokerTail("Sorry, this one is already covered.")
	for _, status := range []loadstate.Status{
		loadstate.StatusNew, loadstate.StatusInfoRequested, loadstate.StatusVerified,
		loadstate.StatusWarningChecked, loadstate.StatusNegotiating,
	} {
		got := Route(tail, fullState(status), Policy{})
		if got != capability.Cancel {
			t.Errorf("status %s: route = %s, want cancel", status, got)
		}
	}
}

func TestRoute_ComplianceOwed(t *testing.T) {
	tail := brokerTail("Sounds good, what can you do on rate?")
	got := Route(tail, fullState(loadstate.StatusVerified), Policy{})
	if got != capability.ComplianceCheck {
		t.Errorf("route = %s, want compliance_check", got)
	}
}

func TestRoute_MissingFields(t *testing.T) {
	tail := brokerTail("Load is still open.")
	state := &models.LoadNegotiation{LoadID: "L-1", Status: string(loadstate.StatusNew)}
	got := Route(tail, state, Policy{})
	if got != capability.Extract {
		t.Errorf("route = %s, want extract", got)
	}

	state.Status = string(loadstate.StatusInfoRequested)
	got = Route(tail, state, Policy{})
	if got != capability.Extract {
		t.Errorf("info_requested route = %s, want extract", got)
	}
}

func TestRoute_CompanyQuestion(t *testing.T) {
	tail := brokerTail("Before we go further, what is your MC number?")

	// With full fields, the question wins under either policy.
	got := Route(tail, fullState(loadstate.StatusNew), Policy{})
	if got != capability.CompanyInfo {
		t.Errorf("route = %s, want company_info", got)
	}
}

func TestRoute_CompanyQuestionVsMissingFields(t *testing.T) {
	tail := brokerTail("What is your MC number?")
	state := &models.LoadNegotiation{LoadID: "L-1", Status: string(loadstate.StatusNew)}

	// Default policy: missing fields outrank the company question.
	if got := Route(tail, state, Policy{}); got != capability.Extract {
		t.Errorf("default policy route = %s, want extract", got)
	}
	// Flipped policy: the question wins.
	if got := Route(tail, state, Policy{CompanyQuestionFirst: true}); got != capability.CompanyInfo {
		t.Errorf("question-first route = %s, want company_info", got)
	}
}

func TestRoute_NegotiationOwed(t *testing.T) {
	tail := brokerTail("Best I can do is $1.50 a mile.")
	for _, status := range []loadstate.Status{loadstate.StatusWarningChecked, loadstate.StatusNegotiating} {
		got := Route(tail, fullState(status), Policy{})
		if got != capability.Negotiate {
			t.Errorf("status %s: route = %s, want negotiate", status, got)
		}
	}
}

func TestRoute_Deterministic(t *testing.T) {
	tail := brokerTail("Can you do $1.55? Also what is your MC number?")
	state := fullState(loadstate.StatusNegotiating)
	first := Route(tail, state, Policy{})
	for i := 0; i < 10; i++ {
		if got := Route(tail, state, Policy{}); got != first {
			t.Fatalf("route changed between identical calls: %s vs %s", first, got)
		}
	}
}

func TestRoute_EmptyTailFallsBackToExtract(t *testing.T) {
	state := fullState(loadstate.StatusNew)
	got := Route(nil, state, Policy{})
	if got != capability.Extract {
		t.Errorf("route = %s, want extract", got)
	}
}

func TestIsCancellation(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Sorry, already covered.", true},
		{"This was assigned to another carrier this morning.", true},
		{"The load is off for today", true},
		{"Load fell through, will keep you posted.", true},
		{"Please cancel this one.", true},
		{"It is no longer available.", true},
		{"We might cancel if the shipper flakes", false},
		{"Still open, send your rate.", false},
	}
	for _, tt := range tests {
		if got := IsCancellation(tt.text); got != tt.want {
			t.Errorf("IsCancellation(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestIsCompanyQuestion(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"What's your MC number?", true},
		{"Send over your insurance certificate and carrier packet.", true},
		{"Do you have your own operating authority?", true},
		{"Tell me about your company.", true},
		{"Can you do $1.50/mile?", false},
		{"Pickup is in Chicago tomorrow at 8am.", false},
	}
	for _, tt := range tests {
		if got := IsCompanyQuestion(tt.text); got != tt.want {
			t.Errorf("IsCompanyQuestion(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
