package loadstate

import "testing"

var allStatuses = []Status{
	StatusNew, StatusInfoRequested, StatusVerified, StatusWarningChecked,
	StatusNegotiating, StatusAccepted, StatusRejected, StatusCancelled,
}

// legalEdges is the full edge set of the state machine, cancellation
// included. The exhaustive walk below checks every (from, to) pair against
// this table.
var legalEdges = map[Status]map[Status]bool{
	StatusNew:            {StatusInfoRequested: true, StatusVerified: true, StatusCancelled: true},
	StatusInfoRequested:  {StatusVerified: true, StatusCancelled: true},
	StatusVerified:       {StatusWarningChecked: true, StatusRejected: true, StatusCancelled: true},
	StatusWarningChecked: {StatusNegotiating: true, StatusRejected: true, StatusCancelled: true},
	StatusNegotiating:    {StatusNegotiating: true, StatusAccepted: true, StatusRejected: true, StatusCancelled: true},
	StatusAccepted:       {},
	StatusRejected:       {},
	StatusCancelled:      {},
}

func TestCanTransition_ExhaustiveWalk(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := legalEdges[from][to]
			got := CanTransition(from, to)
			if got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	if CanTransition("limbo", StatusVerified) {
		t.Error("transition from unknown status allowed")
	}
	if CanTransition(StatusNew, "limbo") {
		t.Error("transition to unknown status allowed")
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusNew, false},
		{StatusInfoRequested, false},
		{StatusVerified, false},
		{StatusWarningChecked, false},
		{StatusNegotiating, false},
		{StatusAccepted, true},
		{StatusRejected, true},
		{StatusCancelled, true},
	}
	for _, tt := range tests {
		if got := Terminal(tt.status); got != tt.want {
			t.Errorf("Terminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestCancelledFromAnyNonTerminal(t *testing.T) {
	for _, from := range allStatuses {
		got := CanTransition(from, StatusCancelled)
		want := !Terminal(from)
		if got != want {
			t.Errorf("CanTransition(%s, cancelled) = %v, want %v", from, got, want)
		}
	}
}

func TestNegotiatingSelfLoop(t *testing.T) {
	if !CanTransition(StatusNegotiating, StatusNegotiating) {
		t.Error("negotiating self-loop must be legal")
	}
}

func TestNoSkippingVerification(t *testing.T) {
	// Negotiation cannot start before fields are verified and the
	// compliance check has run.
	if CanTransition(StatusNew, StatusNegotiating) {
		t.Error("new → negotiating must be illegal")
	}
	if CanTransition(StatusVerified, StatusNegotiating) {
		t.Error("verified → negotiating must be illegal")
	}
	if CanTransition(StatusNew, StatusWarningChecked) {
		t.Error("new → warning_checked must be illegal")
	}
}
