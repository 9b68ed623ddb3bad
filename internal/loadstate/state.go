// Package loadstate tracks the negotiation status of a load and persists it
// with optimistic concurrency.
package loadstate

// Status is a load's position in the negotiation state machine.
type Status string

// Negotiation statuses. Transitions are monotonic along the machine; the
// three terminal statuses have no outgoing edges.
const (
	StatusNew            Status = "new"
	StatusInfoRequested  Status = "info_requested"
	StatusVerified       Status = "verified"
	StatusWarningChecked Status = "warning_checked"
	StatusNegotiating    Status = "negotiating"
	StatusAccepted       Status = "accepted"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
)

// Rejection reasons recorded on LoadNegotiation.Reason.
const (
	ReasonBelowFloor         = "below_floor"
	ReasonComplianceBlocked  = "compliance_blocked"
	ReasonNegotiationExhaust = "negotiation_exhausted"
	ReasonStale              = "stale"
	ReasonBrokerCancelled    = "broker_cancelled"
)

// transitions enumerates every legal edge. Cancellation is handled
// separately in CanTransition because it is reachable from any
// non-terminal status.
var transitions = map[Status][]Status{
	StatusNew:            {StatusInfoRequested, StatusVerified},
	StatusInfoRequested:  {StatusVerified},
	StatusVerified:       {StatusWarningChecked, StatusRejected},
	StatusWarningChecked: {StatusNegotiating, StatusRejected},
	StatusNegotiating:    {StatusNegotiating, StatusAccepted, StatusRejected},
	StatusAccepted:       nil,
	StatusRejected:       nil,
	StatusCancelled:      nil,
}

// Terminal reports whether a status has no outgoing edges.
func Terminal(s Status) bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Known reports whether s is one of the defined statuses.
func Known(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the edge from → to is legal. CANCELLED is
// reachable from every non-terminal status and always takes precedence over
// the status's other outgoing edges.
func CanTransition(from, to Status) bool {
	if !Known(from) || !Known(to) {
		return false
	}
	if to == StatusCancelled {
		return !Terminal(from)
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
