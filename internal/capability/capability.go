// Package capability wraps the opaque text-understanding calls behind a
// uniform request/result contract. The adapter never retries; retry policy
// belongs to the orchestrator.
package capability

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/zulandar/loadline/internal/models"
)

// Name identifies one of the closed set of capabilities.
type Name string

const (
	// Extract pulls structured load fields out of the conversation.
	Extract Name = "extract"
	// ComplianceCheck cross-references load details against truck
	// attributes and raises warnings.
	ComplianceCheck Name = "compliance_check"
	// CompanyInfo answers a broker's question about the carrier.
	CompanyInfo Name = "company_info"
	// Negotiate drafts the outbound negotiation message around a rate the
	// engine has already decided.
	Negotiate Name = "negotiate"
	// Cancel is resolved by the orchestrator without a model call; it
	// exists so the router's decision set is total.
	Cancel Name = "cancel"
)

// Turn is one prior conversation entry passed as context.
type Turn struct {
	Role    string
	Content string
}

// LoadContext carries the load fields already known.
type LoadContext struct {
	Origin        string
	Destination   string
	DistanceMiles float64
	WeightLbs     float64
	Equipment     string
	Commodity     string
	RatePerMile   float64
	TotalRate     float64
}

// TruckContext carries the truck attributes relevant to compliance.
type TruckContext struct {
	Equipment      string
	LengthFt       int
	MaxWeightLbs   int
	TeamSolo       string
	Restrictions   []string
	ExcludedStates []string
	Permits        []string // endorsements the truck holds
	Security       []string // security features the truck holds
}

// CompanyContext identifies the carrier for company-info answers.
type CompanyContext struct {
	Name     string
	MCNumber string
	Details  string
}

// Request is the uniform input for every capability invocation.
type Request struct {
	Capability Name
	ThreadID   string
	LoadID     string
	Email      string // latest inbound reply text
	History    []Turn
	Load       LoadContext
	Truck      TruckContext
	Company    CompanyContext

	// Negotiate only: the engine's decided rate and the reply intent
	// ("counter", "accept", "request_rate").
	ProposedRatePerMile float64
	Intent              string
}

// Result is the structured outcome of a capability call. Confidence is
// advisory; callers treat a missing required field as low confidence.
type Result struct {
	Fields     map[string]interface{}
	Confidence float64
	RawText    string
}

// Invoker executes capability calls. Implementations fail with
// UnavailableError for transport problems and RejectedError when the call
// completed but produced no usable structure.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// UnavailableError marks a transient failure (network, timeout). The
// orchestrator retries these with backoff.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("capability: unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// RejectedError marks a permanent failure for this input: the call
// completed but returned no usable structure. Never retried.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("capability: rejected: %s", e.Reason)
}

// IsUnavailable reports whether err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsRejected reports whether err is (or wraps) a RejectedError.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// String returns the string field under key, or "" when absent.
func (r *Result) String(key string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	if s, ok := r.Fields[key].(string); ok {
		return s
	}
	return ""
}

// Float returns the numeric field under key, tolerating JSON numbers and
// numeric strings. Zero when absent or unparseable.
func (r *Result) Float(key string) float64 {
	if r == nil || r.Fields == nil {
		return 0
	}
	switch v := r.Fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Finding is one compliance warning parsed from a ComplianceCheck result.
type Finding struct {
	Kind        string
	Description string
	Severity    string
}

// Findings extracts the warnings list from a ComplianceCheck result.
// Entries missing a severity default to info; entries missing a kind are
// dropped.
func Findings(r *Result) []Finding {
	if r == nil || r.Fields == nil {
		return nil
	}
	raw, ok := r.Fields["warnings"].([]interface{})
	if !ok {
		return nil
	}
	var findings []Finding
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		f := Finding{}
		if s, ok := m["kind"].(string); ok {
			f.Kind = s
		}
		if s, ok := m["description"].(string); ok {
			f.Description = s
		}
		if s, ok := m["severity"].(string); ok {
			f.Severity = s
		}
		if f.Kind == "" {
			continue
		}
		switch f.Severity {
		case models.SeverityInfo, models.SeverityCaution, models.SeverityBlocking:
		default:
			f.Severity = models.SeverityInfo
		}
		findings = append(findings, f)
	}
	return findings
}
