// Package negotiate implements the counter-offer calculator for rate
// negotiation. The engine is pure: it sees the broker's latest quote and the
// carrier's rate policy and decides one step; round limits and persistence
// belong to the orchestrator.
package negotiate

import (
	"fmt"
	"math"
)

// Policy is the carrier's rate configuration, per mile.
type Policy struct {
	FloorRatePerMile  float64
	TargetRatePerMile float64
	RoundingIncrement float64
}

// Quote is a rate proposal in flight during one negotiation turn.
type Quote struct {
	RatePerMile float64
	TotalRate   float64
	RoundTrip   bool
	Source      string // "broker" or "counter-offer"
}

// Action is the engine's decision for one negotiation step.
type Action int

const (
	// ActionRequestRate: no broker rate yet, ask for one.
	ActionRequestRate Action = iota
	// ActionAccept: broker rate at or above target.
	ActionAccept
	// ActionReject: broker rate below the floor.
	ActionReject
	// ActionCounter: propose the midpoint counter-offer.
	ActionCounter
)

func (a Action) String() string {
	switch a {
	case ActionRequestRate:
		return "request_rate"
	case ActionAccept:
		return "accept"
	case ActionReject:
		return "reject"
	case ActionCounter:
		return "counter"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Decision is the outcome of one engine step.
type Decision struct {
	Action  Action
	Counter *Quote // set when Action == ActionCounter
	Reason  string // set when Action == ActionReject
}

// Decide runs one step of the negotiation. The counter-offer, when issued,
// is the midpoint between the broker's rate and the target, rounded half-up
// to the policy increment and clamped to [broker, target], so it never
// lands below the floor and never exceeds the target.
func Decide(p Policy, broker *Quote, distanceMiles float64) Decision {
	if broker == nil || broker.RatePerMile <= 0 {
		return Decision{Action: ActionRequestRate}
	}
	if broker.RatePerMile >= p.TargetRatePerMile {
		return Decision{Action: ActionAccept}
	}
	if broker.RatePerMile < p.FloorRatePerMile {
		return Decision{Action: ActionReject, Reason: "below_floor"}
	}

	mid := (broker.RatePerMile + p.TargetRatePerMile) / 2
	counter := RoundToIncrement(mid, p.RoundingIncrement)
	if counter < broker.RatePerMile {
		counter = broker.RatePerMile
	}
	if counter > p.TargetRatePerMile {
		counter = p.TargetRatePerMile
	}

	q := &Quote{
		RatePerMile: counter,
		Source:      "counter-offer",
	}
	if distanceMiles > 0 {
		q.TotalRate = math.Round(counter*distanceMiles*100) / 100
	}
	return Decision{Action: ActionCounter, Counter: q}
}

// RoundToIncrement rounds v half-up to the nearest multiple of inc.
// Rounding an already-rounded value is a no-op; inc <= 0 disables rounding.
func RoundToIncrement(v, inc float64) float64 {
	if inc <= 0 {
		return v
	}
	steps := math.Floor(v/inc + 0.5)
	// Normalize away float drift so repeated rounding is stable.
	return math.Round(steps*inc*1e6) / 1e6
}
