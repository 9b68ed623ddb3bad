package orchestrator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zulandar/loadline/internal/capability"
	"github.com/zulandar/loadline/internal/composer"
	"github.com/zulandar/loadline/internal/ledger"
	"github.com/zulandar/loadline/internal/loadstate"
	"github.com/zulandar/loadline/internal/metrics"
	"github.com/zulandar/loadline/internal/models"
	"github.com/zulandar/loadline/internal/negotiate"
	"github.com/zulandar/loadline/internal/routing"
)

// tailSize is how much recent history routing and prompts see.
const tailSize = 12

// maxSteps bounds the advance loop. The longest legal chain is
// extract -> compliance -> negotiate, so anything past four steps means the
// router is not settling.
const maxSteps = 4

// run tracks per-email progress across advance-loop steps.
type run struct {
	extracted bool
}

// advance routes and executes capabilities until one produces the outbound
// reply. Internal progress (fields verified, compliance passed) is recorded
// as system ledger entries and re-routed in the same run, so a single
// inbound email can move the negotiation several statuses forward while
// still producing exactly one reply.
func (o *Orchestrator) advance(ctx context.Context, in Inbound, state *models.LoadNegotiation) (composer.Message, error) {
	r := &run{}
	policy := routing.Policy{CompanyQuestionFirst: o.cfg.Routing.CompanyQuestionFirst}

	for step := 0; step < maxSteps; step++ {
		tail, err := ledger.Tail(o.db, in.ThreadID, tailSize)
		if err != nil {
			return composer.Message{}, err
		}

		name := routing.Route(tail, state, policy)
		o.log.Debug().
			Str("thread", in.ThreadID).
			Str("capability", string(name)).
			Str("status", state.Status).
			Msg("routed")

		msg, done, err := o.execute(ctx, name, in, state, tail, r)
		if err != nil {
			return composer.Message{}, err
		}
		if done {
			return msg, nil
		}
	}
	return composer.Message{}, fmt.Errorf("orchestrator: routing did not settle for %s", in.LoadID)
}

// execute runs one capability. done=false means the state advanced without
// producing a reply and the caller should route again.
func (o *Orchestrator) execute(ctx context.Context, name capability.Name, in Inbound, state *models.LoadNegotiation, tail []models.ConversationEntry, r *run) (composer.Message, bool, error) {
	switch name {
	case capability.Cancel:
		return o.executeCancel(in, state)
	case capability.Extract:
		return o.executeExtract(ctx, in, state, tail, r)
	case capability.ComplianceCheck:
		return o.executeCompliance(ctx, in, state, tail)
	case capability.CompanyInfo:
		return o.executeCompanyInfo(ctx, in, state, tail)
	case capability.Negotiate:
		return o.executeNegotiate(ctx, in, state, tail, r)
	}
	return composer.Message{}, false, fmt.Errorf("orchestrator: unknown capability %q", name)
}

// executeCancel closes the negotiation on the broker's word. No model call.
func (o *Orchestrator) executeCancel(in Inbound, state *models.LoadNegotiation) (composer.Message, bool, error) {
	if err := transition(state, loadstate.StatusCancelled); err != nil {
		return composer.Message{}, false, err
	}
	state.Reason = loadstate.ReasonBrokerCancelled
	return composer.CancellationAck(in.Subject), true, nil
}

// executeExtract pulls load fields out of the conversation and either
// verifies the load or asks the broker for what is still missing.
func (o *Orchestrator) executeExtract(ctx context.Context, in Inbound, state *models.LoadNegotiation, tail []models.ConversationEntry, r *run) (composer.Message, bool, error) {
	res, err := o.invoke(ctx, o.request(capability.Extract, in, state, tail))
	if err != nil {
		if !capability.IsRejected(err) {
			return composer.Message{}, false, err
		}
		// Nothing parseable in the email; fall through and ask for the
		// fields still missing.
	} else {
		r.extracted = true
		mergeExtract(state, res)
	}

	if loadstate.RequiredFieldsPresent(state) {
		if err := transition(state, loadstate.StatusVerified); err != nil {
			return composer.Message{}, false, err
		}
		summary := fmt.Sprintf("load details verified: %s to %s, %.0f lbs, %s",
			state.Origin, state.Destination, state.WeightLbs, state.Equipment)
		if _, err := ledger.Append(o.db, in.ThreadID, models.RoleSystem, summary, "extract"); err != nil {
			return composer.Message{}, false, err
		}
		return composer.Message{}, false, nil
	}

	if err := transition(state, loadstate.StatusInfoRequested); err != nil {
		return composer.Message{}, false, err
	}
	state.InfoRequested = true
	return composer.InfoRequest(in.Subject, loadstate.MissingFields(state)), true, nil
}

// executeCompliance checks the load against the truck and either rejects on
// a blocking finding or clears the negotiation for rate talk.
func (o *Orchestrator) executeCompliance(ctx context.Context, in Inbound, state *models.LoadNegotiation, tail []models.ConversationEntry) (composer.Message, bool, error) {
	res, err := o.invoke(ctx, o.request(capability.ComplianceCheck, in, state, tail))
	if err != nil {
		if capability.IsRejected(err) {
			// An inconclusive check is never guessed past; treat it like
			// an outage so the email is held and reprocessed.
			return composer.Message{}, false, &capability.UnavailableError{Err: err}
		}
		return composer.Message{}, false, err
	}

	findings := capability.Findings(res)
	warnings := make([]models.Warning, 0, len(findings))
	for _, f := range findings {
		warnings = append(warnings, models.Warning{
			Kind:        f.Kind,
			Description: f.Description,
			Severity:    f.Severity,
		})
	}
	if err := loadstate.AppendWarnings(o.db, state.LoadID, warnings); err != nil {
		return composer.Message{}, false, err
	}
	mergeWarnings(state, warnings)

	if loadstate.HasBlockingWarning(state) {
		if err := transition(state, loadstate.StatusRejected); err != nil {
			return composer.Message{}, false, err
		}
		state.Reason = loadstate.ReasonComplianceBlocked
		var reasons []string
		for _, w := range state.Warnings {
			if w.Severity == models.SeverityBlocking && !w.Resolved {
				reasons = append(reasons, w.Description)
			}
		}
		return composer.RejectionCompliance(in.Subject, reasons), true, nil
	}

	if err := transition(state, loadstate.StatusWarningChecked); err != nil {
		return composer.Message{}, false, err
	}
	summary := fmt.Sprintf("compliance check passed, %d warning(s) on file", len(state.Warnings))
	if _, err := ledger.Append(o.db, in.ThreadID, models.RoleSystem, summary, "compliance_check"); err != nil {
		return composer.Message{}, false, err
	}
	return composer.Message{}, false, nil
}

// executeCompanyInfo answers a broker's question about the carrier. State
// is untouched; the negotiation resumes on the broker's next email.
func (o *Orchestrator) executeCompanyInfo(ctx context.Context, in Inbound, state *models.LoadNegotiation, tail []models.ConversationEntry) (composer.Message, bool, error) {
	answer := ""
	res, err := o.invoke(ctx, o.request(capability.CompanyInfo, in, state, tail))
	if err != nil {
		if !capability.IsRejected(err) {
			return composer.Message{}, false, err
		}
	} else {
		answer = res.String("answer")
	}
	return composer.CompanyAnswer(in.Subject, answer), true, nil
}

// executeNegotiate runs one rate-negotiation step: refresh the broker's
// quote from the latest email, let the engine decide, and compose the reply.
func (o *Orchestrator) executeNegotiate(ctx context.Context, in Inbound, state *models.LoadNegotiation, tail []models.ConversationEntry, r *run) (composer.Message, bool, error) {
	if !r.extracted {
		res, err := o.invoke(ctx, o.request(capability.Extract, in, state, tail))
		if err != nil {
			if !capability.IsRejected(err) {
				return composer.Message{}, false, err
			}
			// Unparseable email: negotiate from the quote already on file.
		} else {
			r.extracted = true
			mergeExtract(state, res)
		}
	}

	var quote *negotiate.Quote
	if state.RatePerMile > 0 {
		quote = &negotiate.Quote{
			RatePerMile: state.RatePerMile,
			TotalRate:   state.TotalRate,
			Source:      "broker",
		}
	}
	policy := negotiate.Policy{
		FloorRatePerMile:  o.cfg.Negotiation.FloorRatePerMile,
		TargetRatePerMile: o.cfg.Negotiation.TargetRatePerMile,
		RoundingIncrement: o.cfg.Negotiation.RoundingIncrement,
	}
	d := negotiate.Decide(policy, quote, state.DistanceMiles)

	switch d.Action {
	case negotiate.ActionRequestRate:
		if err := transition(state, loadstate.StatusNegotiating); err != nil {
			return composer.Message{}, false, err
		}
		state.BidRequested = true
		return composer.RateRequest(in.Subject, ""), true, nil

	case negotiate.ActionAccept:
		if err := transition(state, loadstate.StatusNegotiating); err != nil {
			return composer.Message{}, false, err
		}
		if err := transition(state, loadstate.StatusAccepted); err != nil {
			return composer.Message{}, false, err
		}
		if state.TotalRate == 0 && state.DistanceMiles > 0 {
			state.TotalRate = math.Round(state.RatePerMile*state.DistanceMiles*100) / 100
		}
		return composer.Acceptance(in.Subject, state.RatePerMile, state.TotalRate), true, nil

	case negotiate.ActionReject:
		if err := transition(state, loadstate.StatusRejected); err != nil {
			return composer.Message{}, false, err
		}
		state.Reason = loadstate.ReasonBelowFloor
		return composer.RejectionBelowFloor(in.Subject, state.RatePerMile), true, nil

	case negotiate.ActionCounter:
		if state.Rounds >= o.cfg.Negotiation.MaxRounds {
			if err := transition(state, loadstate.StatusRejected); err != nil {
				return composer.Message{}, false, err
			}
			state.Reason = loadstate.ReasonNegotiationExhaust
			return composer.RejectionExhausted(in.Subject), true, nil
		}
		if err := transition(state, loadstate.StatusNegotiating); err != nil {
			return composer.Message{}, false, err
		}
		state.Rounds++

		// The rate is decided; the model only drafts the wording. A draft
		// failure falls back to the template instead of holding the email.
		body := ""
		req := o.request(capability.Negotiate, in, state, tail)
		req.ProposedRatePerMile = d.Counter.RatePerMile
		req.Intent = "counter"
		if res, err := o.invoke(ctx, req); err == nil {
			body = res.String("body")
		}
		return composer.CounterOffer(in.Subject, d.Counter.RatePerMile, d.Counter.TotalRate, body), true, nil
	}

	return composer.Message{}, false, fmt.Errorf("orchestrator: unknown negotiation action %s", d.Action)
}

// invoke calls the capability adapter with backoff on transient failures
// and records call metrics.
func (o *Orchestrator) invoke(ctx context.Context, req capability.Request) (*capability.Result, error) {
	start := time.Now()
	var res *capability.Result

	op := func() error {
		r, err := o.invoker.Invoke(ctx, req)
		if err != nil {
			if capability.IsUnavailable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		res = r
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(o.maxAttempts()-1)), ctx)
	err := backoff.Retry(op, bo)

	metrics.CapabilityDuration.WithLabelValues(string(req.Capability)).Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.CapabilityCalls.WithLabelValues(string(req.Capability), "ok").Inc()
	case capability.IsRejected(err):
		metrics.CapabilityCalls.WithLabelValues(string(req.Capability), "rejected").Inc()
	default:
		metrics.CapabilityCalls.WithLabelValues(string(req.Capability), "unavailable").Inc()
	}
	return res, err
}

// request assembles the uniform capability input from the run context.
func (o *Orchestrator) request(name capability.Name, in Inbound, state *models.LoadNegotiation, tail []models.ConversationEntry) capability.Request {
	return capability.Request{
		Capability: name,
		ThreadID:   in.ThreadID,
		LoadID:     in.LoadID,
		Email:      latestReply(tail, in),
		History:    turns(tail),
		Load: capability.LoadContext{
			Origin:        state.Origin,
			Destination:   state.Destination,
			DistanceMiles: state.DistanceMiles,
			WeightLbs:     state.WeightLbs,
			Equipment:     state.Equipment,
			Commodity:     state.Commodity,
			RatePerMile:   state.RatePerMile,
			TotalRate:     state.TotalRate,
		},
		Truck: capability.TruckContext{
			Equipment:      o.cfg.Truck.Equipment,
			LengthFt:       o.cfg.Truck.LengthFt,
			MaxWeightLbs:   o.cfg.Truck.MaxWeightLbs,
			TeamSolo:       o.cfg.Truck.TeamSolo,
			Restrictions:   o.cfg.Truck.Restrictions,
			ExcludedStates: o.cfg.Truck.ExcludedStates,
			Permits:        o.cfg.Truck.Permits,
			Security:       o.cfg.Truck.Security,
		},
		Company: capability.CompanyContext{
			Name:     o.cfg.Company.Name,
			MCNumber: o.cfg.Company.MCNumber,
			Details:  o.cfg.Company.Details,
		},
	}
}

// turns converts the ledger tail into prompt history: broker and agent
// entries before the latest broker message, system entries excluded.
func turns(tail []models.ConversationEntry) []capability.Turn {
	last := -1
	for i := len(tail) - 1; i >= 0; i-- {
		if tail[i].Role == models.RoleBroker {
			last = i
			break
		}
	}
	var history []capability.Turn
	for i, e := range tail {
		if last >= 0 && i >= last {
			break
		}
		if e.Role == models.RoleSystem {
			continue
		}
		history = append(history, capability.Turn{Role: e.Role, Content: e.Content})
	}
	return history
}

// latestReply returns the newest broker entry's content, falling back to
// the raw inbound body.
func latestReply(tail []models.ConversationEntry, in Inbound) string {
	for i := len(tail) - 1; i >= 0; i-- {
		if tail[i].Role == models.RoleBroker {
			return tail[i].Content
		}
	}
	return in.Body
}

// mergeExtract folds a non-empty extraction result into the state. Absent
// fields never erase what is already known.
func mergeExtract(state *models.LoadNegotiation, res *capability.Result) {
	if s := res.String("origin"); s != "" {
		state.Origin = s
	}
	if s := res.String("destination"); s != "" {
		state.Destination = s
	}
	if s := res.String("equipment"); s != "" {
		state.Equipment = s
	}
	if s := res.String("commodity"); s != "" {
		state.Commodity = s
	}
	if v := res.Float("weight"); v > 0 {
		state.WeightLbs = v
	}
	if v := res.Float("distance_miles"); v > 0 {
		state.DistanceMiles = v
	}
	if v := res.Float("rate_per_mile"); v > 0 {
		state.RatePerMile = v
	}
	if v := res.Float("total_rate"); v > 0 {
		state.TotalRate = v
	}
	// A total without a per-mile rate is still a usable quote.
	if state.RatePerMile == 0 && state.TotalRate > 0 && state.DistanceMiles > 0 {
		state.RatePerMile = math.Round(state.TotalRate/state.DistanceMiles*100) / 100
	}
}

// mergeWarnings mirrors freshly appended findings into the in-memory state,
// skipping kinds already on file.
func mergeWarnings(state *models.LoadNegotiation, warnings []models.Warning) {
	seen := make(map[string]bool, len(state.Warnings))
	for _, w := range state.Warnings {
		seen[w.Kind] = true
	}
	for _, w := range warnings {
		if seen[w.Kind] {
			continue
		}
		w.LoadID = state.LoadID
		state.Warnings = append(state.Warnings, w)
		seen[w.Kind] = true
	}
}
