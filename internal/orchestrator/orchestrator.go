// Package orchestrator drives one inbound broker email through the full
// pipeline: ledger append, routing, capability execution, state transition,
// reply composition and delivery. Threads are serialized so two emails on
// the same negotiation never interleave.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/zulandar/loadline/internal/capability"
	"github.com/zulandar/loadline/internal/composer"
	"github.com/zulandar/loadline/internal/config"
	"github.com/zulandar/loadline/internal/emailparse"
	"github.com/zulandar/loadline/internal/ledger"
	"github.com/zulandar/loadline/internal/loadstate"
	"github.com/zulandar/loadline/internal/mailer"
	"github.com/zulandar/loadline/internal/metrics"
	"github.com/zulandar/loadline/internal/models"
	"github.com/zulandar/loadline/internal/notify"
)

// Inbound is one broker email handed to the orchestrator.
type Inbound struct {
	ThreadID   string    `json:"threadId"`
	LoadID     string    `json:"loadId"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Outcome reports what one run did with an inbound email.
//
// Dispositions: "replied" (normal reply sent), "holding" (neutral reply
// sent, state untouched, email safe to reprocess), "closed" (negotiation
// already terminal, nothing sent), "discarded" (another writer changed the
// negotiation mid-run and our state result was thrown away; Reply is set
// only when the conflict surfaced after the reply had gone out).
type Outcome struct {
	Disposition string          `json:"disposition"`
	Status      string          `json:"status"`
	Reply       *mailer.Outbound `json:"reply,omitempty"`
}

// Orchestrator wires the pipeline together. One instance serves all threads.
type Orchestrator struct {
	db       *gorm.DB
	invoker  capability.Invoker
	mail     mailer.Mailer
	notifier *notify.Fanout
	cfg      *config.Config
	log      zerolog.Logger

	locks *lockTable
}

// New creates an orchestrator. The notifier may be an empty fanout.
func New(db *gorm.DB, invoker capability.Invoker, mail mailer.Mailer, notifier *notify.Fanout, cfg *config.Config, log zerolog.Logger) *Orchestrator {
	if notifier == nil {
		notifier = notify.NewFanout()
	}
	return &Orchestrator{
		db:       db,
		invoker:  invoker,
		mail:     mail,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With().Str("component", "orchestrator").Logger(),
		locks:    newLockTable(),
	}
}

// lockTable hands out one mutex per thread and reclaims it once the last
// holder releases, so a long-running process stays bounded by the number of
// threads in flight rather than every thread ever seen.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*threadLock)}
}

// acquire blocks until the caller holds the thread's lock and returns the
// release func.
func (t *lockTable) acquire(threadID string) func() {
	t.mu.Lock()
	l := t.locks[threadID]
	if l == nil {
		l = &threadLock{}
		t.locks[threadID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, threadID)
		}
		t.mu.Unlock()
	}
}

// ProcessEmail runs the pipeline for one inbound email. Exactly one outbound
// reply is produced per call unless the negotiation is already closed.
func (o *Orchestrator) ProcessEmail(ctx context.Context, in Inbound) (*Outcome, error) {
	if in.ThreadID == "" || in.LoadID == "" {
		return nil, fmt.Errorf("orchestrator: threadId and loadId are required")
	}
	defer o.locks.acquire(in.ThreadID)()

	log := o.log.With().Str("thread", in.ThreadID).Str("load", in.LoadID).Logger()

	state, err := o.getOrCreate(in)
	if err != nil {
		metrics.EmailsProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}

	if err := o.record(in, state); err != nil {
		metrics.EmailsProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}

	if loadstate.Terminal(loadstate.Status(state.Status)) {
		log.Info().Str("status", state.Status).Msg("email on closed negotiation, ignoring")
		metrics.EmailsProcessed.WithLabelValues("closed").Inc()
		return &Outcome{Disposition: "closed", Status: state.Status}, nil
	}

	// One re-route retry when a concurrent writer bumps the version under
	// us. The second conflict is an error; something is fighting over the
	// row and ops should look.
	for attempt := 0; attempt < 2; attempt++ {
		msg, err := o.advance(ctx, in, state)
		if err != nil {
			if capability.IsUnavailable(err) {
				log.Warn().Err(err).Msg("capability unavailable, sending holding reply")
				return o.hold(ctx, in, state)
			}
			metrics.EmailsProcessed.WithLabelValues("failed").Inc()
			return nil, err
		}

		// Re-check the row before anything leaves the building. A writer
		// that closed the negotiation while we worked discards the result
		// unsent; any other change re-routes against the fresh state.
		fresh, err := loadstate.Get(o.db, in.LoadID)
		if err != nil {
			metrics.EmailsProcessed.WithLabelValues("failed").Inc()
			return nil, err
		}
		if fresh.Version != state.Version {
			if loadstate.Terminal(loadstate.Status(fresh.Status)) {
				log.Info().Str("status", fresh.Status).Msg("negotiation closed mid-run, discarding result")
				metrics.EmailsProcessed.WithLabelValues("discarded").Inc()
				return &Outcome{Disposition: "discarded", Status: fresh.Status}, nil
			}
			log.Warn().Msg("concurrent state write, re-routing")
			state = fresh
			continue
		}

		return o.deliver(ctx, in, state, msg)
	}

	metrics.EmailsProcessed.WithLabelValues("failed").Inc()
	return nil, fmt.Errorf("orchestrator: %s: gave up after repeated concurrent modification", in.LoadID)
}

// getOrCreate loads the negotiation row or creates it in status new.
func (o *Orchestrator) getOrCreate(in Inbound) (*models.LoadNegotiation, error) {
	state, err := loadstate.Get(o.db, in.LoadID)
	if err == nil {
		return state, nil
	}
	if err != loadstate.ErrNotFound {
		return nil, err
	}
	state = &models.LoadNegotiation{LoadID: in.LoadID, ThreadID: in.ThreadID}
	if err := loadstate.Create(o.db, state); err != nil {
		return nil, err
	}
	return state, nil
}

// record splits the email and appends it to the ledger. On a brand-new
// thread whose first email quotes an earlier message (the broker replying
// to their own posting), the quoted original is bootstrapped as the
// thread's first agent entry so routing sees the full exchange.
func (o *Orchestrator) record(in Inbound, state *models.LoadNegotiation) error {
	parts := emailparse.Split(in.Body)

	history, err := ledger.Read(o.db, in.ThreadID)
	if err != nil {
		return err
	}
	if len(history) == 0 && parts.Original != "" {
		if _, err := ledger.Append(o.db, in.ThreadID, models.RoleAgent, parts.Original, "bootstrap"); err != nil {
			return err
		}
	}

	reply := parts.Reply
	if reply == "" {
		reply = in.Body
	}
	_, err = ledger.Append(o.db, in.ThreadID, models.RoleBroker, reply, "")
	return err
}

// deliver sends the composed reply, records it in the ledger, then commits
// the state write. The send comes first: a send that fails past its retry
// budget aborts the run with the row unwritten, so the negotiation never
// advances with nothing in the broker's inbox and a redelivered email picks
// up where this one left off.
func (o *Orchestrator) deliver(ctx context.Context, in Inbound, state *models.LoadNegotiation, msg composer.Message) (*Outcome, error) {
	out := mailer.Outbound{
		DraftID:  uuid.NewString(),
		ThreadID: in.ThreadID,
		LoadID:   in.LoadID,
		Subject:  msg.Subject,
		Body:     msg.Body,
	}
	if err := o.send(ctx, out); err != nil {
		metrics.EmailsProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}
	if _, err := ledger.Append(o.db, in.ThreadID, models.RoleAgent, msg.Body, msg.CapabilityTag); err != nil {
		return nil, err
	}

	if err := loadstate.Put(o.db, state); err != nil {
		if err == loadstate.ErrConcurrentModification {
			// Lost the race in the narrow window after the freshness
			// check. The reply is already out; the conflicting writer's
			// row stands and our state result is dropped.
			fresh, gerr := loadstate.Get(o.db, in.LoadID)
			if gerr != nil {
				metrics.EmailsProcessed.WithLabelValues("failed").Inc()
				return nil, gerr
			}
			o.log.Warn().
				Str("thread", in.ThreadID).
				Str("load", in.LoadID).
				Str("status", fresh.Status).
				Msg("state write lost to concurrent writer, discarding result")
			metrics.EmailsProcessed.WithLabelValues("discarded").Inc()
			return &Outcome{Disposition: "discarded", Status: fresh.Status, Reply: &out}, nil
		}
		metrics.EmailsProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}

	status := loadstate.Status(state.Status)
	if loadstate.Terminal(status) {
		metrics.NegotiationOutcomes.WithLabelValues(state.Status, state.Reason).Inc()
		metrics.NegotiationRounds.Observe(float64(state.Rounds))
		o.announce(ctx, state)
	}

	o.log.Info().
		Str("thread", in.ThreadID).
		Str("load", in.LoadID).
		Str("status", state.Status).
		Str("reply", msg.CapabilityTag).
		Msg("processed inbound email")
	metrics.EmailsProcessed.WithLabelValues("replied").Inc()
	return &Outcome{Disposition: "replied", Status: state.Status, Reply: &out}, nil
}

// hold sends the neutral holding reply and leaves the state untouched so
// the same inbound email can be reprocessed once the capability recovers.
func (o *Orchestrator) hold(ctx context.Context, in Inbound, state *models.LoadNegotiation) (*Outcome, error) {
	msg := composer.Holding(in.Subject)
	out := mailer.Outbound{
		DraftID:  uuid.NewString(),
		ThreadID: in.ThreadID,
		LoadID:   in.LoadID,
		Subject:  msg.Subject,
		Body:     msg.Body,
	}
	if err := o.send(ctx, out); err != nil {
		metrics.EmailsProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}
	if _, err := ledger.Append(o.db, in.ThreadID, models.RoleAgent, msg.Body, msg.CapabilityTag); err != nil {
		return nil, err
	}
	metrics.EmailsProcessed.WithLabelValues("holding").Inc()
	return &Outcome{Disposition: "holding", Status: state.Status, Reply: &out}, nil
}

// send delivers one outbound message, retrying transient failures.
func (o *Orchestrator) send(ctx context.Context, out mailer.Outbound) error {
	op := func() error { return o.mail.Send(ctx, out) }
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(o.maxAttempts()-1)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return fmt.Errorf("orchestrator: send reply %s: %w", out.ThreadID, err)
	}
	return nil
}

// announce pushes a terminal-state event to the ops channels. Best effort.
func (o *Orchestrator) announce(ctx context.Context, state *models.LoadNegotiation) {
	if !o.notifier.Enabled() {
		return
	}
	ev := notify.Event{
		LoadID:   state.LoadID,
		ThreadID: state.ThreadID,
		Severity: "info",
	}
	switch loadstate.Status(state.Status) {
	case loadstate.StatusAccepted:
		ev.Title = "Load accepted"
		ev.Detail = fmt.Sprintf("%s to %s at $%.2f/mile", state.Origin, state.Destination, state.RatePerMile)
		ev.Severity = "success"
	case loadstate.StatusRejected:
		ev.Title = "Load rejected"
		ev.Detail = "reason: " + state.Reason
		ev.Severity = "warning"
	case loadstate.StatusCancelled:
		ev.Title = "Load cancelled"
		ev.Detail = "reason: " + state.Reason
	}
	if err := o.notifier.Notify(ctx, ev); err != nil {
		o.log.Warn().Err(err).Str("load", state.LoadID).Msg("notification delivery failed")
	}
}

func (o *Orchestrator) maxAttempts() int {
	if o.cfg.Capability.MaxAttempts > 0 {
		return o.cfg.Capability.MaxAttempts
	}
	return 1
}

// transition applies one state-machine edge, failing on an illegal move.
func transition(state *models.LoadNegotiation, to loadstate.Status) error {
	from := loadstate.Status(state.Status)
	if from == to {
		return nil
	}
	if !loadstate.CanTransition(from, to) {
		return fmt.Errorf("orchestrator: illegal transition %s -> %s for %s", from, to, state.LoadID)
	}
	state.Status = string(to)
	return nil
}
