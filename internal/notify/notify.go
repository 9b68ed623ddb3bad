// Package notify pushes negotiation events to ops chat channels. Loads
// reaching a terminal status and blocking compliance findings are the
// events a dispatcher wants to see without opening the dashboard.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Event is one negotiation happening worth telling ops about.
type Event struct {
	LoadID   string
	ThreadID string
	Title    string
	Detail   string
	Severity string // "info", "warning", "error", "success"
}

// Notifier delivers one event to a chat platform.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Fanout delivers each event to every configured notifier. Delivery is
// best-effort per platform; errors are joined so the caller can log them
// without aborting the run.
type Fanout struct {
	notifiers []Notifier
}

// NewFanout creates a fanout over the given notifiers; nils are skipped.
func NewFanout(notifiers ...Notifier) *Fanout {
	f := &Fanout{}
	for _, n := range notifiers {
		if n != nil {
			f.notifiers = append(f.notifiers, n)
		}
	}
	return f
}

// Enabled reports whether any platform is configured.
func (f *Fanout) Enabled() bool { return len(f.notifiers) > 0 }

// Notify sends the event everywhere.
func (f *Fanout) Notify(ctx context.Context, ev Event) error {
	var errs []string
	for _, n := range f.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(errs, "; "))
	}
	return nil
}

// format renders the event as plain chat text.
func format(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(ev.Severity), ev.Title)
	if ev.LoadID != "" {
		fmt.Fprintf(&b, " (load %s)", ev.LoadID)
	}
	if ev.Detail != "" {
		fmt.Fprintf(&b, "\n%s", ev.Detail)
	}
	return b.String()
}
