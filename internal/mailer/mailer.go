// Package mailer delivers outbound replies through the drafts API. The
// transport is behind an interface so tests and one-shot CLI runs can swap
// in the in-memory implementation.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Mailer sends one outbound message per call. Failures are retryable; the
// orchestrator owns the retry policy.
type Mailer interface {
	Send(ctx context.Context, msg Outbound) error
}

// Outbound is one reply to the broker. DraftID is assigned once per
// composed reply and doubles as the idempotency key, so retried sends of
// the same reply never create a second draft.
type Outbound struct {
	DraftID  string `json:"draftId"`
	ThreadID string `json:"threadId"`
	LoadID   string `json:"loadId"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// HTTPMailer posts drafts to the ops API.
type HTTPMailer struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPMailer creates a drafts-API mailer.
func NewHTTPMailer(baseURL, token string) (*HTTPMailer, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("mailer: baseURL is required")
	}
	return &HTTPMailer{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Send posts the draft. Non-2xx responses are errors so the orchestrator
// can retry.
func (m *HTTPMailer) Send(ctx context.Context, msg Outbound) error {
	if msg.ThreadID == "" {
		return fmt.Errorf("mailer: threadID is required")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mailer: marshal draft: %w", err)
	}

	url := fmt.Sprintf("%s/v1/threads/%s/drafts", m.baseURL, msg.ThreadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mailer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}
	if msg.DraftID != "" {
		req.Header.Set("Idempotency-Key", msg.DraftID)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: send %s: %w", msg.ThreadID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mailer: send %s: status %d", msg.ThreadID, resp.StatusCode)
	}
	return nil
}

// MemoryMailer collects sent messages for tests and dry runs.
type MemoryMailer struct {
	mu   sync.Mutex
	sent []Outbound

	// FailNext makes the next Send calls fail, counting down.
	FailNext int
}

// NewMemoryMailer creates an empty in-memory mailer.
func NewMemoryMailer() *MemoryMailer {
	return &MemoryMailer{}
}

// Send records the message, or fails while FailNext is positive.
func (m *MemoryMailer) Send(_ context.Context, msg Outbound) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext > 0 {
		m.FailNext--
		return fmt.Errorf("mailer: simulated send failure")
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (m *MemoryMailer) Sent() []Outbound {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Outbound, len(m.sent))
	copy(out, m.sent)
	return out
}
