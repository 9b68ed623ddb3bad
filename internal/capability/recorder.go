package capability

import (
	"context"
	"time"

	"github.com/zulandar/loadline/internal/models"
	"gorm.io/gorm"
)

// Recorder wraps an Invoker and persists complete capability I/O to the
// capability_logs table. Logging is best-effort: a failed log write never
// fails the invocation.
type Recorder struct {
	inner Invoker
	db    *gorm.DB
	model string
}

// NewRecorder wraps inner with CapabilityLog persistence.
func NewRecorder(inner Invoker, db *gorm.DB, model string) *Recorder {
	return &Recorder{inner: inner, db: db, model: model}
}

// Invoke delegates to the wrapped invoker and records both directions.
func (r *Recorder) Invoke(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	r.log(req, "in", req.Email, 0)

	result, err := r.inner.Invoke(ctx, req)
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		r.log(req, "out", "error: "+err.Error(), latency)
		return nil, err
	}
	r.log(req, "out", result.RawText, latency)
	return result, nil
}

func (r *Recorder) log(req Request, direction, content string, latencyMs int) {
	if r.db == nil {
		return
	}
	r.db.Create(&models.CapabilityLog{
		ThreadID:   req.ThreadID,
		LoadID:     req.LoadID,
		Capability: string(req.Capability),
		Direction:  direction,
		Content:    content,
		Model:      r.model,
		LatencyMs:  latencyMs,
	})
}
