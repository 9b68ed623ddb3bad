// Package sweeper closes out negotiations the broker walked away from.
// A load that has seen no activity past the configured window is cancelled
// with reason "stale" so it stops counting as open work.
package sweeper

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/zulandar/loadline/internal/config"
	"github.com/zulandar/loadline/internal/loadstate"
	"github.com/zulandar/loadline/internal/metrics"
	"github.com/zulandar/loadline/internal/models"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Sweeper periodically cancels stale negotiations.
type Sweeper struct {
	db         *gorm.DB
	schedule   string
	staleAfter time.Duration
	log        zerolog.Logger
	cron       *cron.Cron
}

// New creates a sweeper from config. Start schedules it; Sweep can also be
// called directly for one-shot runs.
func New(db *gorm.DB, cfg config.SweeperConfig, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		db:         db,
		schedule:   cfg.Schedule,
		staleAfter: time.Duration(cfg.StaleAfterHours) * time.Hour,
		log:        log.With().Str("component", "sweeper").Logger(),
	}
}

// Start validates the schedule and begins periodic sweeps.
func (s *Sweeper) Start() error {
	if _, err := cronParser.Parse(s.schedule); err != nil {
		return fmt.Errorf("sweeper: bad schedule %q: %w", s.schedule, err)
	}
	s.cron = cron.New(cron.WithParser(cronParser))
	s.cron.AddFunc(s.schedule, func() {
		swept, err := s.Sweep(time.Now())
		if err != nil {
			s.log.Error().Err(err).Msg("sweep failed")
			return
		}
		if swept > 0 {
			s.log.Info().Int("swept", swept).Msg("cancelled stale negotiations")
		}
	})
	s.cron.Start()
	return nil
}

// Stop halts the schedule. Running sweeps finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Sweep cancels every non-terminal negotiation idle since before
// now - staleAfter and returns how many it closed. Each row is re-read and
// written through the versioned store, so a negotiation that picks back up
// mid-sweep wins over the sweep.
func (s *Sweeper) Sweep(now time.Time) (int, error) {
	cutoff := now.Add(-s.staleAfter)

	var rows []models.LoadNegotiation
	err := s.db.
		Where("status NOT IN ?", []string{
			string(loadstate.StatusAccepted),
			string(loadstate.StatusRejected),
			string(loadstate.StatusCancelled),
		}).
		Where("updated_at < ?", cutoff).
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("sweeper: list stale: %w", err)
	}

	swept := 0
	for _, row := range rows {
		state, err := loadstate.Get(s.db, row.LoadID)
		if err != nil {
			s.log.Warn().Err(err).Str("load", row.LoadID).Msg("stale load vanished")
			continue
		}
		if loadstate.Terminal(loadstate.Status(state.Status)) {
			continue
		}
		state.Status = string(loadstate.StatusCancelled)
		state.Reason = loadstate.ReasonStale
		if err := loadstate.Put(s.db, state); err != nil {
			if err == loadstate.ErrConcurrentModification {
				// The negotiation came back to life; leave it alone.
				continue
			}
			s.log.Warn().Err(err).Str("load", row.LoadID).Msg("stale cancel failed")
			continue
		}
		metrics.NegotiationOutcomes.WithLabelValues(state.Status, state.Reason).Inc()
		swept++
	}
	return swept, nil
}
