package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/zulandar/loadline/internal/capability"
	"github.com/zulandar/loadline/internal/config"
	"github.com/zulandar/loadline/internal/db"
	"github.com/zulandar/loadline/internal/mailer"
	"github.com/zulandar/loadline/internal/notify"
	"github.com/zulandar/loadline/internal/orchestrator"
)

// newLogger builds the process logger. Plain console output; services that
// want JSON pipe stderr instead.
func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// openFromConfig loads the config file and opens the database.
func openFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// newInvoker builds the configured capability adapter, wrapped with the
// capability-log recorder.
func newInvoker(ctx context.Context, cfg *config.Config, gormDB *gorm.DB) (capability.Invoker, error) {
	var inner capability.Invoker
	switch cfg.Capability.Provider {
	case "gemini":
		inv, err := capability.NewGeminiInvoker(ctx, cfg.APIKey(), cfg.Capability.Model)
		if err != nil {
			return nil, err
		}
		inner = inv
	case "mock":
		inner = capability.NewMockInvoker()
	default:
		return nil, fmt.Errorf("unsupported capability provider %q", cfg.Capability.Provider)
	}
	return capability.NewRecorder(inner, gormDB, cfg.Capability.Model), nil
}

// newNotifier builds the ops-channel fanout from whatever is configured.
func newNotifier(cfg *config.Config, log zerolog.Logger) *notify.Fanout {
	var notifiers []notify.Notifier
	if cfg.Notify.Slack.Token != "" {
		n, err := notify.NewSlackNotifier(cfg.Notify.Slack.Token, cfg.Notify.Slack.Channel)
		if err != nil {
			log.Warn().Err(err).Msg("slack notifier disabled")
		} else {
			notifiers = append(notifiers, n)
		}
	}
	if cfg.Notify.Discord.Token != "" {
		n, err := notify.NewDiscordNotifier(cfg.Notify.Discord.Token, cfg.Notify.Discord.ChannelID)
		if err != nil {
			log.Warn().Err(err).Msg("discord notifier disabled")
		} else {
			notifiers = append(notifiers, n)
		}
	}
	return notify.NewFanout(notifiers...)
}

// newOrchestrator wires the full pipeline from config.
func newOrchestrator(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, mail mailer.Mailer, log zerolog.Logger) (*orchestrator.Orchestrator, error) {
	invoker, err := newInvoker(ctx, cfg, gormDB)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(gormDB, invoker, mail, newNotifier(cfg, log), cfg, log), nil
}
