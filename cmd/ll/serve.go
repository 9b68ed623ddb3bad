package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zulandar/loadline/internal/api"
	"github.com/zulandar/loadline/internal/db"
	"github.com/zulandar/loadline/internal/locator"
	"github.com/zulandar/loadline/internal/mailer"
	"github.com/zulandar/loadline/internal/sweeper"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Loadline negotiation service",
		Long:  "Starts the inbound-email webhook, the status API, and the stale-negotiation sweeper. Shuts down cleanly on SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "loadline.yaml", "path to Loadline config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := newLogger()

	cfg, gormDB, err := openFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	mail, err := mailer.NewHTTPMailer(cfg.Mailer.BaseURL, cfg.Mailer.Token)
	if err != nil {
		return err
	}
	o, err := newOrchestrator(ctx, cfg, gormDB, mail, log)
	if err != nil {
		return err
	}

	sw := sweeper.New(gormDB, cfg.Sweeper, log)
	if err := sw.Start(); err != nil {
		return err
	}
	defer sw.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Loadline serving on port %d\n", cfg.Server.Port)
	return api.Start(ctx, api.StartOpts{
		DB:           gormDB,
		Orchestrator: o,
		Locator:      locator.New(cfg.Locator.BaseURL),
		Cfg:          cfg,
		Log:          log,
	})
}
