package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zulandar/loadline/internal/db"
	"github.com/zulandar/loadline/internal/mailer"
	"github.com/zulandar/loadline/internal/orchestrator"
)

func newProcessCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "process <email.json>",
		Short: "Process one inbound email from a JSON file",
		Long: `Runs the full pipeline for a single inbound email and prints the outcome.
The file holds one JSON object with threadId, loadId, subject and body;
pass "-" to read it from stdin. With --dry-run the reply is printed instead
of being sent through the drafts API.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, configPath, args[0], dryRun)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "loadline.yaml", "path to Loadline config file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the reply instead of sending it")
	return cmd
}

func runProcess(cmd *cobra.Command, configPath, emailPath string, dryRun bool) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	log := newLogger()

	in, err := readInbound(cmd, emailPath)
	if err != nil {
		return err
	}

	cfg, gormDB, err := openFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	var mail mailer.Mailer
	var memory *mailer.MemoryMailer
	if dryRun {
		memory = mailer.NewMemoryMailer()
		mail = memory
	} else {
		mail, err = mailer.NewHTTPMailer(cfg.Mailer.BaseURL, cfg.Mailer.Token)
		if err != nil {
			return err
		}
	}

	o, err := newOrchestrator(ctx, cfg, gormDB, mail, log)
	if err != nil {
		return err
	}

	outcome, err := o.ProcessEmail(ctx, *in)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(encoded))

	if dryRun {
		for _, sent := range memory.Sent() {
			fmt.Fprintf(out, "\n--- reply (not sent) ---\nSubject: %s\n\n%s\n", sent.Subject, sent.Body)
		}
	}
	return nil
}

func readInbound(cmd *cobra.Command, path string) (*orchestrator.Inbound, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read email: %w", err)
	}

	var in orchestrator.Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse email: %w", err)
	}
	if in.ThreadID == "" || in.LoadID == "" {
		return nil, fmt.Errorf("email file must set threadId and loadId")
	}
	return &in, nil
}
