package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/zulandar/loadline/internal/loadstate"
	"github.com/zulandar/loadline/internal/models"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status [loadID]",
		Short: "Show negotiation status",
		Long:  "Without arguments, lists all open negotiations. With a load ID, shows that load's full state including warnings.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loadID := ""
			if len(args) == 1 {
				loadID = args[0]
			}
			return runStatus(cmd, configPath, loadID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "loadline.yaml", "path to Loadline config file")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath, loadID string) error {
	_, gormDB, err := openFromConfig(configPath)
	if err != nil {
		return err
	}

	if loadID != "" {
		return printLoad(cmd, gormDB, loadID)
	}
	return printOpenLoads(cmd, gormDB)
}

func printLoad(cmd *cobra.Command, gormDB *gorm.DB, loadID string) error {
	out := cmd.OutOrStdout()

	state, err := loadstate.Get(gormDB, loadID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Load %s (thread %s)\n", state.LoadID, state.ThreadID)
	fmt.Fprintf(out, "  status:      %s\n", state.Status)
	if state.Reason != "" {
		fmt.Fprintf(out, "  reason:      %s\n", state.Reason)
	}
	fmt.Fprintf(out, "  lane:        %s -> %s\n", orDash(state.Origin), orDash(state.Destination))
	fmt.Fprintf(out, "  equipment:   %s\n", orDash(state.Equipment))
	if state.WeightLbs > 0 {
		fmt.Fprintf(out, "  weight:      %.0f lbs\n", state.WeightLbs)
	}
	if state.DistanceMiles > 0 {
		fmt.Fprintf(out, "  distance:    %.0f mi\n", state.DistanceMiles)
	}
	if state.RatePerMile > 0 {
		fmt.Fprintf(out, "  broker rate: $%.2f/mi", state.RatePerMile)
		if state.TotalRate > 0 {
			fmt.Fprintf(out, " ($%.2f total)", state.TotalRate)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "  rounds:      %d\n", state.Rounds)
	if state.ClosedAt != nil {
		fmt.Fprintf(out, "  closed:      %s\n", state.ClosedAt.Format("2006-01-02 15:04"))
	}

	if len(state.Warnings) > 0 {
		fmt.Fprintln(out, "  warnings:")
		for _, w := range state.Warnings {
			resolved := ""
			if w.Resolved {
				resolved = " (resolved)"
			}
			fmt.Fprintf(out, "    [%s] %s: %s%s\n", w.Severity, w.Kind, w.Description, resolved)
		}
	}
	return nil
}

func printOpenLoads(cmd *cobra.Command, gormDB *gorm.DB) error {
	out := cmd.OutOrStdout()

	var states []models.LoadNegotiation
	err := gormDB.
		Where("status NOT IN ?", []string{
			string(loadstate.StatusAccepted),
			string(loadstate.StatusRejected),
			string(loadstate.StatusCancelled),
		}).
		Order("updated_at DESC").
		Find(&states).Error
	if err != nil {
		return fmt.Errorf("list open loads: %w", err)
	}

	if len(states) == 0 {
		fmt.Fprintln(out, "No open negotiations.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LOAD\tSTATUS\tLANE\tRATE\tROUNDS")
	for _, s := range states {
		rate := "-"
		if s.RatePerMile > 0 {
			rate = fmt.Sprintf("$%.2f/mi", s.RatePerMile)
		}
		fmt.Fprintf(w, "%s\t%s\t%s -> %s\t%s\t%d\n",
			s.LoadID, s.Status, orDash(s.Origin), orDash(s.Destination), rate, s.Rounds)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
