package main

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/wolfman30/gyn-triage/internal/triage"
)

type windowFlags struct {
	conditionID int
	lastPeriod  string
	cycleLength int
	minCycle    int
	maxCycle    int
	noCycle     bool
	today       string
}

func newWindowCmd(opts *rootOptions) *cobra.Command {
	var flags windowFlags
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Compute the booking window for a cycle-dependent condition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			cond, ok := cat.Lookup(flags.conditionID)
			if !ok {
				return fmt.Errorf("condition %d not found", flags.conditionID)
			}
			lastPeriod, err := civil.ParseDate(flags.lastPeriod)
			if err != nil {
				return fmt.Errorf("--last-period must be YYYY-MM-DD: %w", err)
			}

			calc := triage.CycleCalculator{Location: opts.cfg.Location()}
			if flags.today != "" {
				today, err := civil.ParseDate(flags.today)
				if err != nil {
					return fmt.Errorf("--today must be YYYY-MM-DD: %w", err)
				}
				at := today.In(calc.Location)
				calc.Now = func() time.Time { return at }
			}

			cycleOpts := triage.CycleOptions{CycleLength: flags.cycleLength, NoCycle: flags.noCycle}
			if flags.minCycle > 0 || flags.maxCycle > 0 {
				if flags.minCycle <= 0 || flags.maxCycle < flags.minCycle {
					return fmt.Errorf("--min-cycle and --max-cycle must both be set with min <= max")
				}
				cycleOpts.Range = &triage.CycleRange{Min: flags.minCycle, Max: flags.maxCycle}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(calc.Compute(lastPeriod, cond, cycleOpts))
		},
	}

	f := cmd.Flags()
	f.IntVar(&flags.conditionID, "condition", 0, "Condition id from the catalog")
	f.StringVar(&flags.lastPeriod, "last-period", "", "First day of the last period (YYYY-MM-DD)")
	f.IntVar(&flags.cycleLength, "cycle-length", 28, "Usual cycle length in days")
	f.IntVar(&flags.minCycle, "min-cycle", 0, "Shortest cycle for irregular cycles")
	f.IntVar(&flags.maxCycle, "max-cycle", 0, "Longest cycle for irregular cycles")
	f.BoolVar(&flags.noCycle, "no-cycle", false, "Patient has no periods")
	f.StringVar(&flags.today, "today", "", "Override today's date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("condition")
	_ = cmd.MarkFlagRequired("last-period")
	return cmd
}
