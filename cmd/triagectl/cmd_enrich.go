package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wolfman30/gyn-triage/internal/triage"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

// enrichOutput mirrors what a finished turn would hand to staff.
type enrichOutput struct {
	Kind    string                `json:"kind"`
	Signal  string                `json:"signal,omitempty"`
	Booking *triage.BookingPacket `json:"booking,omitempty"`
	Handoff *triage.HandoffPacket `json:"handoff,omitempty"`
}

func newEnrichCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enrich <intake.json|->",
		Short: "Run an intake record through the gate, classifier and enricher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				r = file
			}

			var rec triage.IntakeRecord
			if err := json.NewDecoder(r).Decode(&rec); err != nil {
				return fmt.Errorf("decode intake: %w", err)
			}
			rec = rec.Normalize()

			cat, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			if err := (triage.Gate{Catalog: cat}).Validate(rec); err != nil {
				return fmt.Errorf("intake rejected: %w", err)
			}

			var out enrichOutput
			if esc := triage.Classify(rec); esc.Escalate {
				packet := triage.BuildHandoff(rec)
				out = enrichOutput{Kind: "handoff", Signal: string(esc.Signal), Handoff: &packet}
			} else {
				logger := logging.NewWithWriter(opts.cfg.LogLevel, cmd.ErrOrStderr())
				enricher := triage.NewEnricher(cat, triage.CycleCalculator{Location: opts.cfg.Location()}, logger)
				packet := enricher.Enrich(rec)
				out = enrichOutput{Kind: "booking", Booking: &packet}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
