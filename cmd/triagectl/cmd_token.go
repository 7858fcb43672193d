package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	httpmiddleware "github.com/wolfman30/gyn-triage/internal/http/middleware"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a staff token for the dashboard API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.cfg.StaffJWTSecret == "" {
				return errors.New("STAFF_JWT_SECRET is not set")
			}
			token, err := httpmiddleware.IssueStaffToken(opts.cfg.StaffJWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&subject, "subject", "", "Staff member the token is issued to")
	f.DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
