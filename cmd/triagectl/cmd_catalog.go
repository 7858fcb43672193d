package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate or inspect the condition catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load the catalog and report problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			byCategory := map[string]int{}
			for _, c := range cat.Conditions() {
				byCategory[string(c.Category)]++
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Catalog OK: %d conditions, %d routing groups\n", len(cat.Conditions()), len(cat.Groups()))
			for _, category := range []string{"A", "B", "C"} {
				fmt.Fprintf(out, "  category %s: %d\n", category, byCategory[category])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <condition-id>",
		Short: "Print one condition as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("condition id must be an integer: %w", err)
			}
			cat, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			cond, ok := cat.Lookup(id)
			if !ok {
				return fmt.Errorf("condition %d not found", id)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cond)
		},
	})
	return cmd
}
