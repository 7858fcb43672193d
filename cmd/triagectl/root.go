// triagectl is the operator CLI for the condition catalog and the triage engine.
//
// Usage:
//
//	triagectl catalog validate [--catalog=<path>]
//	triagectl catalog show <condition-id>
//	triagectl window --condition=<id> --last-period=YYYY-MM-DD [--cycle-length=28] [--today=YYYY-MM-DD]
//	triagectl enrich <intake.json>
//	triagectl token --subject=<name> [--ttl=12h]
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/gyn-triage/internal/catalog"
	appconfig "github.com/wolfman30/gyn-triage/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootOptions struct {
	catalogPath string
	cfg         *appconfig.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{cfg: appconfig.Load()}

	root := &cobra.Command{
		Use:           "triagectl",
		Short:         "Inspect the condition catalog and run the triage engine offline",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", opts.cfg.CatalogPath, "Catalog YAML (default: embedded catalog)")

	root.AddCommand(newCatalogCmd(opts))
	root.AddCommand(newWindowCmd(opts))
	root.AddCommand(newEnrichCmd(opts))
	root.AddCommand(newTokenCmd(opts))
	return root
}

func (o *rootOptions) loadCatalog() (*catalog.Catalog, error) {
	if o.catalogPath != "" {
		return catalog.LoadFile(o.catalogPath)
	}
	return catalog.LoadDefault()
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
