/*
main.go - Operator command line for the ledger engine

PURPOSE:

	Maintenance commands that run directly against the SQLite database,
	without the HTTP server.

COMMANDS:

	migrate          Create or update the schema
	seed-categories  Import a YAML category tree into one organization
	verify           Recompute account balances and report drift

EXAMPLES:

	ledgerctl --db=./ledger.db migrate
	ledgerctl seed-categories --org=acme --file=categories.yaml
	ledgerctl verify --org=acme --account=<id>

SEE ALSO:
  - commands.go: Command implementations
  - categories/seed.go: Seed file format
*/
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
)

var (
	// Version is set via ldflags when building.
	Version = ""

	cli struct {
		Version kong.VersionFlag `help:"Show version information"`
		Globals
		Commands
	}
)

func main() {
	ctx := kong.Parse(&cli,
		kong.Vars{
			"version": buildVersion(),
		},
		kong.Name("ledgerctl"),
		kong.Description("Maintenance commands for the ledger engine."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

func buildVersion() string {
	if Version == "" {
		Version = "dev"
	}
	return fmt.Sprintf("ledgerctl %s", Version)
}
