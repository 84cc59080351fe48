package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/warp/ledger-engine/categories"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/logger"
	"github.com/warp/ledger-engine/store/sqlite"
	"github.com/warp/ledger-engine/transactions"
)

// Globals are shared by every command.
type Globals struct {
	DB       string `help:"SQLite database path." default:"ledger.db" env:"LEDGER_DB_PATH"`
	LogLevel string `help:"Log level." default:"info" env:"LEDGER_LOG_LEVEL"`
}

func (g *Globals) open() (*sqlite.Store, zerolog.Logger, error) {
	log := logger.New(g.LogLevel, true)
	store, err := sqlite.New(g.DB)
	if err != nil {
		return nil, log, err
	}
	return store, log, nil
}

type MigrateCmd struct{}

func (cmd *MigrateCmd) Run(g *Globals) error {
	store, log, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return err
	}
	log.Info().Str("db", g.DB).Msg("schema up to date")
	return nil
}

type SeedCategoriesCmd struct {
	Org  string `help:"Organization to seed." required:""`
	File string `help:"YAML category tree." required:"" type:"existingfile"`
}

func (cmd *SeedCategoriesCmd) Run(ctx *kong.Context, g *Globals) error {
	seed, err := categories.LoadSeedFile(cmd.File)
	if err != nil {
		return err
	}

	store, log, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	svc := categories.NewService(store, categories.WithLogger(log))
	result, err := svc.Import(context.Background(), ledger.OrgID(cmd.Org), seed)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Stdout, "created %d, existing %d\n", result.Created, result.Existing)
	return nil
}

type VerifyCmd struct {
	Org     string `help:"Organization to verify." required:""`
	Account string `help:"Single account to verify. All accounts when empty."`
}

func (cmd *VerifyCmd) Run(ctx *kong.Context, g *Globals) error {
	store, log, err := g.open()
	if err != nil {
		return err
	}
	defer store.Close()

	bg := context.Background()
	org := ledger.OrgID(cmd.Org)
	svc := transactions.NewService(store, categories.NewService(store), transactions.WithLogger(log))

	ids := []ledger.AccountID{ledger.AccountID(cmd.Account)}
	if cmd.Account == "" {
		accounts, err := svc.ListAccounts(bg, org)
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, a := range accounts {
			ids = append(ids, a.ID)
		}
	}

	drifted := 0
	for _, id := range ids {
		check, err := svc.VerifyBalance(bg, org, id)
		if err != nil {
			return err
		}
		state := "ok"
		if !check.Consistent() {
			state = "DRIFT"
			drifted++
		}
		fmt.Fprintf(ctx.Stdout, "%-36s %-5s stored=%s expected=%s drift=%s (%d transactions)\n",
			check.AccountID, state, check.Stored, check.Expected, check.Drift, check.Transactions)
	}

	if drifted > 0 {
		return fmt.Errorf("%d of %d accounts drifted", drifted, len(ids))
	}
	return nil
}

type Commands struct {
	Migrate        MigrateCmd        `cmd:"" help:"Create or update the database schema."`
	SeedCategories SeedCategoriesCmd `cmd:"" help:"Import a YAML category tree into an organization."`
	Verify         VerifyCmd         `cmd:"" help:"Recompute account balances and report drift."`
}
