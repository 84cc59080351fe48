/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate one organization with
	realistic data for testing and demos. Each scenario goes through the
	same services the API uses, so every balance it leaves behind is one
	the ledger itself produced.

AVAILABLE SCENARIOS:

	fee-retype:          Expense with a fee retyped to income (895 -> 1095)
	travel-tree:         Seeded category tree, then a subtree move
	transfer-round-trip: Transfer between two accounts, edited and deleted
	month-end-reconcile: Confirm, reconcile against a statement, summarize

HOW SCENARIOS WORK:
 1. Pick the target organization (org_id, or a fresh "demo-<uuid>")
 2. Run the loader through the services
 3. Return the ids of what was created as named refs

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "fee-retype"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, org, refs)
 3. Register it in 'scenarioLoaders'

NOTE:

	Loading into an existing organization adds to its data. Names that must
	be unique (accounts, categories) will conflict on a second load.

SEE ALSO:
  - handlers.go: Endpoint handlers
  - categories/seed.go: Category tree import
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/categories"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/logger"
	"github.com/warp/ledger-engine/status"
	"github.com/warp/ledger-engine/transactions"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fee-retype",
		Name:        "Fee Retype",
		Description: "Expense of 100 with a 5 fee on a 1000 account, retyped to income keeping the fee",
	},
	{
		ID:          "travel-tree",
		Name:        "Travel Tree",
		Description: "Seeded Travel > Flights > Domestic hierarchy, Flights moved under Transport",
	},
	{
		ID:          "transfer-round-trip",
		Name:        "Transfer Round Trip",
		Description: "Transfer from checking to savings, amount edited, then deleted and restored",
	},
	{
		ID:          "month-end-reconcile",
		Name:        "Month-End Reconcile",
		Description: "Three expenses, two confirmed and reconciled against a statement",
	},
}

type scenarioLoader func(h *Handler, ctx context.Context, org ledger.OrgID, refs map[string]string) error

var scenarioLoaders = map[string]scenarioLoader{
	"fee-retype":          (*Handler).loadFeeRetypeScenario,
	"travel-tree":         (*Handler).loadTravelTreeScenario,
	"transfer-round-trip": (*Handler).loadTransferRoundTripScenario,
	"month-end-reconcile": (*Handler).loadMonthEndReconcileScenario,
}

// scenarioActor is recorded on every audit row a scenario writes.
const scenarioActor = "scenario"

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}

	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	org := ledger.OrgID(req.OrgID)
	if org == "" {
		org = ledger.OrgID("demo-" + uuid.NewString())
	}

	refs := make(map[string]string)
	if err := load(h, r.Context(), org, refs); err != nil {
		writeDomainError(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().Str("scenario", req.ScenarioID).Str("org_id", string(org)).Int("refs", len(refs)).Msg("scenario loaded")

	writeJSON(w, http.StatusOK, LoadScenarioResponse{
		ScenarioID: req.ScenarioID,
		OrgID:      string(org),
		Refs:       refs,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

var scenarioMonth = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

func scenarioDay(day int) time.Time {
	return scenarioMonth.AddDate(0, 0, day-1)
}

func (h *Handler) loadFeeRetypeScenario(ctx context.Context, org ledger.OrgID, refs map[string]string) error {
	fee := decimal.NewFromInt(5)
	acct, err := h.Transactions.CreateAccount(ctx, org, transactions.AccountInput{
		Name:           "Checking",
		OpeningBalance: decimal.NewFromInt(1000),
		TransactionFee: &fee,
	})
	if err != nil {
		return err
	}
	refs["account"] = string(acct.ID)

	// 1000 - (100 + 5) = 895
	tx, err := h.Transactions.Create(ctx, org, acct.ID, transactions.CreateInput{
		Type:     ledger.TxExpense,
		Amount:   decimal.NewFromInt(100),
		ApplyFee: true,
		Date:     scenarioDay(3),
		Memo:     "Hardware store",
		Splits: []transactions.SplitInput{
			{CategoryName: "Home", Amount: decimal.NewFromInt(100)},
		},
		Actor: scenarioActor,
	})
	if err != nil {
		return err
	}
	refs["transaction"] = string(tx.ID)

	// The fee is kept: 1000 + (100 - 5) = 1095
	income := ledger.TxIncome
	memo := "Refund, recorded as income"
	_, err = h.Transactions.Update(ctx, org, tx.ID, transactions.UpdateInput{
		ExpectedVersion: &tx.Version,
		Type:            &income,
		Memo:            &memo,
		Actor:           scenarioActor,
	})
	return err
}

func (h *Handler) loadTravelTreeScenario(ctx context.Context, org ledger.OrgID, refs map[string]string) error {
	seed := &categories.Seed{Categories: []categories.SeedNode{
		{Name: "Travel", Children: []categories.SeedNode{
			{Name: "Flights", Children: []categories.SeedNode{{Name: "Domestic"}, {Name: "International"}}},
			{Name: "Lodging"},
		}},
		{Name: "Transport"},
	}}
	if _, err := h.Categories.Import(ctx, org, seed); err != nil {
		return err
	}

	cats, err := h.Categories.List(ctx, org, ledger.CategoryFilter{})
	if err != nil {
		return err
	}
	byName := make(map[string]ledger.CategoryID, len(cats))
	for _, c := range cats {
		byName[c.Name] = c.ID
		refs[c.Name] = string(c.ID)
	}

	// Flights and its children re-depth under Transport.
	transport := byName["Transport"]
	_, err = h.Categories.Move(ctx, org, byName["Flights"], &transport)
	return err
}

func (h *Handler) loadTransferRoundTripScenario(ctx context.Context, org ledger.OrgID, refs map[string]string) error {
	checking, err := h.Transactions.CreateAccount(ctx, org, transactions.AccountInput{
		Name:           "Checking",
		OpeningBalance: decimal.NewFromInt(2000),
	})
	if err != nil {
		return err
	}
	savings, err := h.Transactions.CreateAccount(ctx, org, transactions.AccountInput{
		Name:           "Savings",
		OpeningBalance: decimal.NewFromInt(500),
	})
	if err != nil {
		return err
	}
	refs["checking"] = string(checking.ID)
	refs["savings"] = string(savings.ID)

	tx, err := h.Transactions.Create(ctx, org, checking.ID, transactions.CreateInput{
		Type:                 ledger.TxTransfer,
		Amount:               decimal.NewFromInt(300),
		DestinationAccountID: &savings.ID,
		Date:                 scenarioDay(10),
		Memo:                 "Monthly savings",
		Splits: []transactions.SplitInput{
			{CategoryName: "Savings", Amount: decimal.NewFromInt(300)},
		},
		Actor: scenarioActor,
	})
	if err != nil {
		return err
	}
	refs["transfer"] = string(tx.ID)

	amount := decimal.NewFromInt(450)
	tx, err = h.Transactions.Update(ctx, org, tx.ID, transactions.UpdateInput{
		ExpectedVersion: &tx.Version,
		Amount:          &amount,
		Actor:           scenarioActor,
	})
	if err != nil {
		return err
	}

	if err := h.Transactions.Delete(ctx, org, tx.ID, transactions.DeleteInput{
		ExpectedVersion: &tx.Version,
		Actor:           scenarioActor,
	}); err != nil {
		return err
	}
	// Checking 1550 and savings 950 again.
	_, err = h.Transactions.Restore(ctx, org, tx.ID, scenarioActor)
	return err
}

func (h *Handler) loadMonthEndReconcileScenario(ctx context.Context, org ledger.OrgID, refs map[string]string) error {
	acct, err := h.Transactions.CreateAccount(ctx, org, transactions.AccountInput{
		Name:           "Checking",
		OpeningBalance: decimal.NewFromInt(1000),
	})
	if err != nil {
		return err
	}
	refs["account"] = string(acct.ID)

	expenses := []struct {
		ref     string
		amount  int64
		day     int
		memo    string
		confirm bool
	}{
		{"groceries", 50, 4, "Groceries", true},
		{"fuel", 25, 12, "Fuel", true},
		{"coffee", 10, 30, "Coffee", false},
	}

	var cleared []ledger.TransactionID
	for _, e := range expenses {
		tx, err := h.Transactions.Create(ctx, org, acct.ID, transactions.CreateInput{
			Type:   ledger.TxExpense,
			Amount: decimal.NewFromInt(e.amount),
			Date:   scenarioDay(e.day),
			Memo:   e.memo,
			Splits: []transactions.SplitInput{
				{CategoryName: e.memo, Amount: decimal.NewFromInt(e.amount)},
			},
			Actor: scenarioActor,
		})
		if err != nil {
			return err
		}
		refs[e.ref] = string(tx.ID)
		if !e.confirm {
			continue
		}
		if _, err := h.Status.ChangeStatus(ctx, org, tx.ID, ledger.StatusConfirmed, scenarioActor, "cleared"); err != nil {
			return err
		}
		cleared = append(cleared, tx.ID)
	}

	// 1000 - 50 - 25
	_, err = h.Status.Reconcile(ctx, org, acct.ID, status.ReconcileInput{
		StatementBalance: decimal.NewFromInt(925),
		StatementDate:    scenarioDay(31),
		TransactionIDs:   cleared,
		Actor:            scenarioActor,
	})
	return err
}
