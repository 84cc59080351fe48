package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/audit"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/ledger/store"
)

const org ledger.OrgID = "org-1"

var march10 = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func expense() ledger.Transaction {
	return ledger.Transaction{
		ID:        "tx-1",
		OrgID:     org,
		AccountID: "checking",
		Type:      ledger.TxExpense,
		Amount:    dec("100"),
		Fee:       dec("5"),
		Date:      march10,
		Memo:      "groceries",
		Splits: []ledger.Split{
			{ID: "s1", CategoryID: "food", Amount: dec("100")},
		},
	}
}

// =============================================================================
// DIFF
// =============================================================================

func TestDiff_ReportsChangedFieldsInOrder(t *testing.T) {
	// GIVEN: An expense edited into an income with a new memo and splits
	before := expense()
	after := expense()
	after.Type = ledger.TxIncome
	after.Fee = decimal.Zero
	after.Memo = "refund"
	after.Splits = []ledger.Split{
		{CategoryID: "food", Amount: dec("60")},
		{CategoryID: "home", Amount: dec("40")},
	}

	// WHEN
	changes := audit.Diff(before, after)

	// THEN
	assert.Equal(t, []ledger.FieldChange{
		{Field: "type", Old: "expense", New: "income"},
		{Field: "fee", Old: "5", New: "0"},
		{Field: "memo", Old: "groceries", New: "refund"},
		{Field: "splits", Old: "food:100", New: "food:60, home:40"},
	}, changes)
}

func TestDiff_IgnoresDecimalExponent(t *testing.T) {
	before := expense()
	after := expense()
	after.Amount = dec("100.00")

	assert.Empty(t, audit.Diff(before, after))
}

func TestDiff_References(t *testing.T) {
	before := expense()
	after := expense()
	dest := ledger.AccountID("savings")
	vendor := ledger.VendorID("acme")
	after.Type = ledger.TxTransfer
	after.DestinationAccountID = &dest
	after.VendorID = &vendor
	after.Date = march10.AddDate(0, 0, 1)

	changes := audit.Diff(before, after)

	fields := map[string]ledger.FieldChange{}
	for _, c := range changes {
		fields[c.Field] = c
	}
	assert.Equal(t, "savings", fields["destination_account_id"].New)
	assert.Equal(t, "", fields["destination_account_id"].Old)
	assert.Equal(t, "acme", fields["vendor_id"].New)
	assert.Equal(t, "2025-03-11T00:00:00Z", fields["date"].New)
}

func TestCreated_ListsPopulatedFields(t *testing.T) {
	changes := audit.Created(expense())

	var fields []string
	for _, c := range changes {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []string{"type", "amount", "fee", "date", "memo", "splits"}, fields)
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	tx := expense()
	snap := audit.Snapshot(tx)

	tx.Splits[0].Amount = dec("1")

	assert.True(t, dec("100").Equal(snap.Splits[0].Amount))
}

// =============================================================================
// HISTORY QUERIES
// =============================================================================

func seedEdits(t *testing.T, mem *store.Memory, n int) {
	t.Helper()
	tx := expense()
	for i := 0; i < n; i++ {
		kind := ledger.EditUpdate
		if i == 0 {
			kind = ledger.EditCreate
		}
		entry := audit.NewEntry(tx, "alice", kind, nil, march10.Add(time.Duration(i)*time.Minute))
		require.NoError(t, mem.AppendEdit(context.Background(), entry))
	}
}

func TestHistory_NewestFirstPaginated(t *testing.T) {
	// GIVEN: Five edits a minute apart
	mem := store.NewMemory()
	seedEdits(t, mem, 5)
	svc := audit.NewService(mem)

	// WHEN: Reading the second page of two
	page, err := svc.History(context.Background(), org, "tx-1", 2, 2)
	require.NoError(t, err)

	// THEN: Entries 3 and 2 (zero-based 2 and 1), with the full count
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Entries, 2)
	assert.True(t, march10.Add(2*time.Minute).Equal(page.Entries[0].CreatedAt))
	assert.True(t, march10.Add(1*time.Minute).Equal(page.Entries[1].CreatedAt))
}

func TestHistory_DefaultsAndValidation(t *testing.T) {
	mem := store.NewMemory()
	svc := audit.NewService(mem)

	page, err := svc.History(context.Background(), org, "tx-1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, audit.DefaultPageSize, page.Limit)
	assert.NotNil(t, page.Entries)
	assert.Empty(t, page.Entries)

	_, err = svc.History(context.Background(), org, "tx-1", 10, -1)
	assert.True(t, ledger.IsValidation(err))
}

func TestLatestAndCount(t *testing.T) {
	mem := store.NewMemory()
	svc := audit.NewService(mem)

	_, err := svc.Latest(context.Background(), org, "tx-1")
	assert.ErrorIs(t, err, ledger.ErrEditNotFound)

	seedEdits(t, mem, 3)

	latest, err := svc.Latest(context.Background(), org, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.EditUpdate, latest.Kind)
	assert.True(t, march10.Add(2*time.Minute).Equal(latest.CreatedAt))

	count, err := svc.Count(context.Background(), org, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Other organizations see nothing
	count, err = svc.Count(context.Background(), "org-2", "tx-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
