package status_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/categories"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/ledger/store"
	"github.com/warp/ledger-engine/status"
	"github.com/warp/ledger-engine/transactions"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const org ledger.OrgID = "org-1"

var (
	march10 = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	noon    = time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc *status.Service
	txs *transactions.Service
	mem *store.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	cats := categories.NewService(mem)
	return &fixture{
		svc: status.NewService(mem, status.WithClock(func() time.Time { return noon })),
		txs: transactions.NewService(mem, cats),
		mem: mem,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) account(t *testing.T, opening string) *ledger.Account {
	t.Helper()
	a, err := f.txs.CreateAccount(context.Background(), org, transactions.AccountInput{Name: "Checking", OpeningBalance: dec(opening)})
	require.NoError(t, err)
	return a
}

func (f *fixture) record(t *testing.T, accountID ledger.AccountID, typ ledger.TxType, amount string) *ledger.Transaction {
	t.Helper()
	tx, err := f.txs.Create(context.Background(), org, accountID, transactions.CreateInput{
		Type:   typ,
		Amount: dec(amount),
		Date:   march10,
		Splits: []transactions.SplitInput{{CategoryName: "General", Amount: dec(amount)}},
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) confirm(t *testing.T, id ledger.TransactionID) {
	t.Helper()
	_, err := f.svc.ChangeStatus(context.Background(), org, id, ledger.StatusConfirmed, "alice", "")
	require.NoError(t, err)
}

func (f *fixture) statusOf(t *testing.T, id ledger.TransactionID) *ledger.Transaction {
	t.Helper()
	tx, err := f.mem.GetTransaction(context.Background(), org, id)
	require.NoError(t, err)
	return tx
}

// =============================================================================
// SINGLE TRANSITIONS
// =============================================================================

func TestChangeStatus_ConfirmStampsAndRecordsHistory(t *testing.T) {
	// GIVEN: An unconfirmed expense
	f := newFixture(t)
	acc := f.account(t, "1000")
	tx := f.record(t, acc.ID, ledger.TxExpense, "40")

	// WHEN: Confirming it
	got, err := f.svc.ChangeStatus(context.Background(), org, tx.ID, ledger.StatusConfirmed, "alice", "matched bank feed")
	require.NoError(t, err)

	// THEN: ConfirmedAt is stamped and history has the creation and the change
	assert.Equal(t, ledger.StatusConfirmed, got.Status)
	require.NotNil(t, got.ConfirmedAt)
	assert.True(t, noon.Equal(*got.ConfirmedAt))
	assert.Nil(t, got.ReconciledAt)

	history, err := f.svc.History(context.Background(), org, tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Nil(t, history[0].FromStatus)
	require.NotNil(t, history[1].FromStatus)
	assert.Equal(t, ledger.StatusUnconfirmed, *history[1].FromStatus)
	assert.Equal(t, ledger.StatusConfirmed, history[1].ToStatus)
	assert.Equal(t, "alice", history[1].Actor)
	assert.Equal(t, "matched bank feed", history[1].Notes)
}

func TestChangeStatus_BackwardClearsTimestamps(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "1000")
	tx := f.record(t, acc.ID, ledger.TxIncome, "10")
	f.confirm(t, tx.ID)

	got, err := f.svc.ChangeStatus(context.Background(), org, tx.ID, ledger.StatusUnconfirmed, "", "premature")
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusUnconfirmed, got.Status)
	assert.Nil(t, got.ConfirmedAt)
	assert.Nil(t, got.ReconciledAt)

	history, err := f.svc.History(context.Background(), org, tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "system", history[2].Actor)
}

func TestChangeStatus_RejectedTransitions(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "1000")

	unconfirmed := f.record(t, acc.ID, ledger.TxExpense, "1")
	reconciled := f.record(t, acc.ID, ledger.TxExpense, "2")
	f.confirm(t, reconciled.ID)
	_, err := f.svc.ChangeStatus(context.Background(), org, reconciled.ID, ledger.StatusReconciled, "", "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		id     ledger.TransactionID
		to     ledger.Status
		target error
	}{
		{"skip confirmation", unconfirmed.ID, ledger.StatusReconciled, ledger.ErrInvalidTransition},
		{"already unconfirmed", unconfirmed.ID, ledger.StatusUnconfirmed, ledger.ErrStatusConflict},
		{"leave reconciled", reconciled.ID, ledger.StatusConfirmed, ledger.ErrReconciled},
		{"reconciled to unconfirmed", reconciled.ID, ledger.StatusUnconfirmed, ledger.ErrReconciled},
		{"unknown status", unconfirmed.ID, ledger.Status("void"), ledger.ErrValidation},
		{"missing transaction", "nope", ledger.StatusConfirmed, ledger.ErrTransactionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ChangeStatus(context.Background(), org, tt.id, tt.to, "", "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}

	// Rejections leave no history behind
	history, err := f.svc.History(context.Background(), org, unconfirmed.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestChangeStatus_InvalidTransitionNamesEdge(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "1000")
	tx := f.record(t, acc.ID, ledger.TxExpense, "1")

	_, err := f.svc.ChangeStatus(context.Background(), org, tx.ID, ledger.StatusReconciled, "", "")

	var it *ledger.InvalidTransitionError
	require.ErrorAs(t, err, &it)
	assert.Equal(t, ledger.StatusUnconfirmed, it.From)
	assert.Equal(t, ledger.StatusReconciled, it.To)
	assert.True(t, ledger.IsValidation(err))
}

func TestChangeStatus_ConcurrentSameTargetExactlyOneWins(t *testing.T) {
	// GIVEN: One unconfirmed transaction
	f := newFixture(t)
	acc := f.account(t, "1000")
	tx := f.record(t, acc.ID, ledger.TxExpense, "25")

	// WHEN: Eight callers confirm it at once
	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ChangeStatus(context.Background(), org, tx.ID, ledger.StatusConfirmed, "", "")
		}(i)
	}
	wg.Wait()

	// THEN: One success, the rest report the status conflict
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ledger.ErrStatusConflict), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	history, err := f.svc.History(context.Background(), org, tx.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "exactly one confirmation recorded")
}

func TestStore_UpdateStatusCompareAndSet(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "1000")
	tx := f.record(t, acc.ID, ledger.TxExpense, "25")
	f.confirm(t, tx.ID)

	stale := f.statusOf(t, tx.ID)
	stale.Status = ledger.StatusReconciled
	err := f.mem.UpdateStatus(context.Background(), *stale, ledger.StatusUnconfirmed)

	assert.ErrorIs(t, err, ledger.ErrStatusConflict)
	assert.Equal(t, ledger.StatusConfirmed, f.statusOf(t, tx.ID).Status)
}

func TestHistory_UnknownTransaction(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.History(context.Background(), org, "missing")

	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

// =============================================================================
// BULK
// =============================================================================

func TestBulkChangeStatus_PartialSuccess(t *testing.T) {
	// GIVEN: Five transactions, two already confirmed, plus one unknown id
	f := newFixture(t)
	acc := f.account(t, "1000")
	var ids []ledger.TransactionID
	for i := 0; i < 5; i++ {
		ids = append(ids, f.record(t, acc.ID, ledger.TxExpense, "10").ID)
	}
	f.confirm(t, ids[1])
	f.confirm(t, ids[3])
	ids = append(ids, "ghost")

	// WHEN: Bulk-confirming all six
	result, err := f.svc.BulkChangeStatus(context.Background(), org, ids, ledger.StatusConfirmed, "bob", "bank import")
	require.NoError(t, err)

	// THEN: K=3 succeed, N-K=3 fail, and every success is persisted
	assert.ElementsMatch(t, []ledger.TransactionID{ids[0], ids[2], ids[4]}, result.Succeeded)
	require.Len(t, result.Failed, 3)
	assert.False(t, result.AllSucceeded())
	assert.False(t, result.NoneSucceeded())

	for _, id := range result.Succeeded {
		assert.Equal(t, ledger.StatusConfirmed, f.statusOf(t, id).Status)
	}
	failed := map[ledger.TransactionID]error{}
	for _, fl := range result.Failed {
		failed[fl.ID] = fl.Err
	}
	assert.ErrorIs(t, failed[ids[1]], ledger.ErrStatusConflict)
	assert.ErrorIs(t, failed[ids[3]], ledger.ErrStatusConflict)
	assert.ErrorIs(t, failed["ghost"], ledger.ErrTransactionNotFound)
}

func TestBulkChangeStatus_AllAndNone(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "1000")
	a := f.record(t, acc.ID, ledger.TxIncome, "1")
	b := f.record(t, acc.ID, ledger.TxIncome, "2")
	ids := []ledger.TransactionID{a.ID, b.ID}

	result, err := f.svc.BulkChangeStatus(context.Background(), org, ids, ledger.StatusConfirmed, "", "")
	require.NoError(t, err)
	assert.True(t, result.AllSucceeded())

	result, err = f.svc.BulkChangeStatus(context.Background(), org, ids, ledger.StatusConfirmed, "", "")
	require.NoError(t, err)
	assert.True(t, result.NoneSucceeded())
	assert.Len(t, result.Failed, 2)
}

func TestBulkChangeStatus_RejectsBadRequestsUpFront(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "1000")
	tx := f.record(t, acc.ID, ledger.TxIncome, "1")

	oversized := make([]ledger.TransactionID, ledger.MaxBulkStatusBatch+1)
	for i := range oversized {
		oversized[i] = tx.ID
	}
	_, err := f.svc.BulkChangeStatus(context.Background(), org, oversized, ledger.StatusConfirmed, "", "")
	var tooLarge *ledger.BatchTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, ledger.MaxBulkStatusBatch+1, tooLarge.Size)

	// Nothing was touched
	assert.Equal(t, ledger.StatusUnconfirmed, f.statusOf(t, tx.ID).Status)

	_, err = f.svc.BulkChangeStatus(context.Background(), org, nil, ledger.StatusConfirmed, "", "")
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = f.svc.BulkChangeStatus(context.Background(), org, []ledger.TransactionID{tx.ID}, "void", "", "")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// RECONCILE & SUMMARY
// =============================================================================

func TestReconcile_AcceptsNonzeroDifference(t *testing.T) {
	// GIVEN: Opening 1000, confirmed income 200 and expense 50, one unconfirmed expense 30
	f := newFixture(t)
	acc := f.account(t, "1000")
	income := f.record(t, acc.ID, ledger.TxIncome, "200")
	expense := f.record(t, acc.ID, ledger.TxExpense, "50")
	pending := f.record(t, acc.ID, ledger.TxExpense, "30")
	f.confirm(t, income.ID)
	f.confirm(t, expense.ID)

	// WHEN: Reconciling against a statement of 1140
	result, err := f.svc.Reconcile(context.Background(), org, acc.ID, status.ReconcileInput{
		StatementBalance: dec("1140"),
		StatementDate:    time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		TransactionIDs:   []ledger.TransactionID{income.ID, expense.ID},
		Actor:            "carol",
	})
	require.NoError(t, err)

	// THEN: Cleared = 1000 + 200 - 50, difference = 1140 - 1150
	assert.Equal(t, 2, result.ReconciledCount)
	assert.True(t, dec("1150").Equal(result.ClearedBalance), "cleared %s", result.ClearedBalance)
	assert.True(t, dec("-10").Equal(result.Difference), "difference %s", result.Difference)

	for _, id := range []ledger.TransactionID{income.ID, expense.ID} {
		tx := f.statusOf(t, id)
		assert.Equal(t, ledger.StatusReconciled, tx.Status)
		require.NotNil(t, tx.ReconciledAt)
		assert.True(t, noon.Equal(*tx.ReconciledAt))
	}
	assert.Equal(t, ledger.StatusUnconfirmed, f.statusOf(t, pending.ID).Status)
}

func TestReconcile_RequiresConfirmedAndRollsBack(t *testing.T) {
	// GIVEN: One confirmed and one unconfirmed transaction
	f := newFixture(t)
	acc := f.account(t, "1000")
	confirmed := f.record(t, acc.ID, ledger.TxIncome, "5")
	unconfirmed := f.record(t, acc.ID, ledger.TxIncome, "6")
	f.confirm(t, confirmed.ID)

	// WHEN: Reconciling both
	_, err := f.svc.Reconcile(context.Background(), org, acc.ID, status.ReconcileInput{
		StatementBalance: dec("1011"),
		StatementDate:    march10,
		TransactionIDs:   []ledger.TransactionID{confirmed.ID, unconfirmed.ID},
	})

	// THEN: The error names the required status and nothing moved
	var required *ledger.RequiredStatusError
	require.ErrorAs(t, err, &required)
	assert.Equal(t, unconfirmed.ID, required.TransactionID)
	assert.Equal(t, ledger.StatusConfirmed, required.Required)
	assert.Equal(t, ledger.StatusUnconfirmed, required.Actual)
	assert.Equal(t, ledger.StatusConfirmed, f.statusOf(t, confirmed.ID).Status)
}

func TestReconcile_RejectsForeignTransaction(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "1000")
	other := f.account(t, "10")
	tx := f.record(t, other.ID, ledger.TxIncome, "5")
	f.confirm(t, tx.ID)

	_, err := f.svc.Reconcile(context.Background(), org, acc.ID, status.ReconcileInput{
		StatementDate:  march10,
		TransactionIDs: []ledger.TransactionID{tx.ID},
	})

	assert.ErrorIs(t, err, ledger.ErrValidation)
	assert.Equal(t, ledger.StatusConfirmed, f.statusOf(t, tx.ID).Status)
}

func TestReconcile_IncludesTransferDestination(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "500")
	b := f.account(t, "100")
	tx, err := f.txs.Create(context.Background(), org, a.ID, transactions.CreateInput{
		Type: ledger.TxTransfer, Amount: dec("50"), DestinationAccountID: &b.ID, Date: march10,
		Splits: []transactions.SplitInput{{CategoryName: "Transfers", Amount: dec("50")}},
	})
	require.NoError(t, err)
	f.confirm(t, tx.ID)

	result, err := f.svc.Reconcile(context.Background(), org, b.ID, status.ReconcileInput{
		StatementBalance: dec("150"),
		StatementDate:    march10,
		TransactionIDs:   []ledger.TransactionID{tx.ID},
	})
	require.NoError(t, err)

	assert.True(t, dec("150").Equal(result.ClearedBalance))
	assert.True(t, result.Difference.IsZero())
}

func TestReconcile_RequiresStatementDateAndTransactions(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "1000")
	tx := f.record(t, acc.ID, ledger.TxIncome, "5")
	f.confirm(t, tx.ID)

	tests := []struct {
		name  string
		in    status.ReconcileInput
		field string
	}{
		{
			name:  "missing statement date",
			in:    status.ReconcileInput{StatementBalance: dec("1005"), TransactionIDs: []ledger.TransactionID{tx.ID}},
			field: "statement_date",
		},
		{
			name:  "nil transaction list",
			in:    status.ReconcileInput{StatementBalance: dec("1005"), StatementDate: march10},
			field: "transaction_ids",
		},
		{
			name:  "empty transaction list",
			in:    status.ReconcileInput{StatementBalance: dec("1005"), StatementDate: march10, TransactionIDs: []ledger.TransactionID{}},
			field: "transaction_ids",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Reconcile(context.Background(), org, acc.ID, tt.in)

			var fieldErr *ledger.FieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, tt.field, fieldErr.Field)
			assert.True(t, ledger.IsValidation(err))
			assert.Equal(t, ledger.StatusConfirmed, f.statusOf(t, tx.ID).Status)
		})
	}
}

func TestSummary_GroupsByStatus(t *testing.T) {
	// GIVEN: Income 200 reconciled, expense 50 confirmed, expense 30 and income 5 unconfirmed
	f := newFixture(t)
	acc := f.account(t, "1000")
	income := f.record(t, acc.ID, ledger.TxIncome, "200")
	expense := f.record(t, acc.ID, ledger.TxExpense, "50")
	f.record(t, acc.ID, ledger.TxExpense, "30")
	f.record(t, acc.ID, ledger.TxIncome, "5")
	f.confirm(t, income.ID)
	f.confirm(t, expense.ID)
	_, err := f.svc.ChangeStatus(context.Background(), org, income.ID, ledger.StatusReconciled, "", "")
	require.NoError(t, err)

	// WHEN
	summary, err := f.svc.Summary(context.Background(), org, acc.ID)
	require.NoError(t, err)

	// THEN: One total per status in lifecycle order
	require.Len(t, summary.Totals, 3)
	assert.Equal(t, ledger.StatusUnconfirmed, summary.Totals[0].Status)
	assert.Equal(t, 2, summary.Total(ledger.StatusUnconfirmed).Count)
	assert.True(t, dec("-25").Equal(summary.Total(ledger.StatusUnconfirmed).Net))
	assert.Equal(t, 1, summary.Total(ledger.StatusConfirmed).Count)
	assert.True(t, dec("-50").Equal(summary.Total(ledger.StatusConfirmed).Net))
	assert.Equal(t, 1, summary.Total(ledger.StatusReconciled).Count)
	assert.True(t, dec("200").Equal(summary.Total(ledger.StatusReconciled).Net))
	assert.True(t, dec("1125").Equal(summary.Balance), "balance %s", summary.Balance)
}

func TestSummary_UnknownAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Summary(context.Background(), org, "missing")

	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
