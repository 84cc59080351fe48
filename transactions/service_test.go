package transactions_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/categories"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/ledger/store"
	"github.com/warp/ledger-engine/transactions"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const org ledger.OrgID = "org-1"

var march10 = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc  *transactions.Service
	cats *categories.Service
	mem  *store.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	cats := categories.NewService(mem)
	return &fixture{svc: transactions.NewService(mem, cats), cats: cats, mem: mem}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) account(t *testing.T, opening string, fee *string) *ledger.Account {
	t.Helper()
	in := transactions.AccountInput{Name: "Checking", OpeningBalance: dec(opening)}
	if fee != nil {
		in.TransactionFee = ptr(dec(*fee))
	}
	a, err := f.svc.CreateAccount(context.Background(), org, in)
	require.NoError(t, err)
	return a
}

func (f *fixture) balance(t *testing.T, id ledger.AccountID) decimal.Decimal {
	t.Helper()
	a, err := f.svc.GetAccount(context.Background(), org, id)
	require.NoError(t, err)
	return a.Balance
}

// assertBalance checks the stored balance and that a full recompute agrees.
func (f *fixture) assertBalance(t *testing.T, id ledger.AccountID, want string) {
	t.Helper()
	check, err := f.svc.VerifyBalance(context.Background(), org, id)
	require.NoError(t, err)
	assert.True(t, dec(want).Equal(check.Stored), "stored balance: want %s, got %s", want, check.Stored)
	assert.True(t, check.Consistent(), "drift %s", check.Drift)
}

func general(amount string) []transactions.SplitInput {
	return []transactions.SplitInput{{CategoryName: "General", Amount: dec(amount)}}
}

func (f *fixture) create(t *testing.T, accountID ledger.AccountID, in transactions.CreateInput) *ledger.Transaction {
	t.Helper()
	if in.Splits == nil {
		in.Splits = general(in.Amount.String())
	}
	if in.Date.IsZero() {
		in.Date = march10
	}
	tx, err := f.svc.Create(context.Background(), org, accountID, in)
	require.NoError(t, err)
	return tx
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_ExpenseWithFee(t *testing.T) {
	// GIVEN: Account at 1000 with a flat fee of 5
	f := newFixture(t)
	acc := f.account(t, "1000", ptr("5"))

	// WHEN: Recording an expense of 100 with the fee
	tx := f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("100"), ApplyFee: true})

	// THEN: Balance is 895, row starts unconfirmed at version 1
	f.assertBalance(t, acc.ID, "895")
	assert.Equal(t, ledger.StatusUnconfirmed, tx.Status)
	assert.Equal(t, 1, tx.Version)
	assert.True(t, dec("5").Equal(tx.Fee))

	history, err := f.mem.StatusHistory(context.Background(), tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStatus)
	assert.Equal(t, ledger.StatusUnconfirmed, history[0].ToStatus)

	count, err := f.mem.CountEdits(context.Background(), org, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreate_FeeOnlyWhenRequested(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "1000", ptr("5"))

	f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxIncome, Amount: dec("100")})
	f.assertBalance(t, acc.ID, "1100")

	f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxIncome, Amount: dec("100"), ApplyFee: true})
	f.assertBalance(t, acc.ID, "1195")
}

func TestCreate_TransferMovesBothLegs(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "500", ptr("2"))
	b := f.account(t, "100", nil)

	f.create(t, a.ID, transactions.CreateInput{
		Type: ledger.TxTransfer, Amount: dec("50"), ApplyFee: true, DestinationAccountID: &b.ID,
	})

	f.assertBalance(t, a.ID, "448")
	f.assertBalance(t, b.ID, "150")
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "100", nil)
	b := f.account(t, "100", nil)
	missing := ledger.AccountID("missing")
	ctx := context.Background()

	tests := []struct {
		name    string
		account ledger.AccountID
		in      transactions.CreateInput
		want    error
	}{
		{"unknown type", a.ID, transactions.CreateInput{Type: "gift", Amount: dec("1"), Splits: general("1")}, ledger.ErrValidation},
		{"zero amount", a.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("0"), Splits: general("1")}, ledger.ErrValidation},
		{"no splits", a.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("1")}, ledger.ErrValidation},
		{"negative split", a.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("1"), Splits: general("-1")}, ledger.ErrValidation},
		{"unknown account", missing, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("1"), Splits: general("1")}, ledger.ErrAccountNotFound},
		{"transfer without destination", a.ID, transactions.CreateInput{Type: ledger.TxTransfer, Amount: dec("1"), Splits: general("1")}, ledger.ErrInvalidTransfer},
		{"transfer to itself", a.ID, transactions.CreateInput{Type: ledger.TxTransfer, Amount: dec("1"), DestinationAccountID: &a.ID, Splits: general("1")}, ledger.ErrInvalidTransfer},
		{"unknown destination", a.ID, transactions.CreateInput{Type: ledger.TxTransfer, Amount: dec("1"), DestinationAccountID: &missing, Splits: general("1")}, ledger.ErrDestinationNotFound},
		{"destination on expense", a.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("1"), DestinationAccountID: &b.ID, Splits: general("1")}, ledger.ErrInvalidTransfer},
		{"unknown vendor", a.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("1"), VendorID: ptr(ledger.VendorID("v")), Splits: general("1")}, ledger.ErrVendorNotFound},
		{"unknown category", a.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("1"), Splits: []transactions.SplitInput{{CategoryID: ptr(ledger.CategoryID("c")), Amount: dec("1")}}}, ledger.ErrCategoryNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, org, tt.account, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}

	// Nothing was applied by any rejected create
	f.assertBalance(t, a.ID, "100")
	f.assertBalance(t, b.ID, "100")
}

func TestCreate_SplitCategoryByNameIsReused(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "100", nil)

	tx1 := f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("10"),
		Splits: []transactions.SplitInput{{CategoryName: "Groceries", Amount: dec("10")}}})
	tx2 := f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("10"),
		Splits: []transactions.SplitInput{{CategoryName: "groceries", Amount: dec("10")}}})

	assert.Equal(t, tx1.Splits[0].CategoryID, tx2.Splits[0].CategoryID)
	roots, err := f.cats.List(context.Background(), org, ledger.CategoryFilter{RootsOnly: true})
	require.NoError(t, err)
	assert.Len(t, roots, 1)
}

func TestCreate_SplitsNeedNotSumToAmount(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "100", nil)

	tx := f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("30"),
		Splits: []transactions.SplitInput{
			{CategoryName: "Food", Amount: dec("10")},
			{CategoryName: "Fun", Amount: dec("5")},
		}})

	assert.Len(t, tx.Splits, 2)
	f.assertBalance(t, acc.ID, "70")
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdate_ExpenseToIncomeScenario(t *testing.T) {
	tests := []struct {
		name     string
		applyFee *bool
		want     string
	}{
		// 1000 - 105 = 895; reverse to 1000; +100 - 5 = 1095
		{"fee kept", nil, "1095"},
		// 1000 - 105 = 895; reverse to 1000; +100 - 0 = 1100
		{"fee cleared", ptr(false), "1100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN: Balance 1000, expense 100 with fee 5
			f := newFixture(t)
			acc := f.account(t, "1000", ptr("5"))
			tx := f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("100"), ApplyFee: true})
			f.assertBalance(t, acc.ID, "895")

			// WHEN: It becomes an income of 100
			updated, err := f.svc.Update(context.Background(), org, tx.ID, transactions.UpdateInput{
				Type:     ptr(ledger.TxIncome),
				ApplyFee: tt.applyFee,
			})
			require.NoError(t, err)

			// THEN: Balance matches a full recompute
			f.assertBalance(t, acc.ID, tt.want)
			assert.Equal(t, 2, updated.Version)
		})
	}
}

func TestUpdate_AllTypeTransitionsKeepBalancesConsistent(t *testing.T) {
	// GIVEN: Three accounts and one transaction that changes shape repeatedly
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "1000", ptr("3"))
	b := f.account(t, "200", nil)
	c := f.account(t, "50", nil)
	other := f.create(t, a.ID, transactions.CreateInput{Type: ledger.TxIncome, Amount: dec("40")})
	tx := f.create(t, a.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("100")})

	steps := []struct {
		name string
		in   transactions.UpdateInput
	}{
		{"expense to transfer", transactions.UpdateInput{Type: ptr(ledger.TxTransfer), DestinationAccountID: &b.ID}},
		{"transfer amount and fee", transactions.UpdateInput{Amount: ptr(dec("75.50")), ApplyFee: ptr(true)}},
		{"transfer destination change", transactions.UpdateInput{DestinationAccountID: &c.ID}},
		{"transfer to income", transactions.UpdateInput{Type: ptr(ledger.TxIncome)}},
		{"income to expense", transactions.UpdateInput{Type: ptr(ledger.TxExpense), ApplyFee: ptr(false)}},
		{"expense to transfer again", transactions.UpdateInput{Type: ptr(ledger.TxTransfer), DestinationAccountID: &c.ID, Amount: ptr(dec("10"))}},
	}

	for i, step := range steps {
		updated, err := f.svc.Update(ctx, org, tx.ID, step.in)
		require.NoError(t, err, step.name)
		assert.Equal(t, i+2, updated.Version, step.name)

		for _, id := range []ledger.AccountID{a.ID, b.ID, c.ID} {
			check, err := f.svc.VerifyBalance(ctx, org, id)
			require.NoError(t, err)
			assert.True(t, check.Consistent(), "%s: account %s drifted by %s", step.name, id, check.Drift)
		}
	}

	// WHEN: Deleting both transactions
	require.NoError(t, f.svc.Delete(ctx, org, tx.ID, transactions.DeleteInput{}))
	require.NoError(t, f.svc.Delete(ctx, org, other.ID, transactions.DeleteInput{}))

	// THEN: Every account is back at its opening balance
	f.assertBalance(t, a.ID, "1000")
	f.assertBalance(t, b.ID, "200")
	f.assertBalance(t, c.ID, "50")
}

func TestUpdate_DestinationChangeMovesLegs(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "100", nil)
	b := f.account(t, "0", nil)
	c := f.account(t, "0", nil)
	tx := f.create(t, a.ID, transactions.CreateInput{Type: ledger.TxTransfer, Amount: dec("30"), DestinationAccountID: &b.ID})

	_, err := f.svc.Update(context.Background(), org, tx.ID, transactions.UpdateInput{DestinationAccountID: &c.ID})
	require.NoError(t, err)

	f.assertBalance(t, a.ID, "70")
	f.assertBalance(t, b.ID, "0")
	f.assertBalance(t, c.ID, "30")
}

func TestUpdate_TransferToExpenseClearsDestination(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "100", nil)
	b := f.account(t, "0", nil)
	tx := f.create(t, a.ID, transactions.CreateInput{Type: ledger.TxTransfer, Amount: dec("30"), DestinationAccountID: &b.ID})

	updated, err := f.svc.Update(context.Background(), org, tx.ID, transactions.UpdateInput{Type: ptr(ledger.TxExpense)})
	require.NoError(t, err)

	assert.Nil(t, updated.DestinationAccountID)
	f.assertBalance(t, a.ID, "70")
	f.assertBalance(t, b.ID, "0")

	// Explicitly keeping a destination on a non-transfer is rejected
	_, err = f.svc.Update(context.Background(), org, tx.ID, transactions.UpdateInput{DestinationAccountID: &b.ID})
	require.ErrorIs(t, err, ledger.ErrInvalidTransfer)
}

func TestUpdate_ReplacesSplitsWholesale(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "100", nil)
	tx := f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("20"),
		Splits: []transactions.SplitInput{{CategoryName: "Food", Amount: dec("20")}}})

	splits := []transactions.SplitInput{
		{CategoryName: "Travel", Amount: dec("15")},
		{CategoryName: "Fun", Amount: dec("5")},
	}
	updated, err := f.svc.Update(context.Background(), org, tx.ID, transactions.UpdateInput{Splits: &splits})
	require.NoError(t, err)

	stored, err := f.svc.Get(context.Background(), org, tx.ID)
	require.NoError(t, err)
	require.Len(t, stored.Splits, 2)
	assert.Equal(t, updated.Splits, stored.Splits)
	assert.NotEqual(t, tx.Splits[0].ID, stored.Splits[0].ID)

	latest, err := f.mem.EditHistory(context.Background(), org, tx.ID, 1, 0)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Len(t, latest[0].Changes, 1)
	assert.Equal(t, "splits", latest[0].Changes[0].Field)
}

func TestUpdate_NoChangeKeepsVersion(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "100", nil)
	tx := f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("20"), Memo: "lunch"})

	updated, err := f.svc.Update(context.Background(), org, tx.ID, transactions.UpdateInput{Memo: ptr("lunch"), Amount: ptr(dec("20.00"))})
	require.NoError(t, err)

	assert.Equal(t, 1, updated.Version)
	count, err := f.mem.CountEdits(context.Background(), org, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdate_InactiveAccountRejected(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "100", nil)
	tx := f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("20")})

	// GIVEN the account was deactivated after the transaction was recorded
	_, err := f.svc.SetAccountActive(context.Background(), org, acc.ID, false)
	require.NoError(t, err)

	// WHEN the amount is edited
	_, err = f.svc.Update(context.Background(), org, tx.ID, transactions.UpdateInput{Amount: ptr(dec("50"))})

	// THEN the edit is refused and nothing moves
	require.ErrorIs(t, err, ledger.ErrInactive)
	assert.True(t, ledger.IsValidation(err))
	f.assertBalance(t, acc.ID, "80")

	// Reactivating lets the edit through
	_, err = f.svc.SetAccountActive(context.Background(), org, acc.ID, true)
	require.NoError(t, err)
	_, err = f.svc.Update(context.Background(), org, tx.ID, transactions.UpdateInput{Amount: ptr(dec("50"))})
	require.NoError(t, err)
	f.assertBalance(t, acc.ID, "50")
}

func TestUpdate_StaleVersionReturnsCurrentState(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "100", nil)
	tx := f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("20")})

	_, err := f.svc.Update(context.Background(), org, tx.ID, transactions.UpdateInput{ExpectedVersion: ptr(1), Memo: ptr("first")})
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), org, tx.ID, transactions.UpdateInput{ExpectedVersion: ptr(1), Memo: ptr("second")})

	var conflict *ledger.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 1, conflict.ExpectedVersion)
	assert.Equal(t, 2, conflict.CurrentVersion)
	require.NotNil(t, conflict.Current)
	assert.Equal(t, "first", conflict.Current.Memo)
	assert.True(t, ledger.IsConflict(err))
}

func TestUpdate_ConcurrentSameVersionExactlyOneWins(t *testing.T) {
	// GIVEN: A transaction at version 1
	f := newFixture(t)
	acc := f.account(t, "1000", nil)
	tx := f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("100")})

	// WHEN: Two callers update it concurrently, both presenting version 1
	amounts := []string{"150", "175"}
	errs := make([]error, len(amounts))
	var wg sync.WaitGroup
	for i, amount := range amounts {
		wg.Add(1)
		go func(i int, amount string) {
			defer wg.Done()
			_, errs[i] = f.svc.Update(context.Background(), org, tx.ID, transactions.UpdateInput{
				ExpectedVersion: ptr(1),
				Amount:          ptr(dec(amount)),
			})
		}(i, amount)
	}
	wg.Wait()

	// THEN: Exactly one succeeded; the other sees version 2 and the winner's row
	var wins, conflicts int
	var conflict *ledger.VersionConflictError
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorAs(t, err, &conflict)
		conflicts++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 2, conflict.CurrentVersion)

	stored, err := f.svc.Get(context.Background(), org, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
	assert.True(t, stored.Amount.Equal(conflict.Current.Amount))
	f.assertBalance(t, acc.ID, decimal.NewFromInt(1000).Sub(stored.Amount).String())
}

func TestUpdate_ReconciledRejectsSensitiveFields(t *testing.T) {
	// GIVEN: A reconciled expense
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "100", nil)
	tx := f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("20")})
	reconcile(t, f.mem, tx)

	// WHEN/THEN: Amount and date cannot change
	_, err := f.svc.Update(ctx, org, tx.ID, transactions.UpdateInput{Amount: ptr(dec("25")), Date: ptr(march10.AddDate(0, 0, 1))})
	var rec *ledger.ReconciledError
	require.ErrorAs(t, err, &rec)
	assert.Equal(t, []string{"amount", "date"}, rec.Fields)

	// Memo stays editable
	updated, err := f.svc.Update(ctx, org, tx.ID, transactions.UpdateInput{Memo: ptr("checked")})
	require.NoError(t, err)
	assert.Equal(t, "checked", updated.Memo)

	// Delete is refused
	err = f.svc.Delete(ctx, org, tx.ID, transactions.DeleteInput{})
	require.ErrorIs(t, err, ledger.ErrReconciled)
	f.assertBalance(t, acc.ID, "80")
}

func reconcile(t *testing.T, mem *store.Memory, tx *ledger.Transaction) {
	t.Helper()
	ctx := context.Background()
	next := *tx
	next.Status = ledger.StatusConfirmed
	require.NoError(t, mem.UpdateStatus(ctx, next, ledger.StatusUnconfirmed))
	next.Status = ledger.StatusReconciled
	require.NoError(t, mem.UpdateStatus(ctx, next, ledger.StatusConfirmed))
}

// =============================================================================
// DELETE / RESTORE
// =============================================================================

func TestDelete_TransferRestoresBothAccounts(t *testing.T) {
	// GIVEN: Transfer of 50 from A to B
	f := newFixture(t)
	a := f.account(t, "300", nil)
	b := f.account(t, "20", nil)
	tx := f.create(t, a.ID, transactions.CreateInput{Type: ledger.TxTransfer, Amount: dec("50"), DestinationAccountID: &b.ID})
	f.assertBalance(t, a.ID, "250")
	f.assertBalance(t, b.ID, "70")

	// WHEN: It is deleted
	require.NoError(t, f.svc.Delete(context.Background(), org, tx.ID, transactions.DeleteInput{Actor: "alice"}))

	// THEN: Both accounts are back exactly
	f.assertBalance(t, a.ID, "300")
	f.assertBalance(t, b.ID, "20")

	_, err := f.svc.Get(context.Background(), org, tx.ID)
	require.ErrorIs(t, err, ledger.ErrTransactionNotFound)

	latest, err := f.mem.EditHistory(context.Background(), org, tx.ID, 1, 0)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, ledger.EditDelete, latest[0].Kind)
	assert.Equal(t, "alice", latest[0].Actor)
	require.NotNil(t, latest[0].Snapshot)
	assert.True(t, dec("50").Equal(latest[0].Snapshot.Amount))
}

func TestDelete_StaleVersion(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "100", nil)
	tx := f.create(t, acc.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("20")})

	err := f.svc.Delete(context.Background(), org, tx.ID, transactions.DeleteInput{ExpectedVersion: ptr(7)})
	require.ErrorIs(t, err, ledger.ErrVersionConflict)
	f.assertBalance(t, acc.ID, "80")
}

func TestRestore_ReappliesImpactAndBumpsVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "300", nil)
	b := f.account(t, "0", nil)
	tx := f.create(t, a.ID, transactions.CreateInput{Type: ledger.TxTransfer, Amount: dec("50"), DestinationAccountID: &b.ID})
	require.NoError(t, f.svc.Delete(ctx, org, tx.ID, transactions.DeleteInput{}))

	restored, err := f.svc.Restore(ctx, org, tx.ID, "bob")
	require.NoError(t, err)

	assert.Equal(t, 2, restored.Version)
	assert.Len(t, restored.Splits, 1)
	f.assertBalance(t, a.ID, "250")
	f.assertBalance(t, b.ID, "50")

	// A live transaction cannot be restored
	_, err = f.svc.Restore(ctx, org, tx.ID, "bob")
	require.ErrorIs(t, err, ledger.ErrAlreadyExists)

	count, err := f.mem.CountEdits(ctx, org, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRestore_UnknownTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Restore(context.Background(), org, "never-existed", "bob")
	require.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

// =============================================================================
// LIST
// =============================================================================

func TestList_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "1000", nil)
	b := f.account(t, "0", nil)
	vendor, err := f.svc.CreateVendor(ctx, org, "Airline")
	require.NoError(t, err)

	flight := f.create(t, a.ID, transactions.CreateInput{Type: ledger.TxExpense, Amount: dec("300"), VendorID: &vendor.ID,
		Date: march10, Splits: []transactions.SplitInput{{CategoryName: "Flights", Amount: dec("300")}}})
	f.create(t, a.ID, transactions.CreateInput{Type: ledger.TxIncome, Amount: dec("50"), Date: march10.AddDate(0, 0, 1)})
	move := f.create(t, a.ID, transactions.CreateInput{Type: ledger.TxTransfer, Amount: dec("10"), DestinationAccountID: &b.ID,
		Date: march10.AddDate(0, 0, 2)})

	all, err := f.svc.List(ctx, org, ledger.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, move.ID, all[0].ID, "newest first")

	byCategory, err := f.svc.List(ctx, org, ledger.TransactionFilter{CategoryName: "LIGHT"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, flight.ID, byCategory[0].ID)

	byVendor, err := f.svc.List(ctx, org, ledger.TransactionFilter{VendorID: &vendor.ID})
	require.NoError(t, err)
	assert.Len(t, byVendor, 1)

	byType, err := f.svc.List(ctx, org, ledger.TransactionFilter{Type: ptr(ledger.TxIncome)})
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	byDestination, err := f.svc.List(ctx, org, ledger.TransactionFilter{AccountID: &b.ID})
	require.NoError(t, err)
	require.Len(t, byDestination, 1)
	assert.Equal(t, move.ID, byDestination[0].ID)

	byDate, err := f.svc.List(ctx, org, ledger.TransactionFilter{DateFrom: ptr(march10.AddDate(0, 0, 1))})
	require.NoError(t, err)
	assert.Len(t, byDate, 2)

	page, err := f.svc.List(ctx, org, ledger.TransactionFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, flight.ID, page[0].ID)

	_, err = f.svc.List(ctx, org, ledger.TransactionFilter{Limit: -1})
	require.ErrorIs(t, err, ledger.ErrValidation)
}
