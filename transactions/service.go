/*
Package transactions keeps account balances consistent with the ledger.

PURPOSE:

	Orchestrates create, update, delete and restore of transactions. Each
	operation runs in a single store transaction that also adjusts one or two
	account balances and appends the audit rows, so a transaction row is
	never observable without its matching balance adjustment.

BALANCE FLOW:

	┌──────────┐   ┌───────────────┐   ┌─────────────────────┐   ┌───────────┐
	│ validate │──▶│ write row and │──▶│ AdjustBalance per   │──▶│ append    │
	│ refs     │   │ splits        │   │ ledger.Effects /    │   │ audit row │
	│          │   │               │   │ EditAdjustments     │   │           │
	└──────────┘   └───────────────┘   └─────────────────────┘   └───────────┘
	     all inside TxStore.WithTx, rolled back as one on any error

STATUS-SENSITIVE FIELDS:

	type, amount, fee, destination, date and splits cannot change once a
	transaction is reconciled. Memo and vendor stay editable.

OPTIMISTIC CONCURRENCY:

	Updates may carry the version the caller read. A mismatch returns a
	VersionConflictError holding the current row. The store re-checks the
	version in its UPDATE so two writers can never both win.

SEE ALSO:
  - ledger/impact.go: Balance math
  - audit/diff.go:    Field-level diffs
  - status/service.go: Status transitions
*/
package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/audit"
	"github.com/warp/ledger-engine/ledger"
)

// DefaultActor is recorded when a caller does not name one.
const DefaultActor = "system"

// CategoryResolver finds or creates split categories inside a store
// transaction. categories.Service implements it.
type CategoryResolver interface {
	ResolveTx(ctx context.Context, st ledger.Store, orgID ledger.OrgID, id *ledger.CategoryID, name string) (*ledger.Category, bool, error)
	Invalidate(orgID ledger.OrgID)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store      ledger.TxStore
	categories CategoryResolver
	log        zerolog.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store ledger.TxStore, categories CategoryResolver, opts ...Option) *Service {
	s := &Service{
		store:      store,
		categories: categories,
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// INPUTS
// =============================================================================

// SplitInput names a category by id, or by name to find-or-create at root.
type SplitInput struct {
	CategoryID   *ledger.CategoryID
	CategoryName string
	Amount       decimal.Decimal
}

type CreateInput struct {
	Type   ledger.TxType
	Amount decimal.Decimal
	// ApplyFee charges the account's flat transaction fee.
	ApplyFee             bool
	DestinationAccountID *ledger.AccountID
	Date                 time.Time
	VendorID             *ledger.VendorID
	Memo                 string
	Splits               []SplitInput
	Actor                string
}

// UpdateInput holds optional changes; nil fields keep their stored value.
type UpdateInput struct {
	// ExpectedVersion, when set, must equal the stored version.
	ExpectedVersion *int
	Type            *ledger.TxType
	Amount          *decimal.Decimal
	// ApplyFee nil keeps the stored fee, true charges the account's flat
	// fee, false clears it.
	ApplyFee *bool
	// DestinationAccountID is cleared automatically when the type changes
	// away from transfer.
	DestinationAccountID *ledger.AccountID
	Date                 *time.Time
	VendorID             *ledger.VendorID
	ClearVendor          bool
	Memo                 *string
	// Splits, when non-nil, replaces every split of the transaction.
	Splits *[]SplitInput
	Actor  string
}

type DeleteInput struct {
	ExpectedVersion *int
	Actor           string
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID) (*ledger.Transaction, error) {
	return s.store.GetTransaction(ctx, orgID, id)
}

// List returns the organization's transactions newest first.
func (s *Service) List(ctx context.Context, orgID ledger.OrgID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	if filter.Limit < 0 {
		return nil, &ledger.FieldError{Field: "limit", Reason: "must not be negative"}
	}
	if filter.Offset < 0 {
		return nil, &ledger.FieldError{Field: "offset", Reason: "must not be negative"}
	}
	return s.store.ListTransactions(ctx, orgID, filter)
}

// =============================================================================
// CREATE
// =============================================================================

// Create records a new unconfirmed transaction on accountID and applies its
// impact to the account, and to the destination for transfers.
func (s *Service) Create(ctx context.Context, orgID ledger.OrgID, accountID ledger.AccountID, in CreateInput) (*ledger.Transaction, error) {
	if err := validateType(in.Type); err != nil {
		return nil, err
	}
	if err := validateAmount("amount", in.Amount); err != nil {
		return nil, err
	}
	if len(in.Splits) == 0 {
		return nil, &ledger.FieldError{Field: "splits", Reason: "at least one split is required"}
	}

	var (
		created     *ledger.Transaction
		newCategory bool
	)
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		account, err := activeAccount(ctx, st, orgID, accountID)
		if err != nil {
			return err
		}
		if err := validateRefs(ctx, st, orgID, accountID, in.Type, in.DestinationAccountID, in.VendorID); err != nil {
			return err
		}

		now := s.now().UTC()
		tx := ledger.Transaction{
			ID:                   ledger.TransactionID(uuid.NewString()),
			OrgID:                orgID,
			AccountID:            accountID,
			DestinationAccountID: in.DestinationAccountID,
			Type:                 in.Type,
			Amount:               in.Amount,
			Fee:                  decimal.Zero,
			Date:                 dateOrNow(in.Date, now),
			VendorID:             in.VendorID,
			Memo:                 in.Memo,
			Status:               ledger.StatusUnconfirmed,
			Version:              1,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if in.ApplyFee {
			tx.Fee = account.FlatFee()
		}

		splits, anyNew, err := s.resolveSplits(ctx, st, orgID, tx.ID, in.Splits)
		if err != nil {
			return err
		}
		tx.Splits = splits
		newCategory = anyNew

		if err := st.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		if err := applyAdjustments(ctx, st, ledger.Effects(tx.Values())); err != nil {
			return err
		}

		actor := actorOrDefault(in.Actor)
		err = st.AppendStatusHistory(ctx, ledger.StatusHistoryEntry{
			ID:            uuid.NewString(),
			TransactionID: tx.ID,
			ToStatus:      ledger.StatusUnconfirmed,
			Actor:         actor,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}
		if err := st.AppendEdit(ctx, audit.NewEntry(tx, actor, ledger.EditCreate, audit.Created(tx), now)); err != nil {
			return err
		}

		created = &tx
		return nil
	})
	if err != nil {
		s.log.Debug().Err(err).Str("org_id", string(orgID)).Str("account_id", string(accountID)).Msg("transaction create rejected")
		return nil, err
	}

	if newCategory {
		s.categories.Invalidate(orgID)
	}
	s.log.Info().
		Str("org_id", string(orgID)).
		Str("transaction_id", string(created.ID)).
		Str("account_id", string(accountID)).
		Str("type", string(created.Type)).
		Str("amount", created.Amount.String()).
		Msg("transaction created")
	return created, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// Update applies in to the transaction, moving balances by the difference
// between its old and new impact. An update that changes nothing returns
// the stored row without bumping the version.
func (s *Service) Update(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID, in UpdateInput) (*ledger.Transaction, error) {
	var (
		updated     *ledger.Transaction
		newCategory bool
	)
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		existing, err := st.GetTransaction(ctx, orgID, id)
		if err != nil {
			return err
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != existing.Version {
			return versionConflict(existing, *in.ExpectedVersion)
		}

		next, err := s.applyInput(ctx, st, *existing, in)
		if err != nil {
			return err
		}

		var anyNew bool
		if in.Splits != nil {
			if len(*in.Splits) == 0 {
				return &ledger.FieldError{Field: "splits", Reason: "at least one split is required"}
			}
			next.Splits, anyNew, err = s.resolveSplits(ctx, st, orgID, id, *in.Splits)
			if err != nil {
				return err
			}
		}

		if existing.Status == ledger.StatusReconciled {
			if fields := sensitiveChanges(*existing, next); len(fields) > 0 {
				return &ledger.ReconciledError{TransactionID: id, Operation: "update", Fields: fields}
			}
		}
		if _, err := activeAccount(ctx, st, orgID, next.AccountID); err != nil {
			return err
		}
		if err := validateRefs(ctx, st, orgID, next.AccountID, next.Type, next.DestinationAccountID, next.VendorID); err != nil {
			return err
		}

		changes := audit.Diff(*existing, next)
		if len(changes) == 0 {
			updated = existing
			return nil
		}

		now := s.now().UTC()
		next.Version = existing.Version + 1
		next.UpdatedAt = now

		if err := st.UpdateTransaction(ctx, next, existing.Version); err != nil {
			if errors.Is(err, ledger.ErrVersionConflict) {
				return s.reloadConflict(ctx, st, orgID, id, existing.Version)
			}
			return err
		}
		if in.Splits != nil {
			if err := st.ReplaceSplits(ctx, id, next.Splits); err != nil {
				return err
			}
		}
		if err := applyAdjustments(ctx, st, ledger.EditAdjustments(existing.Values(), next.Values())); err != nil {
			return err
		}
		entry := audit.NewEntry(next, actorOrDefault(in.Actor), ledger.EditUpdate, changes, now)
		if err := st.AppendEdit(ctx, entry); err != nil {
			return err
		}

		updated = &next
		newCategory = anyNew
		return nil
	})
	if err != nil {
		s.log.Debug().Err(err).Str("org_id", string(orgID)).Str("transaction_id", string(id)).Msg("transaction update rejected")
		return nil, err
	}

	if newCategory {
		s.categories.Invalidate(orgID)
	}
	s.log.Info().
		Str("org_id", string(orgID)).
		Str("transaction_id", string(id)).
		Int("version", updated.Version).
		Msg("transaction updated")
	return updated, nil
}

// applyInput returns a copy of tx with every field of in applied.
// Splits are resolved separately.
func (s *Service) applyInput(ctx context.Context, st ledger.Store, tx ledger.Transaction, in UpdateInput) (ledger.Transaction, error) {
	tx.Splits = append([]ledger.Split(nil), tx.Splits...)

	if in.Type != nil {
		if err := validateType(*in.Type); err != nil {
			return tx, err
		}
		if tx.Type == ledger.TxTransfer && *in.Type != ledger.TxTransfer && in.DestinationAccountID == nil {
			tx.DestinationAccountID = nil
		}
		tx.Type = *in.Type
	}
	if in.Amount != nil {
		if err := validateAmount("amount", *in.Amount); err != nil {
			return tx, err
		}
		tx.Amount = *in.Amount
	}
	if in.DestinationAccountID != nil {
		dest := *in.DestinationAccountID
		tx.DestinationAccountID = &dest
	}
	if in.ApplyFee != nil {
		tx.Fee = decimal.Zero
		if *in.ApplyFee {
			account, err := st.GetAccount(ctx, tx.OrgID, tx.AccountID)
			if err != nil {
				return tx, err
			}
			tx.Fee = account.FlatFee()
		}
	}
	if in.Date != nil {
		tx.Date = in.Date.UTC()
	}
	switch {
	case in.ClearVendor:
		tx.VendorID = nil
	case in.VendorID != nil:
		v := *in.VendorID
		tx.VendorID = &v
	}
	if in.Memo != nil {
		tx.Memo = *in.Memo
	}
	return tx, nil
}

// sensitiveChanges names the status-sensitive fields that differ.
func sensitiveChanges(before, after ledger.Transaction) []string {
	var fields []string
	if before.Type != after.Type {
		fields = append(fields, "type")
	}
	if !before.Amount.Equal(after.Amount) {
		fields = append(fields, "amount")
	}
	if !before.Fee.Equal(after.Fee) {
		fields = append(fields, "fee")
	}
	if !sameAccountRef(before.DestinationAccountID, after.DestinationAccountID) {
		fields = append(fields, "destination_account_id")
	}
	if !before.Date.Equal(after.Date) {
		fields = append(fields, "date")
	}
	if audit.SummarizeSplits(before.Splits) != audit.SummarizeSplits(after.Splits) {
		fields = append(fields, "splits")
	}
	return fields
}

// =============================================================================
// DELETE / RESTORE
// =============================================================================

// Delete reverses the transaction's stored impact and removes it with its
// splits. A snapshot is kept in the edit history for Restore.
func (s *Service) Delete(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID, in DeleteInput) error {
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		existing, err := st.GetTransaction(ctx, orgID, id)
		if err != nil {
			return err
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != existing.Version {
			return versionConflict(existing, *in.ExpectedVersion)
		}
		if existing.Status == ledger.StatusReconciled {
			return &ledger.ReconciledError{TransactionID: id, Operation: "delete"}
		}

		if err := st.DeleteTransaction(ctx, orgID, id); err != nil {
			return err
		}
		if err := applyAdjustments(ctx, st, ledger.Reverse(ledger.Effects(existing.Values()))); err != nil {
			return err
		}

		entry := audit.NewEntry(*existing, actorOrDefault(in.Actor), ledger.EditDelete, nil, s.now().UTC())
		entry.Snapshot = audit.Snapshot(*existing)
		return st.AppendEdit(ctx, entry)
	})
	if err != nil {
		s.log.Debug().Err(err).Str("org_id", string(orgID)).Str("transaction_id", string(id)).Msg("transaction delete rejected")
		return err
	}

	s.log.Info().Str("org_id", string(orgID)).Str("transaction_id", string(id)).Msg("transaction deleted")
	return nil
}

// Restore re-creates a deleted transaction from its delete snapshot and
// re-applies its impact. The restored row gets the next version.
func (s *Service) Restore(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID, actor string) (*ledger.Transaction, error) {
	var restored *ledger.Transaction
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		_, err := st.GetTransaction(ctx, orgID, id)
		if err == nil {
			return fmt.Errorf("transaction %s is not deleted: %w", id, ledger.ErrAlreadyExists)
		}
		if !errors.Is(err, ledger.ErrTransactionNotFound) {
			return err
		}

		latest, err := st.EditHistory(ctx, orgID, id, 1, 0)
		if err != nil {
			return err
		}
		if len(latest) == 0 || latest[0].Kind != ledger.EditDelete || latest[0].Snapshot == nil {
			return ledger.ErrTransactionNotFound
		}

		tx := *audit.Snapshot(*latest[0].Snapshot)
		if _, err := activeAccount(ctx, st, orgID, tx.AccountID); err != nil {
			return err
		}
		if err := validateRefs(ctx, st, orgID, tx.AccountID, tx.Type, tx.DestinationAccountID, tx.VendorID); err != nil {
			return err
		}
		for _, sp := range tx.Splits {
			if _, err := st.GetCategory(ctx, orgID, sp.CategoryID); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		tx.Version++
		tx.UpdatedAt = now

		if err := st.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		if err := applyAdjustments(ctx, st, ledger.Effects(tx.Values())); err != nil {
			return err
		}

		entry := audit.NewEntry(tx, actorOrDefault(actor), ledger.EditRestore, nil, now)
		entry.Snapshot = latest[0].Snapshot
		if err := st.AppendEdit(ctx, entry); err != nil {
			return err
		}

		restored = &tx
		return nil
	})
	if err != nil {
		s.log.Debug().Err(err).Str("org_id", string(orgID)).Str("transaction_id", string(id)).Msg("transaction restore rejected")
		return nil, err
	}

	s.log.Info().
		Str("org_id", string(orgID)).
		Str("transaction_id", string(id)).
		Int("version", restored.Version).
		Msg("transaction restored")
	return restored, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) resolveSplits(ctx context.Context, st ledger.Store, orgID ledger.OrgID, txID ledger.TransactionID, inputs []SplitInput) ([]ledger.Split, bool, error) {
	splits := make([]ledger.Split, 0, len(inputs))
	anyNew := false
	for i, in := range inputs {
		if err := validateAmount(fmt.Sprintf("splits[%d].amount", i), in.Amount); err != nil {
			return nil, false, err
		}
		c, created, err := s.categories.ResolveTx(ctx, st, orgID, in.CategoryID, in.CategoryName)
		if err != nil {
			return nil, false, err
		}
		anyNew = anyNew || created
		splits = append(splits, ledger.Split{
			ID:            ledger.SplitID(uuid.NewString()),
			TransactionID: txID,
			CategoryID:    c.ID,
			Amount:        in.Amount,
		})
	}
	return splits, anyNew, nil
}

// validateRefs checks the destination and vendor references for the type.
func validateRefs(ctx context.Context, st ledger.Store, orgID ledger.OrgID, accountID ledger.AccountID, typ ledger.TxType, dest *ledger.AccountID, vendor *ledger.VendorID) error {
	if typ == ledger.TxTransfer {
		if dest == nil {
			return &ledger.TransferError{Reason: "destination account is required"}
		}
		if *dest == accountID {
			return &ledger.TransferError{Reason: "source and destination accounts must differ"}
		}
		d, err := st.GetAccount(ctx, orgID, *dest)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return ledger.ErrDestinationNotFound
		}
		if err != nil {
			return err
		}
		if !d.Active {
			return &ledger.InactiveError{Kind: "destination account", ID: string(d.ID)}
		}
	} else if dest != nil {
		return &ledger.TransferError{Reason: "destination account is only allowed for transfers"}
	}

	if vendor != nil {
		if _, err := st.GetVendor(ctx, orgID, *vendor); err != nil {
			return err
		}
	}
	return nil
}

func activeAccount(ctx context.Context, st ledger.Store, orgID ledger.OrgID, id ledger.AccountID) (*ledger.Account, error) {
	account, err := st.GetAccount(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, &ledger.InactiveError{Kind: "account", ID: string(id)}
	}
	return account, nil
}

func applyAdjustments(ctx context.Context, st ledger.Store, adjs []ledger.Adjustment) error {
	for _, a := range adjs {
		if err := st.AdjustBalance(ctx, a.AccountID, a.Delta); err != nil {
			return fmt.Errorf("adjust balance of %s: %w", a.AccountID, err)
		}
	}
	return nil
}

func (s *Service) reloadConflict(ctx context.Context, st ledger.Store, orgID ledger.OrgID, id ledger.TransactionID, expected int) error {
	current, err := st.GetTransaction(ctx, orgID, id)
	if err != nil {
		return err
	}
	return versionConflict(current, expected)
}

func versionConflict(current *ledger.Transaction, expected int) error {
	return &ledger.VersionConflictError{
		TransactionID:   current.ID,
		ExpectedVersion: expected,
		CurrentVersion:  current.Version,
		Current:         current,
	}
}

func validateType(t ledger.TxType) error {
	if !t.Valid() {
		return &ledger.FieldError{Field: "type", Reason: "must be income, expense or transfer, got " + string(t)}
	}
	return nil
}

func validateAmount(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return &ledger.FieldError{Field: field, Reason: "must be positive"}
	}
	return nil
}

func dateOrNow(d, now time.Time) time.Time {
	if d.IsZero() {
		return now
	}
	return d.UTC()
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return DefaultActor
	}
	return actor
}

func sameAccountRef(a, b *ledger.AccountID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
