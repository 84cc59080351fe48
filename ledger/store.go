/*
store.go - Persistence interface for accounts, categories and transactions

PURPOSE:

	Defines the interface between the engine's services and the database.
	Services never hold private ledger state; every read-then-write runs
	inside TxStore.WithTx so partial application is never observable.

KEY INTERFACES:

	AccountStore:     Accounts and vendors, balance increments
	CategoryStore:    Category rows and child lookups
	TransactionStore: Transactions with their splits
	AuditStore:       Append-only status and edit history
	Store:            All of the above
	TxStore:          Store plus atomic multi-statement transactions

NOT-FOUND CONTRACT:

	Get* methods return the matching ledger.Err*NotFound sentinel when the
	row is missing or belongs to another organization.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:  SQLite via database/sql
  - ledger/store/memory.go:  In-memory for testing

SEE ALSO:
  - transactions/service.go: Main consumer
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Interfaces for persistence
// =============================================================================

type AccountStore interface {
	GetAccount(ctx context.Context, orgID OrgID, id AccountID) (*Account, error)
	ListAccounts(ctx context.Context, orgID OrgID) ([]Account, error)
	// InsertAccount returns ErrAlreadyExists if the id is taken.
	InsertAccount(ctx context.Context, a Account) error
	// AdjustBalance adds delta to the account's stored balance.
	AdjustBalance(ctx context.Context, id AccountID, delta decimal.Decimal) error
	SetAccountActive(ctx context.Context, orgID OrgID, id AccountID, active bool) error

	GetVendor(ctx context.Context, orgID OrgID, id VendorID) (*Vendor, error)
	ListVendors(ctx context.Context, orgID OrgID) ([]Vendor, error)
	InsertVendor(ctx context.Context, v Vendor) error
}

type CategoryStore interface {
	GetCategory(ctx context.Context, orgID OrgID, id CategoryID) (*Category, error)
	// FindCategoryByName matches by NameKey among the children of
	// parentID (roots when nil). Returns nil, nil when nothing matches.
	FindCategoryByName(ctx context.Context, orgID OrgID, parentID *CategoryID, name string) (*Category, error)
	ListCategories(ctx context.Context, orgID OrgID, filter CategoryFilter) ([]Category, error)
	ChildCategories(ctx context.Context, orgID OrgID, parentID CategoryID) ([]Category, error)
	InsertCategory(ctx context.Context, c Category) error
	// UpdateCategory overwrites name, parent, depth, path and active flag.
	UpdateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, orgID OrgID, id CategoryID) error
	CountSplitsByCategory(ctx context.Context, id CategoryID) (int, error)
}

type TransactionStore interface {
	// GetTransaction returns the row with its splits.
	GetTransaction(ctx context.Context, orgID OrgID, id TransactionID) (*Transaction, error)
	ListTransactions(ctx context.Context, orgID OrgID, filter TransactionFilter) ([]Transaction, error)
	InsertTransaction(ctx context.Context, tx Transaction) error
	// UpdateTransaction writes every editable field and the new version,
	// only if the stored version still equals expectedVersion. Returns
	// ErrVersionConflict otherwise.
	UpdateTransaction(ctx context.Context, tx Transaction, expectedVersion int) error
	// UpdateStatus moves the row from one status to another, only if it is
	// still in from. Returns ErrStatusConflict otherwise.
	UpdateStatus(ctx context.Context, tx Transaction, from Status) error
	ReplaceSplits(ctx context.Context, id TransactionID, splits []Split) error
	// DeleteTransaction removes the row and its splits.
	DeleteTransaction(ctx context.Context, orgID OrgID, id TransactionID) error
}

type AuditStore interface {
	AppendStatusHistory(ctx context.Context, e StatusHistoryEntry) error
	// StatusHistory returns entries oldest first.
	StatusHistory(ctx context.Context, id TransactionID) ([]StatusHistoryEntry, error)

	AppendEdit(ctx context.Context, e EditHistoryEntry) error
	// EditHistory returns entries newest first.
	EditHistory(ctx context.Context, orgID OrgID, id TransactionID, limit, offset int) ([]EditHistoryEntry, error)
	CountEdits(ctx context.Context, orgID OrgID, id TransactionID) (int, error)
}

// Store handles persistence of every ledger row.
type Store interface {
	AccountStore
	CategoryStore
	TransactionStore
	AuditStore
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
