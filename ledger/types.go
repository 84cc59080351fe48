/*
Package ledger provides the core model of the ledger engine.

PURPOSE:

	Everything the engine's services share lives here: identifiers, the
	account / category / transaction / split rows, the closed enums that
	govern balance math and the status lifecycle, the persistence
	interfaces, and the pure balance-impact arithmetic.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account:     A balance holder, mutated only through transaction impacts
  - Category:    A node in an organization's bounded-depth category forest
  - Transaction: An income, expense or transfer, split across categories
  - Split:       A positive portion of a transaction attributed to a category

DESIGN PRINCIPLES:
 1. Precision: All money is decimal.Decimal, never float64
 2. Type Safety: Distinct ID types prevent mixing account/category ids
 3. Closed variants: TxType and Status are enums with explicit tables

SEE ALSO:
  - impact.go: Signed balance impact of a transaction
  - status.go: Status transition table
  - store.go:  Persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// MaxDepth is the deepest level a category may sit at. Roots are depth 0.
const MaxDepth = 3

// MaxBulkStatusBatch bounds the number of ids accepted by a bulk status change.
const MaxBulkStatusBatch = 100

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OrgID string
type AccountID string
type CategoryID string
type VendorID string
type TransactionID string
type SplitID string

// =============================================================================
// ACCOUNT
// =============================================================================

// Account holds a running balance. Balance changes only through the
// transaction service; OpeningBalance is fixed at creation.
type Account struct {
	ID             AccountID
	OrgID          OrgID
	Name           string
	OpeningBalance decimal.Decimal
	Balance        decimal.Decimal
	// TransactionFee is the flat fee charged when a caller opts in.
	TransactionFee *decimal.Decimal
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FlatFee returns the account's flat fee, or zero when it has none.
func (a Account) FlatFee() decimal.Decimal {
	if a.TransactionFee == nil {
		return decimal.Zero
	}
	return *a.TransactionFee
}

// =============================================================================
// VENDOR
// =============================================================================

type Vendor struct {
	ID        VendorID
	OrgID     OrgID
	Name      string
	Active    bool
	CreatedAt time.Time
}

// =============================================================================
// CATEGORY
// =============================================================================

// Category is a node in the organization's category forest.
// Depth and Path are derived from ancestry and never set by clients.
type Category struct {
	ID        CategoryID
	OrgID     OrgID
	Name      string
	ParentID  *CategoryID
	Depth     int
	Path      *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRoot reports whether the category has no parent.
func (c Category) IsRoot() bool { return c.ParentID == nil }

// NameKey is the case-folded form under which sibling category names must be
// unique. Folding is full Unicode, so "Épargne" and "épargne" collide.
func NameKey(name string) string {
	return cases.Fold().String(name)
}

// CategoryFilter narrows a category listing. Zero value lists everything.
type CategoryFilter struct {
	ParentID     *CategoryID
	RootsOnly    bool
	Active       *bool
	NameContains string
	Depth        *int
}

// =============================================================================
// TRANSACTION TYPE
// =============================================================================

// TxType selects which balance-impact formula applies to a transaction.
type TxType string

const (
	TxIncome   TxType = "income"
	TxExpense  TxType = "expense"
	TxTransfer TxType = "transfer"
)

// Valid reports whether t is one of the known transaction types.
func (t TxType) Valid() bool {
	switch t {
	case TxIncome, TxExpense, TxTransfer:
		return true
	}
	return false
}

// ParseTxType converts s into a TxType, rejecting unknown values.
func ParseTxType(s string) (TxType, error) {
	t := TxType(s)
	if !t.Valid() {
		return "", &FieldError{Field: "type", Reason: "must be income, expense or transfer, got " + s}
	}
	return t, nil
}

// =============================================================================
// TRANSACTION
// =============================================================================

// Transaction is a single ledger row. Amount is always positive; the sign of
// its balance impact comes from Type.
type Transaction struct {
	ID                   TransactionID
	OrgID                OrgID
	AccountID            AccountID
	DestinationAccountID *AccountID
	Type                 TxType
	Amount               decimal.Decimal
	Fee                  decimal.Decimal
	Date                 time.Time
	VendorID             *VendorID
	Memo                 string
	Status               Status
	ConfirmedAt          *time.Time
	ReconciledAt         *time.Time
	Version              int
	Splits               []Split
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Values returns the fields that drive balance math.
func (t Transaction) Values() Values {
	return Values{
		Type:        t.Type,
		Amount:      t.Amount,
		Fee:         t.Fee,
		Account:     t.AccountID,
		Destination: t.DestinationAccountID,
	}
}

// Touches reports whether the transaction impacts the given account,
// either as its source or as a transfer destination.
func (t Transaction) Touches(id AccountID) bool {
	if t.AccountID == id {
		return true
	}
	return t.Type == TxTransfer && t.DestinationAccountID != nil && *t.DestinationAccountID == id
}

// Split attributes part of a transaction to a category.
type Split struct {
	ID            SplitID
	TransactionID TransactionID
	CategoryID    CategoryID
	Amount        decimal.Decimal
}

// TransactionFilter narrows a transaction listing. Zero value lists everything
// in the organization, newest first.
type TransactionFilter struct {
	// AccountID matches either the source or the transfer destination.
	AccountID      *AccountID
	DateFrom       *time.Time
	DateTo         *time.Time
	Type           *TxType
	VendorID       *VendorID
	CategoryName   string
	Status         *Status
	ClearedFrom    *time.Time
	ClearedTo      *time.Time
	ReconciledFrom *time.Time
	ReconciledTo   *time.Time
	Limit          int
	Offset         int
}

// =============================================================================
// AUDIT ROWS
// =============================================================================

// StatusHistoryEntry records one status transition. Append-only.
type StatusHistoryEntry struct {
	ID            string
	TransactionID TransactionID
	// FromStatus is nil for the entry written at creation.
	FromStatus *Status
	ToStatus   Status
	Actor      string
	Notes      string
	CreatedAt  time.Time
}

// EditKind classifies an edit history entry.
type EditKind string

const (
	EditCreate  EditKind = "create"
	EditUpdate  EditKind = "update"
	EditDelete  EditKind = "delete"
	EditRestore EditKind = "restore"
)

// FieldChange is one field-level difference between two transaction states.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// EditHistoryEntry records one edit of a transaction. Append-only.
type EditHistoryEntry struct {
	ID            string
	TransactionID TransactionID
	OrgID         OrgID
	Actor         string
	Kind          EditKind
	Changes       []FieldChange
	// Snapshot holds the full previous state for delete and restore entries.
	Snapshot  *Transaction
	CreatedAt time.Time
}
