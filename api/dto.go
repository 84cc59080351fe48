/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:

	Defines the JSON structures for API communication. These types decouple
	the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY & DATES:

	Amounts are decimal strings ("100.25"); numbers are accepted on input.
	Transaction dates are "YYYY-MM-DD" or RFC 3339; timestamps are RFC 3339.

VALIDATION:

	Validation is done by the services, not in DTOs. DTOs are pure data
	carriers; handlers only parse enums, ids and dates.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/categories"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/status"
	"github.com/warp/ledger-engine/transactions"
)

// =============================================================================
// ACCOUNTS & VENDORS
// =============================================================================

type AccountDTO struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	Balance        decimal.Decimal  `json:"balance"`
	TransactionFee *decimal.Decimal `json:"transaction_fee,omitempty"`
	Active         bool             `json:"active"`
	CreatedAt      string           `json:"created_at"`
}

type CreateAccountRequest struct {
	Name           string           `json:"name"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	TransactionFee *decimal.Decimal `json:"transaction_fee"`
}

type VendorDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type CreateVendorRequest struct {
	Name string `json:"name"`
}

// BalanceCheckDTO reports stored versus recomputed balance.
type BalanceCheckDTO struct {
	AccountID    string          `json:"account_id"`
	Stored       decimal.Decimal `json:"stored"`
	Expected     decimal.Decimal `json:"expected"`
	Drift        decimal.Decimal `json:"drift"`
	Consistent   bool            `json:"consistent"`
	Transactions int             `json:"transactions"`
}

// =============================================================================
// CATEGORIES
// =============================================================================

type CategoryDTO struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
	Depth    int     `json:"depth"`
	Path     *string `json:"path,omitempty"`
	Active   bool    `json:"active"`
}

// CategoryNodeDTO is one node of the category tree.
type CategoryNodeDTO struct {
	CategoryDTO
	Children []CategoryNodeDTO `json:"children"`
}

type CreateCategoryRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

type UpdateCategoryRequest struct {
	Name       *string `json:"name"`
	ParentID   *string `json:"parent_id"`
	MoveToRoot bool    `json:"move_to_root"`
	Active     *bool   `json:"active"`
}

// MoveCategoryRequest moves a category. A null parent_id moves it to the root.
type MoveCategoryRequest struct {
	ParentID *string `json:"parent_id"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type SplitDTO struct {
	ID         string          `json:"id"`
	CategoryID string          `json:"category_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type TransactionDTO struct {
	ID                   string          `json:"id"`
	AccountID            string          `json:"account_id"`
	DestinationAccountID *string         `json:"destination_account_id,omitempty"`
	Type                 string          `json:"type"`
	Amount               decimal.Decimal `json:"amount"`
	Fee                  decimal.Decimal `json:"fee"`
	Date                 string          `json:"date"`
	VendorID             *string         `json:"vendor_id,omitempty"`
	Memo                 string          `json:"memo"`
	Status               string          `json:"status"`
	ConfirmedAt          *string         `json:"confirmed_at,omitempty"`
	ReconciledAt         *string         `json:"reconciled_at,omitempty"`
	Version              int             `json:"version"`
	Splits               []SplitDTO      `json:"splits"`
	CreatedAt            string          `json:"created_at"`
	UpdatedAt            string          `json:"updated_at"`
}

// SplitRequest names a category by id, or by name to find-or-create at root.
type SplitRequest struct {
	CategoryID   *string         `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Amount       decimal.Decimal `json:"amount"`
}

type CreateTransactionRequest struct {
	AccountID            string          `json:"account_id"`
	Type                 string          `json:"type"`
	Amount               decimal.Decimal `json:"amount"`
	ApplyFee             bool            `json:"apply_fee"`
	DestinationAccountID *string         `json:"destination_account_id"`
	Date                 string          `json:"date"`
	VendorID             *string         `json:"vendor_id"`
	Memo                 string          `json:"memo"`
	Splits               []SplitRequest  `json:"splits"`
}

// UpdateTransactionRequest carries only the fields to change.
type UpdateTransactionRequest struct {
	Version              *int             `json:"version"`
	Type                 *string          `json:"type"`
	Amount               *decimal.Decimal `json:"amount"`
	ApplyFee             *bool            `json:"apply_fee"`
	DestinationAccountID *string          `json:"destination_account_id"`
	Date                 *string          `json:"date"`
	VendorID             *string          `json:"vendor_id"`
	ClearVendor          bool             `json:"clear_vendor"`
	Memo                 *string          `json:"memo"`
	Splits               *[]SplitRequest  `json:"splits"`
}

// ConflictResponse is returned with 409 on a stale version.
type ConflictResponse struct {
	Error          string         `json:"error"`
	Details        string         `json:"details"`
	CurrentVersion int            `json:"current_version"`
	Current        TransactionDTO `json:"current"`
}

// =============================================================================
// STATUS
// =============================================================================

type ChangeStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type BulkStatusRequest struct {
	TransactionIDs []string `json:"transaction_ids"`
	Status         string   `json:"status"`
	Notes          string   `json:"notes"`
}

type BulkFailureDTO struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type BulkStatusResponse struct {
	Succeeded []string         `json:"succeeded"`
	Failed    []BulkFailureDTO `json:"failed"`
}

type StatusHistoryDTO struct {
	ID         string  `json:"id"`
	FromStatus *string `json:"from_status"`
	ToStatus   string  `json:"to_status"`
	Actor      string  `json:"actor"`
	Notes      string  `json:"notes,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

type ReconcileRequest struct {
	StatementBalance decimal.Decimal `json:"statement_balance"`
	StatementDate    string          `json:"statement_date"`
	TransactionIDs   []string        `json:"transaction_ids"`
	Notes            string          `json:"notes"`
}

type ReconcileResponse struct {
	AccountID        string          `json:"account_id"`
	ReconciledCount  int             `json:"reconciled_count"`
	ClearedBalance   decimal.Decimal `json:"cleared_balance"`
	StatementBalance decimal.Decimal `json:"statement_balance"`
	Difference       decimal.Decimal `json:"difference"`
	StatementDate    string          `json:"statement_date"`
}

type StatusTotalDTO struct {
	Status string          `json:"status"`
	Count  int             `json:"count"`
	Net    decimal.Decimal `json:"net"`
}

type SummaryDTO struct {
	AccountID string           `json:"account_id"`
	Balance   decimal.Decimal  `json:"balance"`
	Statuses  []StatusTotalDTO `json:"statuses"`
}

// =============================================================================
// AUDIT
// =============================================================================

type EditDTO struct {
	ID        string               `json:"id"`
	Actor     string               `json:"actor"`
	Kind      string               `json:"kind"`
	Changes   []ledger.FieldChange `json:"changes"`
	Snapshot  *TransactionDTO      `json:"snapshot,omitempty"`
	CreatedAt string               `json:"created_at"`
}

type EditPageDTO struct {
	Entries []EditDTO `json:"entries"`
	Total   int       `json:"total"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
}

type CountResponse struct {
	Count int `json:"count"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest loads a scenario into org_id, or a fresh organization.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	OrgID      string `json:"org_id"`
}

type LoadScenarioResponse struct {
	ScenarioID string            `json:"scenario_id"`
	OrgID      string            `json:"org_id"`
	Refs       map[string]string `json:"refs"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimestampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTimestamp(*t)
	return &s
}

func idPtr[T ~string](id *T) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:             string(a.ID),
		Name:           a.Name,
		OpeningBalance: a.OpeningBalance,
		Balance:        a.Balance,
		TransactionFee: a.TransactionFee,
		Active:         a.Active,
		CreatedAt:      formatTimestamp(a.CreatedAt),
	}
}

func toVendorDTO(v ledger.Vendor) VendorDTO {
	return VendorDTO{ID: string(v.ID), Name: v.Name, Active: v.Active}
}

func toBalanceCheckDTO(c transactions.BalanceCheck) BalanceCheckDTO {
	return BalanceCheckDTO{
		AccountID:    string(c.AccountID),
		Stored:       c.Stored,
		Expected:     c.Expected,
		Drift:        c.Drift,
		Consistent:   c.Consistent(),
		Transactions: c.Transactions,
	}
}

func toCategoryDTO(c ledger.Category) CategoryDTO {
	return CategoryDTO{
		ID:       string(c.ID),
		Name:     c.Name,
		ParentID: idPtr(c.ParentID),
		Depth:    c.Depth,
		Path:     c.Path,
		Active:   c.Active,
	}
}

func toCategoryNodeDTOs(nodes []*categories.TreeNode) []CategoryNodeDTO {
	out := make([]CategoryNodeDTO, len(nodes))
	for i, n := range nodes {
		out[i] = CategoryNodeDTO{
			CategoryDTO: toCategoryDTO(n.Category),
			Children:    toCategoryNodeDTOs(n.Children),
		}
	}
	return out
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	splits := make([]SplitDTO, len(tx.Splits))
	for i, s := range tx.Splits {
		splits[i] = SplitDTO{ID: string(s.ID), CategoryID: string(s.CategoryID), Amount: s.Amount}
	}
	return TransactionDTO{
		ID:                   string(tx.ID),
		AccountID:            string(tx.AccountID),
		DestinationAccountID: idPtr(tx.DestinationAccountID),
		Type:                 string(tx.Type),
		Amount:               tx.Amount,
		Fee:                  tx.Fee,
		Date:                 tx.Date.UTC().Format(time.DateOnly),
		VendorID:             idPtr(tx.VendorID),
		Memo:                 tx.Memo,
		Status:               string(tx.Status),
		ConfirmedAt:          formatTimestampPtr(tx.ConfirmedAt),
		ReconciledAt:         formatTimestampPtr(tx.ReconciledAt),
		Version:              tx.Version,
		Splits:               splits,
		CreatedAt:            formatTimestamp(tx.CreatedAt),
		UpdatedAt:            formatTimestamp(tx.UpdatedAt),
	}
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionDTO(tx)
	}
	return out
}

func toStatusHistoryDTO(e ledger.StatusHistoryEntry) StatusHistoryDTO {
	return StatusHistoryDTO{
		ID:         e.ID,
		FromStatus: idPtr(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		Actor:      e.Actor,
		Notes:      e.Notes,
		CreatedAt:  formatTimestamp(e.CreatedAt),
	}
}

func toEditDTO(e ledger.EditHistoryEntry) EditDTO {
	changes := e.Changes
	if changes == nil {
		changes = []ledger.FieldChange{}
	}
	dto := EditDTO{
		ID:        e.ID,
		Actor:     e.Actor,
		Kind:      string(e.Kind),
		Changes:   changes,
		CreatedAt: formatTimestamp(e.CreatedAt),
	}
	if e.Snapshot != nil {
		snap := toTransactionDTO(*e.Snapshot)
		dto.Snapshot = &snap
	}
	return dto
}

func toBulkStatusResponse(r *status.BulkResult) BulkStatusResponse {
	resp := BulkStatusResponse{
		Succeeded: make([]string, len(r.Succeeded)),
		Failed:    make([]BulkFailureDTO, len(r.Failed)),
	}
	for i, id := range r.Succeeded {
		resp.Succeeded[i] = string(id)
	}
	for i, f := range r.Failed {
		resp.Failed[i] = BulkFailureDTO{ID: string(f.ID), Error: f.Err.Error()}
	}
	return resp
}

func toSummaryDTO(s *status.Summary) SummaryDTO {
	totals := make([]StatusTotalDTO, len(s.Totals))
	for i, t := range s.Totals {
		totals[i] = StatusTotalDTO{Status: string(t.Status), Count: t.Count, Net: t.Net}
	}
	return SummaryDTO{AccountID: string(s.AccountID), Balance: s.Balance, Statuses: totals}
}

func toReconcileResponse(r *status.ReconcileResult) ReconcileResponse {
	return ReconcileResponse{
		AccountID:        string(r.AccountID),
		ReconciledCount:  r.ReconciledCount,
		ClearedBalance:   r.ClearedBalance,
		StatementBalance: r.StatementBalance,
		Difference:       r.Difference,
		StatementDate:    r.StatementDate.Format(time.DateOnly),
	}
}
