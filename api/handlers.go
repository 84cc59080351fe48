/*
handlers.go - HTTP API handlers for the ledger engine

PURPOSE:

	Exposes the ledger services via REST API. Handles HTTP request/response,
	JSON serialization, and delegates to the domain services.

ENDPOINTS (all under /api/orgs/{orgID}):

	Accounts:
	  GET    /accounts                      List accounts
	  POST   /accounts                      Open account
	  GET    /accounts/{id}                 Get account
	  GET    /accounts/{id}/summary         Per-status counts and nets
	  POST   /accounts/{id}/reconcile       Reconcile against a statement
	  GET    /accounts/{id}/verify          Stored vs recomputed balance

	Categories:
	  GET    /categories                    List (filters as query params)
	  POST   /categories                    Create
	  GET    /categories/tree               Cached forest
	  PUT    /categories/{id}               Rename / reparent / (de)activate
	  POST   /categories/{id}/move          Reparent
	  DELETE /categories/{id}               Delete (?move_children_to= | ?move_children_to_root=true)

	Transactions:
	  GET    /transactions                  List (filters as query params)
	  POST   /transactions                  Create
	  GET    /transactions/{id}             Get
	  PUT    /transactions/{id}             Update (optional "version")
	  DELETE /transactions/{id}             Delete (?version=)
	  POST   /transactions/{id}/restore     Restore a deleted transaction
	  POST   /transactions/{id}/status      Change status
	  POST   /transactions/status/bulk      Bulk change status
	  GET    /transactions/{id}/status-history
	  GET    /transactions/{id}/edits       Paginated edits, newest first
	  GET    /transactions/{id}/edits/latest
	  GET    /transactions/{id}/edits/count

ACTOR:

	The X-Actor header names the caller in audit rows. Absent, the services
	record "system".

ERROR HANDLING:

	Errors are returned as JSON with appropriate HTTP status:
	- 400: Validation errors, invalid input
	- 404: Referenced row not found
	- 409: Conflict (stale version, reconciled row, duplicate name, ...)
	- 207: Bulk status change with at least one failure
	- 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/ledger-engine/audit"
	"github.com/warp/ledger-engine/categories"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/logger"
	"github.com/warp/ledger-engine/status"
	"github.com/warp/ledger-engine/transactions"
)

// ActorHeader names the caller recorded in audit rows.
const ActorHeader = "X-Actor"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Categories   *categories.Service
	Transactions *transactions.Service
	Status       *status.Service
	Audit        *audit.Service
}

// NewHandler wires every service to the given store. cache backs the
// category tree; pass categories.NopCache{} to disable caching.
func NewHandler(store ledger.TxStore, cache categories.TreeCache, log zerolog.Logger) *Handler {
	cats := categories.NewService(store,
		categories.WithCache(cache),
		categories.WithLogger(log.With().Str("component", "categories").Logger()),
	)
	return &Handler{
		Categories: cats,
		Transactions: transactions.NewService(store, cats,
			transactions.WithLogger(log.With().Str("component", "transactions").Logger()),
		),
		Status: status.NewService(store,
			status.WithLogger(log.With().Str("component", "status").Logger()),
		),
		Audit: audit.NewService(store),
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns every account of the organization.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Transactions.ListAccounts(r.Context(), orgID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount opens an account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.Transactions.CreateAccount(r.Context(), orgID(r), transactions.AccountInput{
		Name:           req.Name,
		OpeningBalance: req.OpeningBalance,
		TransactionFee: req.TransactionFee,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(*a))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := h.Transactions.GetAccount(r.Context(), orgID(r), ledger.AccountID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*a))
}

// GetSummary groups the account's transactions by status.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Status.Summary(r.Context(), orgID(r), ledger.AccountID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(s))
}

// Reconcile moves confirmed transactions to reconciled against a statement.
// A nonzero difference is reported, not rejected.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate("statement_date", req.StatementDate)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := h.Status.Reconcile(r.Context(), orgID(r), ledger.AccountID(chi.URLParam(r, "id")), status.ReconcileInput{
		StatementBalance: req.StatementBalance,
		StatementDate:    date,
		TransactionIDs:   transactionIDs(req.TransactionIDs),
		Actor:            actor(r),
		Notes:            req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconcileResponse(result))
}

// VerifyAccount recomputes the balance from the ledger.
func (h *Handler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	check, err := h.Transactions.VerifyBalance(r.Context(), orgID(r), ledger.AccountID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceCheckDTO(*check))
}

// =============================================================================
// VENDOR HANDLERS
// =============================================================================

func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.Transactions.ListVendors(r.Context(), orgID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]VendorDTO, len(vendors))
	for i, v := range vendors {
		dtos[i] = toVendorDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var req CreateVendorRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.Transactions.CreateVendor(r.Context(), orgID(r), req.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVendorDTO(*v))
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

// ListCategories returns categories ordered by depth then name.
// Query: parent_id, roots_only, active, depth, name.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.CategoryFilter{NameContains: q.Get("name")}
	if v := q.Get("parent_id"); v != "" {
		id := ledger.CategoryID(v)
		filter.ParentID = &id
	}
	var err error
	if filter.RootsOnly, err = queryBool(q.Get("roots_only"), "roots_only"); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if v := q.Get("active"); v != "" {
		active, err := queryBool(v, "active")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		filter.Active = &active
	}
	if v := q.Get("depth"); v != "" {
		depth, err := queryInt(v, "depth")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		filter.Depth = &depth
	}

	cats, err := h.Categories.List(r.Context(), orgID(r), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]CategoryDTO, len(cats))
	for i, c := range cats {
		dtos[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Categories.Create(r.Context(), orgID(r), req.Name, categoryID(req.ParentID))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(*c))
}

// GetCategoryTree returns the organization's forest.
func (h *Handler) GetCategoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.Categories.GetTree(r.Context(), orgID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryNodeDTOs(tree))
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req UpdateCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Categories.Update(r.Context(), orgID(r), ledger.CategoryID(chi.URLParam(r, "id")), categories.UpdateInput{
		Name:       req.Name,
		ParentID:   categoryID(req.ParentID),
		MoveToRoot: req.MoveToRoot,
		Active:     req.Active,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(*c))
}

func (h *Handler) MoveCategory(w http.ResponseWriter, r *http.Request) {
	var req MoveCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Categories.Move(r.Context(), orgID(r), ledger.CategoryID(chi.URLParam(r, "id")), categoryID(req.ParentID))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(*c))
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	toRoot, err := queryBool(q.Get("move_children_to_root"), "move_children_to_root")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	opts := categories.DeleteOptions{MoveChildrenToRoot: toRoot}
	if v := q.Get("move_children_to"); v != "" {
		opts.MoveChildrenTo = categoryID(&v)
	}

	if err := h.Categories.Delete(r.Context(), orgID(r), ledger.CategoryID(chi.URLParam(r, "id")), opts); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns transactions newest first.
// Query: account_id, date_from, date_to, type, vendor_id, category, status,
// cleared_from, cleared_to, reconciled_from, reconciled_to, limit, offset.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	txs, err := h.Transactions.List(r.Context(), orgID(r), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	typ, err := ledger.ParseTxType(req.Type)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	tx, err := h.Transactions.Create(r.Context(), orgID(r), ledger.AccountID(req.AccountID), transactions.CreateInput{
		Type:                 typ,
		Amount:               req.Amount,
		ApplyFee:             req.ApplyFee,
		DestinationAccountID: accountID(req.DestinationAccountID),
		Date:                 date,
		VendorID:             vendorID(req.VendorID),
		Memo:                 req.Memo,
		Splits:               splitInputs(req.Splits),
		Actor:                actor(r),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Transactions.Get(r.Context(), orgID(r), transactionID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req UpdateTransactionRequest
	if !decode(w, r, &req) {
		return
	}

	in := transactions.UpdateInput{
		ExpectedVersion:      req.Version,
		Amount:               req.Amount,
		ApplyFee:             req.ApplyFee,
		DestinationAccountID: accountID(req.DestinationAccountID),
		VendorID:             vendorID(req.VendorID),
		ClearVendor:          req.ClearVendor,
		Memo:                 req.Memo,
		Actor:                actor(r),
	}
	if req.Type != nil {
		typ, err := ledger.ParseTxType(*req.Type)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		in.Type = &typ
	}
	if req.Date != nil {
		date, err := parseDate("date", *req.Date)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		in.Date = &date
	}
	if req.Splits != nil {
		splits := splitInputs(*req.Splits)
		in.Splits = &splits
	}

	tx, err := h.Transactions.Update(r.Context(), orgID(r), transactionID(r), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

// DeleteTransaction reverses the transaction's impact and removes it.
// ?version= enables the optimistic check.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	in := transactions.DeleteInput{Actor: actor(r)}
	if v := r.URL.Query().Get("version"); v != "" {
		version, err := queryInt(v, "version")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		in.ExpectedVersion = &version
	}

	if err := h.Transactions.Delete(r.Context(), orgID(r), transactionID(r), in); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreTransaction re-creates a deleted transaction from its snapshot.
func (h *Handler) RestoreTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Transactions.Restore(r.Context(), orgID(r), transactionID(r), actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

// =============================================================================
// STATUS HANDLERS
// =============================================================================

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req ChangeStatusRequest
	if !decode(w, r, &req) {
		return
	}
	to, err := ledger.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	tx, err := h.Status.ChangeStatus(r.Context(), orgID(r), transactionID(r), to, actor(r), req.Notes)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

// BulkChangeStatus answers 200 when every id moved and 207 otherwise.
func (h *Handler) BulkChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if !decode(w, r, &req) {
		return
	}
	to, err := ledger.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := h.Status.BulkChangeStatus(r.Context(), orgID(r), transactionIDs(req.TransactionIDs), to, actor(r), req.Notes)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	code := http.StatusOK
	if !result.AllSucceeded() {
		code = http.StatusMultiStatus
	}
	writeJSON(w, code, toBulkStatusResponse(result))
}

func (h *Handler) StatusHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Status.History(r.Context(), orgID(r), transactionID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]StatusHistoryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toStatusHistoryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// EditHistory returns one page of edits, newest first. Query: limit, offset.
func (h *Handler) EditHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := 0, 0
	var err error
	if v := q.Get("limit"); v != "" {
		if limit, err = queryInt(v, "limit"); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = queryInt(v, "offset"); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}

	page, err := h.Audit.History(r.Context(), orgID(r), transactionID(r), limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	entries := make([]EditDTO, len(page.Entries))
	for i, e := range page.Entries {
		entries[i] = toEditDTO(e)
	}
	writeJSON(w, http.StatusOK, EditPageDTO{Entries: entries, Total: page.Total, Limit: page.Limit, Offset: page.Offset})
}

func (h *Handler) LatestEdit(w http.ResponseWriter, r *http.Request) {
	e, err := h.Audit.Latest(r.Context(), orgID(r), transactionID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEditDTO(*e))
}

func (h *Handler) EditCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Audit.Count(r.Context(), orgID(r), transactionID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

func orgID(r *http.Request) ledger.OrgID {
	return ledger.OrgID(chi.URLParam(r, "orgID"))
}

func transactionID(r *http.Request) ledger.TransactionID {
	return ledger.TransactionID(chi.URLParam(r, "id"))
}

func actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// parseDate accepts "YYYY-MM-DD" or RFC 3339. Empty yields the zero time.
func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &ledger.FieldError{Field: field, Reason: "must be YYYY-MM-DD or RFC 3339, got " + s}
	}
	return t.UTC(), nil
}

func parseDatePtr(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(field, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryInt(s, field string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ledger.FieldError{Field: field, Reason: "must be an integer, got " + s}
	}
	return n, nil
}

func queryBool(s, field string) (bool, error) {
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, &ledger.FieldError{Field: field, Reason: "must be true or false, got " + s}
	}
	return b, nil
}

func parseTransactionFilter(r *http.Request) (ledger.TransactionFilter, error) {
	q := r.URL.Query()
	f := ledger.TransactionFilter{CategoryName: q.Get("category")}

	if v := q.Get("account_id"); v != "" {
		f.AccountID = accountID(&v)
	}
	if v := q.Get("vendor_id"); v != "" {
		f.VendorID = vendorID(&v)
	}
	if v := q.Get("type"); v != "" {
		typ, err := ledger.ParseTxType(v)
		if err != nil {
			return f, err
		}
		f.Type = &typ
	}
	if v := q.Get("status"); v != "" {
		st, err := ledger.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}

	dates := []struct {
		param string
		dst   **time.Time
	}{
		{"date_from", &f.DateFrom},
		{"date_to", &f.DateTo},
		{"cleared_from", &f.ClearedFrom},
		{"cleared_to", &f.ClearedTo},
		{"reconciled_from", &f.ReconciledFrom},
		{"reconciled_to", &f.ReconciledTo},
	}
	for _, d := range dates {
		t, err := parseDatePtr(d.param, q.Get(d.param))
		if err != nil {
			return f, err
		}
		*d.dst = t
	}

	var err error
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = queryInt(v, "limit"); err != nil {
			return f, err
		}
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = queryInt(v, "offset"); err != nil {
			return f, err
		}
	}
	return f, nil
}

func accountID(s *string) *ledger.AccountID {
	if s == nil || *s == "" {
		return nil
	}
	id := ledger.AccountID(*s)
	return &id
}

func vendorID(s *string) *ledger.VendorID {
	if s == nil || *s == "" {
		return nil
	}
	id := ledger.VendorID(*s)
	return &id
}

func categoryID(s *string) *ledger.CategoryID {
	if s == nil || *s == "" {
		return nil
	}
	id := ledger.CategoryID(*s)
	return &id
}

func transactionIDs(ids []string) []ledger.TransactionID {
	out := make([]ledger.TransactionID, len(ids))
	for i, id := range ids {
		out[i] = ledger.TransactionID(id)
	}
	return out
}

func splitInputs(reqs []SplitRequest) []transactions.SplitInput {
	out := make([]transactions.SplitInput, len(reqs))
	for i, s := range reqs {
		out[i] = transactions.SplitInput{
			CategoryID:   categoryID(s.CategoryID),
			CategoryName: s.CategoryName,
			Amount:       s.Amount,
		}
	}
	return out
}

// =============================================================================
// RESPONSES
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the ledger error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var vc *ledger.VersionConflictError
	switch {
	case errors.As(err, &vc):
		resp := ConflictResponse{
			Error:          "Version conflict",
			Details:        err.Error(),
			CurrentVersion: vc.CurrentVersion,
		}
		if vc.Current != nil {
			resp.Current = toTransactionDTO(*vc.Current)
		}
		writeJSON(w, http.StatusConflict, resp)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", fmt.Errorf("internal error"))
	}
}
