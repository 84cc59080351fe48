// Package store provides an in-memory ledger.TxStore.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every row in maps guarded by one mutex. WithTx is simulated
// with a snapshot of the whole state and a restore on error.
type Memory struct {
	mu sync.Mutex
	st *state
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

var _ ledger.TxStore = (*Memory)(nil)

// WithTx executes fn within a transaction.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	committed := false
	defer func() {
		if !committed {
			m.st = snapshot
		}
	}()

	if err := fn(m.st); err != nil {
		return err
	}
	committed = true
	return nil
}

func locked[T any](m *Memory, fn func(*state) (T, error)) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.st)
}

func lockedExec(m *Memory, fn func(*state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.st)
}

func (m *Memory) GetAccount(ctx context.Context, orgID ledger.OrgID, id ledger.AccountID) (*ledger.Account, error) {
	return locked(m, func(s *state) (*ledger.Account, error) { return s.GetAccount(ctx, orgID, id) })
}

func (m *Memory) ListAccounts(ctx context.Context, orgID ledger.OrgID) ([]ledger.Account, error) {
	return locked(m, func(s *state) ([]ledger.Account, error) { return s.ListAccounts(ctx, orgID) })
}

func (m *Memory) InsertAccount(ctx context.Context, a ledger.Account) error {
	return lockedExec(m, func(s *state) error { return s.InsertAccount(ctx, a) })
}

func (m *Memory) AdjustBalance(ctx context.Context, id ledger.AccountID, delta decimal.Decimal) error {
	return lockedExec(m, func(s *state) error { return s.AdjustBalance(ctx, id, delta) })
}

func (m *Memory) SetAccountActive(ctx context.Context, orgID ledger.OrgID, id ledger.AccountID, active bool) error {
	return lockedExec(m, func(s *state) error { return s.SetAccountActive(ctx, orgID, id, active) })
}

func (m *Memory) GetVendor(ctx context.Context, orgID ledger.OrgID, id ledger.VendorID) (*ledger.Vendor, error) {
	return locked(m, func(s *state) (*ledger.Vendor, error) { return s.GetVendor(ctx, orgID, id) })
}

func (m *Memory) ListVendors(ctx context.Context, orgID ledger.OrgID) ([]ledger.Vendor, error) {
	return locked(m, func(s *state) ([]ledger.Vendor, error) { return s.ListVendors(ctx, orgID) })
}

func (m *Memory) InsertVendor(ctx context.Context, v ledger.Vendor) error {
	return lockedExec(m, func(s *state) error { return s.InsertVendor(ctx, v) })
}

func (m *Memory) GetCategory(ctx context.Context, orgID ledger.OrgID, id ledger.CategoryID) (*ledger.Category, error) {
	return locked(m, func(s *state) (*ledger.Category, error) { return s.GetCategory(ctx, orgID, id) })
}

func (m *Memory) FindCategoryByName(ctx context.Context, orgID ledger.OrgID, parentID *ledger.CategoryID, name string) (*ledger.Category, error) {
	return locked(m, func(s *state) (*ledger.Category, error) { return s.FindCategoryByName(ctx, orgID, parentID, name) })
}

func (m *Memory) ListCategories(ctx context.Context, orgID ledger.OrgID, filter ledger.CategoryFilter) ([]ledger.Category, error) {
	return locked(m, func(s *state) ([]ledger.Category, error) { return s.ListCategories(ctx, orgID, filter) })
}

func (m *Memory) ChildCategories(ctx context.Context, orgID ledger.OrgID, parentID ledger.CategoryID) ([]ledger.Category, error) {
	return locked(m, func(s *state) ([]ledger.Category, error) { return s.ChildCategories(ctx, orgID, parentID) })
}

func (m *Memory) InsertCategory(ctx context.Context, c ledger.Category) error {
	return lockedExec(m, func(s *state) error { return s.InsertCategory(ctx, c) })
}

func (m *Memory) UpdateCategory(ctx context.Context, c ledger.Category) error {
	return lockedExec(m, func(s *state) error { return s.UpdateCategory(ctx, c) })
}

func (m *Memory) DeleteCategory(ctx context.Context, orgID ledger.OrgID, id ledger.CategoryID) error {
	return lockedExec(m, func(s *state) error { return s.DeleteCategory(ctx, orgID, id) })
}

func (m *Memory) CountSplitsByCategory(ctx context.Context, id ledger.CategoryID) (int, error) {
	return locked(m, func(s *state) (int, error) { return s.CountSplitsByCategory(ctx, id) })
}

func (m *Memory) GetTransaction(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID) (*ledger.Transaction, error) {
	return locked(m, func(s *state) (*ledger.Transaction, error) { return s.GetTransaction(ctx, orgID, id) })
}

func (m *Memory) ListTransactions(ctx context.Context, orgID ledger.OrgID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	return locked(m, func(s *state) ([]ledger.Transaction, error) { return s.ListTransactions(ctx, orgID, filter) })
}

func (m *Memory) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	return lockedExec(m, func(s *state) error { return s.InsertTransaction(ctx, tx) })
}

func (m *Memory) UpdateTransaction(ctx context.Context, tx ledger.Transaction, expectedVersion int) error {
	return lockedExec(m, func(s *state) error { return s.UpdateTransaction(ctx, tx, expectedVersion) })
}

func (m *Memory) UpdateStatus(ctx context.Context, tx ledger.Transaction, from ledger.Status) error {
	return lockedExec(m, func(s *state) error { return s.UpdateStatus(ctx, tx, from) })
}

func (m *Memory) ReplaceSplits(ctx context.Context, id ledger.TransactionID, splits []ledger.Split) error {
	return lockedExec(m, func(s *state) error { return s.ReplaceSplits(ctx, id, splits) })
}

func (m *Memory) DeleteTransaction(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID) error {
	return lockedExec(m, func(s *state) error { return s.DeleteTransaction(ctx, orgID, id) })
}

func (m *Memory) AppendStatusHistory(ctx context.Context, e ledger.StatusHistoryEntry) error {
	return lockedExec(m, func(s *state) error { return s.AppendStatusHistory(ctx, e) })
}

func (m *Memory) StatusHistory(ctx context.Context, id ledger.TransactionID) ([]ledger.StatusHistoryEntry, error) {
	return locked(m, func(s *state) ([]ledger.StatusHistoryEntry, error) { return s.StatusHistory(ctx, id) })
}

func (m *Memory) AppendEdit(ctx context.Context, e ledger.EditHistoryEntry) error {
	return lockedExec(m, func(s *state) error { return s.AppendEdit(ctx, e) })
}

func (m *Memory) EditHistory(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID, limit, offset int) ([]ledger.EditHistoryEntry, error) {
	return locked(m, func(s *state) ([]ledger.EditHistoryEntry, error) { return s.EditHistory(ctx, orgID, id, limit, offset) })
}

func (m *Memory) CountEdits(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID) (int, error) {
	return locked(m, func(s *state) (int, error) { return s.CountEdits(ctx, orgID, id) })
}

// =============================================================================
// STATE - Unlocked rows, also the Store handed to WithTx callbacks
// =============================================================================

type state struct {
	accounts      map[ledger.AccountID]ledger.Account
	vendors       map[ledger.VendorID]ledger.Vendor
	categories    map[ledger.CategoryID]ledger.Category
	transactions  map[ledger.TransactionID]ledger.Transaction
	statusHistory []ledger.StatusHistoryEntry
	edits         []ledger.EditHistoryEntry
}

func newState() *state {
	return &state{
		accounts:     make(map[ledger.AccountID]ledger.Account),
		vendors:      make(map[ledger.VendorID]ledger.Vendor),
		categories:   make(map[ledger.CategoryID]ledger.Category),
		transactions: make(map[ledger.TransactionID]ledger.Transaction),
	}
}

// clone copies every map and log. Rows are values and are replaced, never
// mutated in place, so a shallow copy per row is enough.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.vendors {
		c.vendors[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	c.statusHistory = append([]ledger.StatusHistoryEntry(nil), s.statusHistory...)
	c.edits = append([]ledger.EditHistoryEntry(nil), s.edits...)
	return c
}

var _ ledger.Store = (*state)(nil)

func (s *state) GetAccount(_ context.Context, orgID ledger.OrgID, id ledger.AccountID) (*ledger.Account, error) {
	a, ok := s.accounts[id]
	if !ok || a.OrgID != orgID {
		return nil, ledger.ErrAccountNotFound
	}
	return &a, nil
}

func (s *state) ListAccounts(_ context.Context, orgID ledger.OrgID) ([]ledger.Account, error) {
	var out []ledger.Account
	for _, a := range s.accounts {
		if a.OrgID == orgID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *state) InsertAccount(_ context.Context, a ledger.Account) error {
	if _, ok := s.accounts[a.ID]; ok {
		return ledger.ErrAlreadyExists
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *state) AdjustBalance(_ context.Context, id ledger.AccountID, delta decimal.Decimal) error {
	a, ok := s.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(delta)
	s.accounts[id] = a
	return nil
}

func (s *state) SetAccountActive(_ context.Context, orgID ledger.OrgID, id ledger.AccountID, active bool) error {
	a, ok := s.accounts[id]
	if !ok || a.OrgID != orgID {
		return ledger.ErrAccountNotFound
	}
	a.Active = active
	s.accounts[id] = a
	return nil
}

func (s *state) GetVendor(_ context.Context, orgID ledger.OrgID, id ledger.VendorID) (*ledger.Vendor, error) {
	v, ok := s.vendors[id]
	if !ok || v.OrgID != orgID {
		return nil, ledger.ErrVendorNotFound
	}
	return &v, nil
}

func (s *state) ListVendors(_ context.Context, orgID ledger.OrgID) ([]ledger.Vendor, error) {
	var out []ledger.Vendor
	for _, v := range s.vendors {
		if v.OrgID == orgID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *state) InsertVendor(_ context.Context, v ledger.Vendor) error {
	if _, ok := s.vendors[v.ID]; ok {
		return ledger.ErrAlreadyExists
	}
	s.vendors[v.ID] = v
	return nil
}

func (s *state) GetCategory(_ context.Context, orgID ledger.OrgID, id ledger.CategoryID) (*ledger.Category, error) {
	c, ok := s.categories[id]
	if !ok || c.OrgID != orgID {
		return nil, ledger.ErrCategoryNotFound
	}
	return &c, nil
}

func (s *state) FindCategoryByName(_ context.Context, orgID ledger.OrgID, parentID *ledger.CategoryID, name string) (*ledger.Category, error) {
	for _, c := range s.categories {
		if c.OrgID == orgID && sameParent(c.ParentID, parentID) && ledger.NameKey(c.Name) == ledger.NameKey(name) {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *state) ListCategories(_ context.Context, orgID ledger.OrgID, f ledger.CategoryFilter) ([]ledger.Category, error) {
	var out []ledger.Category
	for _, c := range s.categories {
		if c.OrgID != orgID {
			continue
		}
		if f.RootsOnly && c.ParentID != nil {
			continue
		}
		if f.ParentID != nil && !sameParent(c.ParentID, f.ParentID) {
			continue
		}
		if f.Active != nil && c.Active != *f.Active {
			continue
		}
		if f.Depth != nil && c.Depth != *f.Depth {
			continue
		}
		if f.NameContains != "" && !strings.Contains(ledger.NameKey(c.Name), ledger.NameKey(f.NameContains)) {
			continue
		}
		out = append(out, c)
	}
	sortCategories(out)
	return out, nil
}

func (s *state) ChildCategories(ctx context.Context, orgID ledger.OrgID, parentID ledger.CategoryID) ([]ledger.Category, error) {
	return s.ListCategories(ctx, orgID, ledger.CategoryFilter{ParentID: &parentID})
}

func (s *state) InsertCategory(_ context.Context, c ledger.Category) error {
	if _, ok := s.categories[c.ID]; ok {
		return ledger.ErrAlreadyExists
	}
	s.categories[c.ID] = c
	return nil
}

func (s *state) UpdateCategory(_ context.Context, c ledger.Category) error {
	existing, ok := s.categories[c.ID]
	if !ok || existing.OrgID != c.OrgID {
		return ledger.ErrCategoryNotFound
	}
	c.CreatedAt = existing.CreatedAt
	s.categories[c.ID] = c
	return nil
}

func (s *state) DeleteCategory(_ context.Context, orgID ledger.OrgID, id ledger.CategoryID) error {
	c, ok := s.categories[id]
	if !ok || c.OrgID != orgID {
		return ledger.ErrCategoryNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *state) CountSplitsByCategory(_ context.Context, id ledger.CategoryID) (int, error) {
	n := 0
	for _, tx := range s.transactions {
		for _, sp := range tx.Splits {
			if sp.CategoryID == id {
				n++
			}
		}
	}
	return n, nil
}

func (s *state) GetTransaction(_ context.Context, orgID ledger.OrgID, id ledger.TransactionID) (*ledger.Transaction, error) {
	tx, ok := s.transactions[id]
	if !ok || tx.OrgID != orgID {
		return nil, ledger.ErrTransactionNotFound
	}
	tx.Splits = append([]ledger.Split(nil), tx.Splits...)
	return &tx, nil
}

func (s *state) ListTransactions(_ context.Context, orgID ledger.OrgID, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, tx := range s.transactions {
		if tx.OrgID != orgID || !s.matches(tx, f) {
			continue
		}
		tx.Splits = append([]ledger.Split(nil), tx.Splits...)
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return paginate(out, f.Limit, f.Offset), nil
}

func (s *state) matches(tx ledger.Transaction, f ledger.TransactionFilter) bool {
	if f.AccountID != nil && !tx.Touches(*f.AccountID) {
		return false
	}
	if f.DateFrom != nil && tx.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && tx.Date.After(*f.DateTo) {
		return false
	}
	if f.Type != nil && tx.Type != *f.Type {
		return false
	}
	if f.VendorID != nil && (tx.VendorID == nil || *tx.VendorID != *f.VendorID) {
		return false
	}
	if f.Status != nil && tx.Status != *f.Status {
		return false
	}
	if (f.ClearedFrom != nil || f.ClearedTo != nil) && !inRange(tx.ConfirmedAt, f.ClearedFrom, f.ClearedTo) {
		return false
	}
	if (f.ReconciledFrom != nil || f.ReconciledTo != nil) && !inRange(tx.ReconciledAt, f.ReconciledFrom, f.ReconciledTo) {
		return false
	}
	if f.CategoryName != "" {
		needle := ledger.NameKey(f.CategoryName)
		found := false
		for _, sp := range tx.Splits {
			if c, ok := s.categories[sp.CategoryID]; ok && strings.Contains(ledger.NameKey(c.Name), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *state) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	if _, ok := s.transactions[tx.ID]; ok {
		return ledger.ErrAlreadyExists
	}
	tx.Splits = append([]ledger.Split(nil), tx.Splits...)
	s.transactions[tx.ID] = tx
	return nil
}

func (s *state) UpdateTransaction(_ context.Context, tx ledger.Transaction, expectedVersion int) error {
	existing, ok := s.transactions[tx.ID]
	if !ok || existing.OrgID != tx.OrgID {
		return ledger.ErrTransactionNotFound
	}
	if existing.Version != expectedVersion {
		return ledger.ErrVersionConflict
	}
	existing.DestinationAccountID = tx.DestinationAccountID
	existing.Type = tx.Type
	existing.Amount = tx.Amount
	existing.Fee = tx.Fee
	existing.Date = tx.Date
	existing.VendorID = tx.VendorID
	existing.Memo = tx.Memo
	existing.Version = tx.Version
	existing.UpdatedAt = tx.UpdatedAt
	s.transactions[tx.ID] = existing
	return nil
}

func (s *state) UpdateStatus(_ context.Context, tx ledger.Transaction, from ledger.Status) error {
	existing, ok := s.transactions[tx.ID]
	if !ok || existing.OrgID != tx.OrgID {
		return ledger.ErrTransactionNotFound
	}
	if existing.Status != from {
		return ledger.ErrStatusConflict
	}
	existing.Status = tx.Status
	existing.ConfirmedAt = tx.ConfirmedAt
	existing.ReconciledAt = tx.ReconciledAt
	existing.UpdatedAt = tx.UpdatedAt
	s.transactions[tx.ID] = existing
	return nil
}

func (s *state) ReplaceSplits(_ context.Context, id ledger.TransactionID, splits []ledger.Split) error {
	tx, ok := s.transactions[id]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	tx.Splits = append([]ledger.Split(nil), splits...)
	s.transactions[id] = tx
	return nil
}

func (s *state) DeleteTransaction(_ context.Context, orgID ledger.OrgID, id ledger.TransactionID) error {
	tx, ok := s.transactions[id]
	if !ok || tx.OrgID != orgID {
		return ledger.ErrTransactionNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *state) AppendStatusHistory(_ context.Context, e ledger.StatusHistoryEntry) error {
	s.statusHistory = append(s.statusHistory, e)
	return nil
}

func (s *state) StatusHistory(_ context.Context, id ledger.TransactionID) ([]ledger.StatusHistoryEntry, error) {
	var out []ledger.StatusHistoryEntry
	for _, e := range s.statusHistory {
		if e.TransactionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *state) AppendEdit(_ context.Context, e ledger.EditHistoryEntry) error {
	s.edits = append(s.edits, e)
	return nil
}

func (s *state) EditHistory(_ context.Context, orgID ledger.OrgID, id ledger.TransactionID, limit, offset int) ([]ledger.EditHistoryEntry, error) {
	var out []ledger.EditHistoryEntry
	for i := len(s.edits) - 1; i >= 0; i-- {
		e := s.edits[i]
		if e.OrgID == orgID && e.TransactionID == id {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (s *state) CountEdits(_ context.Context, orgID ledger.OrgID, id ledger.TransactionID) (int, error) {
	n := 0
	for _, e := range s.edits {
		if e.OrgID == orgID && e.TransactionID == id {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func sameParent(a, b *ledger.CategoryID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortCategories(cs []ledger.Category) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Depth != cs[j].Depth {
			return cs[i].Depth < cs[j].Depth
		}
		return ledger.NameKey(cs[i].Name) < ledger.NameKey(cs[j].Name)
	})
}

func inRange(t *time.Time, from, to *time.Time) bool {
	if t == nil {
		return false
	}
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return []T{}
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
