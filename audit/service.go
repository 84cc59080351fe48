package audit

import (
	"context"

	"github.com/warp/ledger-engine/ledger"
)

// DefaultPageSize applies when History is called without a limit.
const DefaultPageSize = 50

// Service answers edit-history queries.
type Service struct {
	store ledger.AuditStore
}

func NewService(store ledger.AuditStore) *Service {
	return &Service{store: store}
}

// Page is one slice of a transaction's edit history, newest first.
type Page struct {
	Entries []ledger.EditHistoryEntry
	Total   int
	Limit   int
	Offset  int
}

// History returns edits of the transaction newest first. History survives
// deletion of the transaction itself.
func (s *Service) History(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID, limit, offset int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		return nil, &ledger.FieldError{Field: "offset", Reason: "must not be negative"}
	}

	entries, err := s.store.EditHistory(ctx, orgID, id, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountEdits(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []ledger.EditHistoryEntry{}
	}
	return &Page{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// Latest returns the most recent edit, or ErrEditNotFound.
func (s *Service) Latest(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID) (*ledger.EditHistoryEntry, error) {
	entries, err := s.store.EditHistory(ctx, orgID, id, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ledger.ErrEditNotFound
	}
	return &entries[0], nil
}

// Count returns the number of edits recorded for the transaction.
func (s *Service) Count(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID) (int, error) {
	return s.store.CountEdits(ctx, orgID, id)
}
