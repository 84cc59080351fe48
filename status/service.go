/*
Package status moves transactions through their lifecycle.

PURPOSE:

	Applies the transition table of ledger/status.go, stamps the lifecycle
	timestamps, and appends one StatusHistoryEntry per successful change.
	Also computes per-status summaries and reconciles accounts against bank
	statements.

TIMESTAMPS:

	→ confirmed    sets ConfirmedAt
	→ reconciled   sets ReconciledAt
	→ unconfirmed  clears both

BULK SEMANTICS:

	Each id is processed in its own store transaction. Failures are collected
	next to successes; a partly failed batch is a normal result, not an error.
	Oversized batches are rejected before the store is touched.

RACES:

	The store updates status with a compare-and-set on the previous status.
	Two callers racing to the same target produce one success and one
	StatusConflictError, and exactly one history entry.

SEE ALSO:
  - ledger/status.go: Transition table
  - reconcile.go:     Statement reconciliation and summaries
*/
package status

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/ledger-engine/ledger"
)

const defaultActor = "system"

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store ledger.TxStore
	log   zerolog.Logger
	now   func() time.Time
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store ledger.TxStore, opts ...Option) *Service {
	s := &Service{store: store, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// SINGLE CHANGE
// =============================================================================

// ChangeStatus moves one transaction to status to.
func (s *Service) ChangeStatus(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID, to ledger.Status, actor, notes string) (*ledger.Transaction, error) {
	var changed *ledger.Transaction
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		tx, err := s.change(ctx, st, orgID, id, to, actor, notes, s.now().UTC())
		changed = tx
		return err
	})
	if err != nil {
		s.log.Debug().Err(err).Str("org_id", string(orgID)).Str("transaction_id", string(id)).Str("to", string(to)).Msg("status change rejected")
		return nil, err
	}

	s.log.Info().
		Str("org_id", string(orgID)).
		Str("transaction_id", string(id)).
		Str("status", string(to)).
		Msg("status changed")
	return changed, nil
}

// change validates and applies one transition inside an open store transaction.
func (s *Service) change(ctx context.Context, st ledger.Store, orgID ledger.OrgID, id ledger.TransactionID, to ledger.Status, actor, notes string, now time.Time) (*ledger.Transaction, error) {
	tx, err := st.GetTransaction(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	from := tx.Status
	if err := ledger.ValidateTransition(id, from, to); err != nil {
		return nil, err
	}

	next := *tx
	next.Status = to
	next.UpdatedAt = now
	switch to {
	case ledger.StatusConfirmed:
		next.ConfirmedAt = &now
		next.ReconciledAt = nil
	case ledger.StatusReconciled:
		next.ReconciledAt = &now
	case ledger.StatusUnconfirmed:
		next.ConfirmedAt = nil
		next.ReconciledAt = nil
	}

	if err := st.UpdateStatus(ctx, next, from); err != nil {
		if errors.Is(err, ledger.ErrStatusConflict) {
			return nil, &ledger.StatusConflictError{TransactionID: id, Status: to}
		}
		return nil, err
	}

	if actor == "" {
		actor = defaultActor
	}
	err = st.AppendStatusHistory(ctx, ledger.StatusHistoryEntry{
		ID:            uuid.NewString(),
		TransactionID: id,
		FromStatus:    &from,
		ToStatus:      to,
		Actor:         actor,
		Notes:         notes,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// =============================================================================
// BULK CHANGE
// =============================================================================

// BulkFailure is one id a bulk change could not move.
type BulkFailure struct {
	ID  ledger.TransactionID
	Err error
}

// BulkResult lists the outcome of every id of a bulk change.
type BulkResult struct {
	Succeeded []ledger.TransactionID
	Failed    []BulkFailure
}

// AllSucceeded reports whether no id failed.
func (r *BulkResult) AllSucceeded() bool { return len(r.Failed) == 0 }

// NoneSucceeded reports whether every id failed.
func (r *BulkResult) NoneSucceeded() bool { return len(r.Succeeded) == 0 }

// BulkChangeStatus moves each id to status to independently. The returned
// error is non-nil only when the request itself is invalid.
func (s *Service) BulkChangeStatus(ctx context.Context, orgID ledger.OrgID, ids []ledger.TransactionID, to ledger.Status, actor, notes string) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, &ledger.FieldError{Field: "transaction_ids", Reason: "must not be empty"}
	}
	if len(ids) > ledger.MaxBulkStatusBatch {
		return nil, &ledger.BatchTooLargeError{Size: len(ids), Max: ledger.MaxBulkStatusBatch}
	}
	if !to.Valid() {
		return nil, &ledger.FieldError{Field: "status", Reason: "unknown status " + string(to)}
	}

	result := &BulkResult{
		Succeeded: []ledger.TransactionID{},
		Failed:    []BulkFailure{},
	}
	for _, id := range ids {
		err := s.store.WithTx(ctx, func(st ledger.Store) error {
			_, err := s.change(ctx, st, orgID, id, to, actor, notes, s.now().UTC())
			return err
		})
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	s.log.Info().
		Str("org_id", string(orgID)).
		Str("status", string(to)).
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Msg("bulk status change")
	return result, nil
}

// =============================================================================
// HISTORY
// =============================================================================

// History returns the transaction's status changes, oldest first.
func (s *Service) History(ctx context.Context, orgID ledger.OrgID, id ledger.TransactionID) ([]ledger.StatusHistoryEntry, error) {
	if _, err := s.store.GetTransaction(ctx, orgID, id); err != nil {
		return nil, err
	}
	entries, err := s.store.StatusHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []ledger.StatusHistoryEntry{}
	}
	return entries, nil
}
