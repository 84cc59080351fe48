package status

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileInput names the confirmed transactions matched against a bank
// statement.
type ReconcileInput struct {
	StatementBalance decimal.Decimal
	StatementDate    time.Time
	TransactionIDs   []ledger.TransactionID
	Actor            string
	Notes            string
}

// ReconcileResult reports how far the cleared balance is from the statement.
// A nonzero Difference is informational.
type ReconcileResult struct {
	AccountID        ledger.AccountID
	ReconciledCount  int
	ClearedBalance   decimal.Decimal
	StatementBalance decimal.Decimal
	Difference       decimal.Decimal
	StatementDate    time.Time
}

// Reconcile moves every named transaction from confirmed to reconciled in
// one store transaction, then computes
//
//	cleared    = opening balance + Σ impact(confirmed or reconciled)
//	difference = statement balance − cleared
//
// Any transaction not touching the account, or not currently confirmed,
// rejects the whole batch.
func (s *Service) Reconcile(ctx context.Context, orgID ledger.OrgID, accountID ledger.AccountID, in ReconcileInput) (*ReconcileResult, error) {
	if in.StatementDate.IsZero() {
		return nil, &ledger.FieldError{Field: "statement_date", Reason: "is required"}
	}
	ids := dedupe(in.TransactionIDs)
	if len(ids) == 0 {
		return nil, &ledger.FieldError{Field: "transaction_ids", Reason: "at least one transaction is required"}
	}
	if len(ids) > ledger.MaxBulkStatusBatch {
		return nil, &ledger.BatchTooLargeError{Size: len(ids), Max: ledger.MaxBulkStatusBatch}
	}

	var result *ReconcileResult
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		account, err := st.GetAccount(ctx, orgID, accountID)
		if err != nil {
			return err
		}

		for _, id := range ids {
			tx, err := st.GetTransaction(ctx, orgID, id)
			if err != nil {
				return err
			}
			if !tx.Touches(accountID) {
				return &ledger.FieldError{
					Field:  "transaction_ids",
					Reason: fmt.Sprintf("transaction %s does not belong to account %s", id, accountID),
				}
			}
			if tx.Status != ledger.StatusConfirmed {
				return &ledger.RequiredStatusError{TransactionID: id, Required: ledger.StatusConfirmed, Actual: tx.Status}
			}
		}

		now := s.now().UTC()
		notes := in.Notes
		if notes == "" {
			notes = "statement " + in.StatementDate.Format(time.DateOnly)
		}
		for _, id := range ids {
			if _, err := s.change(ctx, st, orgID, id, ledger.StatusReconciled, in.Actor, notes, now); err != nil {
				return err
			}
		}

		txs, err := st.ListTransactions(ctx, orgID, ledger.TransactionFilter{AccountID: &accountID})
		if err != nil {
			return err
		}
		cleared := account.OpeningBalance
		for _, tx := range txs {
			if tx.Status == ledger.StatusConfirmed || tx.Status == ledger.StatusReconciled {
				cleared = cleared.Add(ledger.Impact(tx.Values(), accountID))
			}
		}

		result = &ReconcileResult{
			AccountID:        accountID,
			ReconciledCount:  len(ids),
			ClearedBalance:   cleared,
			StatementBalance: in.StatementBalance,
			Difference:       in.StatementBalance.Sub(cleared),
			StatementDate:    in.StatementDate,
		}
		return nil
	})
	if err != nil {
		s.log.Debug().Err(err).Str("org_id", string(orgID)).Str("account_id", string(accountID)).Msg("reconcile rejected")
		return nil, err
	}

	evt := s.log.Info()
	if !result.Difference.IsZero() {
		evt = s.log.Warn()
	}
	evt.Str("org_id", string(orgID)).
		Str("account_id", string(accountID)).
		Int("reconciled", result.ReconciledCount).
		Str("difference", result.Difference.String()).
		Msg("account reconciled")
	return result, nil
}

func dedupe(ids []ledger.TransactionID) []ledger.TransactionID {
	seen := make(map[ledger.TransactionID]bool, len(ids))
	out := make([]ledger.TransactionID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// =============================================================================
// SUMMARY
// =============================================================================

// StatusTotal aggregates the transactions of one status.
type StatusTotal struct {
	Status ledger.Status
	Count  int
	// Net is the signed impact on the account: income minus expenses,
	// transfers counted by direction.
	Net decimal.Decimal
}

// Summary groups an account's transactions by status.
type Summary struct {
	AccountID ledger.AccountID
	Balance   decimal.Decimal
	// Totals holds one entry per status, in lifecycle order.
	Totals []StatusTotal
}

// Total returns the aggregate for st.
func (s *Summary) Total(st ledger.Status) StatusTotal {
	for _, t := range s.Totals {
		if t.Status == st {
			return t
		}
	}
	return StatusTotal{Status: st, Net: decimal.Zero}
}

// Summary returns per-status counts and nets for the account, plus its
// current stored balance.
func (s *Service) Summary(ctx context.Context, orgID ledger.OrgID, accountID ledger.AccountID) (*Summary, error) {
	var summary *Summary
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		account, err := st.GetAccount(ctx, orgID, accountID)
		if err != nil {
			return err
		}
		txs, err := st.ListTransactions(ctx, orgID, ledger.TransactionFilter{AccountID: &accountID})
		if err != nil {
			return err
		}

		index := make(map[ledger.Status]int, len(ledger.Statuses))
		totals := make([]StatusTotal, len(ledger.Statuses))
		for i, status := range ledger.Statuses {
			index[status] = i
			totals[i] = StatusTotal{Status: status, Net: decimal.Zero}
		}
		for _, tx := range txs {
			i, ok := index[tx.Status]
			if !ok {
				continue
			}
			totals[i].Count++
			totals[i].Net = totals[i].Net.Add(ledger.Impact(tx.Values(), accountID))
		}

		summary = &Summary{AccountID: accountID, Balance: account.Balance, Totals: totals}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
