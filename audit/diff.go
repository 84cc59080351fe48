/*
Package audit builds and serves the edit history of transactions.

PURPOSE:

	Every create, update, delete and restore of a transaction appends an
	EditHistoryEntry in the same store transaction as the change itself.
	Entries carry field-level {field, old, new} pairs; delete and restore
	also carry a full snapshot of the previous state.

DIFF FORMAT:

	Scalars are rendered as strings: decimals with their exact digits,
	dates as RFC 3339, absent references as "". Splits are summarized as a
	single "splits" change listing "category:amount" pairs.

SEE ALSO:
  - service.go: Paginated history queries
  - transactions/service.go: Writes the entries
*/
package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/ledger-engine/ledger"
)

// Diff returns the fields that differ between before and after, in a fixed
// order. Equal decimals with different exponents are not reported.
func Diff(before, after ledger.Transaction) []ledger.FieldChange {
	var changes []ledger.FieldChange
	add := func(field, from, to string) {
		if from != to {
			changes = append(changes, ledger.FieldChange{Field: field, Old: from, New: to})
		}
	}

	add("type", string(before.Type), string(after.Type))
	if !before.Amount.Equal(after.Amount) {
		changes = append(changes, ledger.FieldChange{Field: "amount", Old: before.Amount.String(), New: after.Amount.String()})
	}
	if !before.Fee.Equal(after.Fee) {
		changes = append(changes, ledger.FieldChange{Field: "fee", Old: before.Fee.String(), New: after.Fee.String()})
	}
	add("destination_account_id", accountRef(before.DestinationAccountID), accountRef(after.DestinationAccountID))
	add("date", formatDate(before.Date), formatDate(after.Date))
	add("vendor_id", vendorRef(before.VendorID), vendorRef(after.VendorID))
	add("memo", before.Memo, after.Memo)
	add("splits", SummarizeSplits(before.Splits), SummarizeSplits(after.Splits))

	return changes
}

// Created lists every populated field of a new transaction as a change from "".
func Created(tx ledger.Transaction) []ledger.FieldChange {
	return Diff(ledger.Transaction{}, tx)
}

// SummarizeSplits renders splits as "category:amount" pairs joined by ", ".
func SummarizeSplits(splits []ledger.Split) string {
	parts := make([]string, len(splits))
	for i, s := range splits {
		parts[i] = string(s.CategoryID) + ":" + s.Amount.String()
	}
	return strings.Join(parts, ", ")
}

// NewEntry builds an edit entry with a fresh id.
func NewEntry(tx ledger.Transaction, actor string, kind ledger.EditKind, changes []ledger.FieldChange, at time.Time) ledger.EditHistoryEntry {
	return ledger.EditHistoryEntry{
		ID:            uuid.NewString(),
		TransactionID: tx.ID,
		OrgID:         tx.OrgID,
		Actor:         actor,
		Kind:          kind,
		Changes:       changes,
		CreatedAt:     at,
	}
}

// Snapshot returns a deep copy of tx suitable for an entry's Snapshot.
func Snapshot(tx ledger.Transaction) *ledger.Transaction {
	snap := tx
	snap.Splits = append([]ledger.Split(nil), tx.Splits...)
	return &snap
}

func accountRef(id *ledger.AccountID) string {
	if id == nil {
		return ""
	}
	return string(*id)
}

func vendorRef(id *ledger.VendorID) string {
	if id == nil {
		return ""
	}
	return string(*id)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
