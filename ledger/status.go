/*
status.go - Transaction lifecycle states and the legal edges between them

LIFECYCLE:

	unconfirmed ──▶ confirmed ──▶ reconciled
	     ▲              │
	     └──────────────┘   (undo a premature confirmation)

	reconciled is terminal. Any edge leaving it, and the shortcut
	unconfirmed → reconciled, are rejected.

SEE ALSO:
  - status/service.go: Applies transitions and writes history
*/
package ledger

type Status string

const (
	StatusUnconfirmed Status = "unconfirmed"
	StatusConfirmed   Status = "confirmed"
	StatusReconciled  Status = "reconciled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusUnconfirmed, StatusConfirmed, StatusReconciled}

// transitions is the complete table of legal status edges.
var transitions = map[Status][]Status{
	StatusUnconfirmed: {StatusConfirmed},
	StatusConfirmed:   {StatusUnconfirmed, StatusReconciled},
	StatusReconciled:  {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// ParseStatus converts s into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &FieldError{Field: "status", Reason: "must be unconfirmed, confirmed or reconciled, got " + s}
	}
	return st, nil
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns nil when from → to is legal. Otherwise it names
// the violated rule: already in the target state, leaving reconciled, or an
// edge missing from the table.
func ValidateTransition(id TransactionID, from, to Status) error {
	if !to.Valid() {
		return &FieldError{Field: "status", Reason: "unknown status " + string(to)}
	}
	if from == to {
		return &StatusConflictError{TransactionID: id, Status: to}
	}
	if from == StatusReconciled {
		return &ReconciledError{TransactionID: id, Operation: "status change to " + string(to)}
	}
	if !CanTransition(from, to) {
		return &InvalidTransitionError{TransactionID: id, From: from, To: to}
	}
	return nil
}
