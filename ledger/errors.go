/*
errors.go - Centralized error types for the ledger engine

PURPOSE:

	All error types in one place for consistency and discoverability.
	Services return these (wrapped with context where useful) so the outer
	layer can classify any failure with errors.Is.

ERROR CATEGORIES:

 1. Not found  - referenced row absent or outside the organization (404)

 2. Validation - request violates a structural rule (400)

 3. Conflict   - request collides with current state (409)

    Partial bulk results are not errors; see status.BulkResult.

USAGE:

	if ledger.IsConflict(err) {
	    var vc *ledger.VersionConflictError
	    if errors.As(err, &vc) { ... vc.Current ... }
	}
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

// Not found.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrVendorNotFound      = errors.New("vendor not found")
	ErrDestinationNotFound = errors.New("destination account not found")
	ErrEditNotFound        = errors.New("edit history entry not found")
)

// Validation.
var (
	ErrValidation        = errors.New("validation failed")
	ErrDepthExceeded     = errors.New("category depth exceeded")
	ErrCycle             = errors.New("category cycle detected")
	ErrInvalidTransfer   = errors.New("invalid transfer")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBatchTooLarge     = errors.New("batch too large")
	ErrInactive          = errors.New("inactive reference")
)

// Conflict.
var (
	ErrDuplicateName   = errors.New("duplicate sibling category name")
	ErrVersionConflict = errors.New("stale transaction version")
	ErrReconciled      = errors.New("transaction is reconciled")
	ErrStatusConflict  = errors.New("transaction already in that status")
	ErrRequiredStatus  = errors.New("transaction not in required status")
	ErrCategoryInUse   = errors.New("category referenced by transaction splits")
	ErrHasChildren     = errors.New("category has children")
	ErrAlreadyExists   = errors.New("row already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError reports a malformed input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// TransferError reports a violated transfer invariant.
type TransferError struct {
	Reason string
}

func (e *TransferError) Error() string { return "invalid transfer: " + e.Reason }

func (e *TransferError) Unwrap() error { return ErrInvalidTransfer }

// InactiveError reports a reference to a deactivated row.
type InactiveError struct {
	Kind string
	ID   string
}

func (e *InactiveError) Error() string {
	return fmt.Sprintf("%s %s is inactive", e.Kind, e.ID)
}

func (e *InactiveError) Unwrap() error { return ErrInactive }

// DepthExceededError reports a category that would sit below MaxDepth.
type DepthExceededError struct {
	CategoryID CategoryID
	Depth      int
	Max        int
}

func (e *DepthExceededError) Error() string {
	if e.CategoryID == "" {
		return fmt.Sprintf("category depth %d exceeds maximum %d", e.Depth, e.Max)
	}
	return fmt.Sprintf("category %s would reach depth %d, maximum is %d", e.CategoryID, e.Depth, e.Max)
}

func (e *DepthExceededError) Unwrap() error { return ErrDepthExceeded }

// CycleError reports a reparent that would make a category its own ancestor.
type CycleError struct {
	CategoryID CategoryID
	ParentID   CategoryID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("moving category %s under %s would create a cycle", e.CategoryID, e.ParentID)
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// DuplicateNameError reports a sibling with the same case-insensitive name.
type DuplicateNameError struct {
	Name       string
	ParentID   *CategoryID
	ExistingID CategoryID
}

func (e *DuplicateNameError) Error() string {
	parent := "root level"
	if e.ParentID != nil {
		parent = "parent " + string(*e.ParentID)
	}
	return fmt.Sprintf("category %q already exists at %s (id %s)", e.Name, parent, e.ExistingID)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// HasChildrenError reports a delete that needs a decision about children.
type HasChildrenError struct {
	CategoryID CategoryID
	Children   int
}

func (e *HasChildrenError) Error() string {
	return fmt.Sprintf("category %s has %d children: set move_children_to or move_children_to_root", e.CategoryID, e.Children)
}

func (e *HasChildrenError) Unwrap() error { return ErrHasChildren }

// CategoryInUseError reports a delete of a category referenced by splits.
type CategoryInUseError struct {
	CategoryID CategoryID
	Splits     int
}

func (e *CategoryInUseError) Error() string {
	return fmt.Sprintf("category %s is used by %d transaction splits", e.CategoryID, e.Splits)
}

func (e *CategoryInUseError) Unwrap() error { return ErrCategoryInUse }

// VersionConflictError carries the authoritative state so the caller can
// re-present the conflict instead of overwriting concurrent work.
type VersionConflictError struct {
	TransactionID   TransactionID
	ExpectedVersion int
	CurrentVersion  int
	Current         *Transaction
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("transaction %s: expected version %d, current version is %d",
		e.TransactionID, e.ExpectedVersion, e.CurrentVersion)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// ReconciledError reports an operation refused because the row is reconciled.
type ReconciledError struct {
	TransactionID TransactionID
	Operation     string
	Fields        []string
}

func (e *ReconciledError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("transaction %s is reconciled: cannot change %s", e.TransactionID, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("transaction %s is reconciled: %s not allowed", e.TransactionID, e.Operation)
}

func (e *ReconciledError) Unwrap() error { return ErrReconciled }

// StatusConflictError reports a transition to the status the row already has.
type StatusConflictError struct {
	TransactionID TransactionID
	Status        Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("transaction %s is already %s", e.TransactionID, e.Status)
}

func (e *StatusConflictError) Unwrap() error { return ErrStatusConflict }

// InvalidTransitionError reports an edge missing from the transition table.
type InvalidTransitionError struct {
	TransactionID TransactionID
	From          Status
	To            Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for %s: %s -> %s", e.TransactionID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// RequiredStatusError reports a row that must be in a given status first.
type RequiredStatusError struct {
	TransactionID TransactionID
	Required      Status
	Actual        Status
}

func (e *RequiredStatusError) Error() string {
	return fmt.Sprintf("transaction %s must be %s, is %s", e.TransactionID, e.Required, e.Actual)
}

func (e *RequiredStatusError) Unwrap() error { return ErrRequiredStatus }

// BatchTooLargeError reports a bulk request over the batch limit.
type BatchTooLargeError struct {
	Size int
	Max  int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("batch of %d exceeds maximum of %d", e.Size, e.Max)
}

func (e *BatchTooLargeError) Unwrap() error { return ErrBatchTooLarge }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrVendorNotFound) ||
		errors.Is(err, ErrDestinationNotFound) ||
		errors.Is(err, ErrEditNotFound)
}

// IsValidation returns true if the error is due to invalid client input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDepthExceeded) ||
		errors.Is(err, ErrCycle) ||
		errors.Is(err, ErrInvalidTransfer) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrBatchTooLarge) ||
		errors.Is(err, ErrInactive)
}

// IsConflict returns true if the error collides with the current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrReconciled) ||
		errors.Is(err, ErrStatusConflict) ||
		errors.Is(err, ErrRequiredStatus) ||
		errors.Is(err, ErrCategoryInUse) ||
		errors.Is(err, ErrHasChildren) ||
		errors.Is(err, ErrAlreadyExists)
}
