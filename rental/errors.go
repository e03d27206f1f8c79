/*
errors.go - Centralized error types for the rental ledger

PURPOSE:
  All error kinds in one place. Callers distinguish kinds with errors.Is;
  structured errors carry extra context and Unwrap to a sentinel.

ERROR CATEGORIES:
  1. Input errors - missing fields, unparseable dates, bad ranges
  2. Domain errors - invariant violations, missing open transactions
  3. Store errors - persistence failures, kept distinct from domain errors

SEE ALSO:
  - ledger.go: Produces these errors
  - catalog/catalog.go: ErrBookNotFound, ErrUserNotFound
*/
package rental

import (
	"errors"
	"fmt"

	"github.com/warp/lending-ledger/catalog"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when a required input is missing or a date
	// string does not parse.
	ErrValidation = errors.New("missing or malformed input")

	// ErrAlreadyIssued is returned when issuing a book that already has an
	// open transaction. This enforces the one-open-transaction invariant.
	ErrAlreadyIssued = errors.New("book is already issued")

	// ErrTransactionNotFound is returned on return when no open transaction
	// matches the (book, user) pair: never issued, issued to someone else,
	// or already returned. The ledger does not distinguish these cases.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidDateRange is returned when a return date precedes the issue
	// date. Negative rent is rejected rather than recorded.
	ErrInvalidDateRange = errors.New("return date before issue date")

	// ErrInvalidRequest is returned when a range query is missing a bound.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrStoreUnavailable is returned when the durable store fails.
	// Never conflated with domain errors.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AlreadyIssuedError reports which book is out and, when known, on which
// transaction.
type AlreadyIssuedError struct {
	BookName string
	HeldBy   catalog.UserID
	TxID     TransactionID
}

func (e *AlreadyIssuedError) Error() string {
	if e.HeldBy != "" {
		return fmt.Sprintf("book %q is already issued to user %s (tx: %s)", e.BookName, e.HeldBy, e.TxID)
	}
	return fmt.Sprintf("book %q is already issued", e.BookName)
}

func (e *AlreadyIssuedError) Unwrap() error {
	return ErrAlreadyIssued
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, catalog.ErrBookNotFound) ||
		errors.Is(err, catalog.ErrUserNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// or a rejected state transition, as opposed to a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAlreadyIssued) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidRequest)
}
