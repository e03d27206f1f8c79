/*
Package rental provides the book lending ledger.

PURPOSE:
  This package owns the rental transaction lifecycle: issuing a book to a
  user, returning it, computing rent, and the reporting projections built
  on top of the transaction history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: One rental record. Open while the book is out, closed
    exactly once when it comes back.
  - IssuedTransaction: A transaction enriched with book and user details
    for callers. The enrichment is a read-side join, never stored.
  - Report records: IssuedSummary, LoanRecord, RangeRecord.

DESIGN PRINCIPLES:
  1. Single open transaction per book: a physical copy can be lent to only
     one person at a time. The store enforces this atomically.
  2. Precision: rent uses decimal.Decimal, never floats.
  3. Closed is terminal: a transaction is mutated exactly once, on return.

SEE ALSO:
  - ledger.go: Issue/return lifecycle and reports
  - store.go: Persistence contract the ledger relies on
  - errors.go: Error taxonomy
*/
package rental

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lending-ledger/catalog"
)

// =============================================================================
// TRANSACTION - One rental record
// =============================================================================

type TransactionID string

// Transaction records a single lending of a book to a user.
//
// A transaction is open while ReturnDate is nil and closed once it is set.
// Rent is computed exactly once, when the transaction closes. There is no
// reopening and no deletion.
type Transaction struct {
	ID       TransactionID
	BookID   catalog.BookID
	UserID   catalog.UserID

	IssueDate  time.Time
	ReturnDate *time.Time       // nil while the book is out
	Rent       *decimal.Decimal // nil until the book is returned

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Open reports whether the book is still out on this transaction.
func (t Transaction) Open() bool { return t.ReturnDate == nil }

var txSeq atomic.Int64

// NewTransactionID returns a process-unique transaction id.
func NewTransactionID() TransactionID {
	return TransactionID(fmt.Sprintf("txn-%d-%d", time.Now().UnixNano(), txSeq.Add(1)))
}

// =============================================================================
// ENRICHED RESULT - Transaction joined with catalog details
// =============================================================================

// BookDetails carries the referenced book's fields a caller needs.
// RentPerDay is populated on return results only.
type BookDetails struct {
	Name       string
	Category   string
	RentPerDay *decimal.Decimal
}

// UserDetails carries the referenced user's fields a caller needs.
type UserDetails struct {
	Name  string
	Email string
}

// IssuedTransaction is the result of an issue or return operation: the
// persisted transaction plus the book and user it references.
type IssuedTransaction struct {
	Transaction
	Book BookDetails
	User UserDetails
}

// =============================================================================
// REPORT RECORDS
// =============================================================================

// NotIssued is the sentinel holder name when a book has no open transaction.
const NotIssued = "Not issued"

// IssuedSummary reports how often a book was issued and who holds it now.
type IssuedSummary struct {
	TotalIssued       int
	CurrentlyIssuedTo string
}

// LoanRecord is one entry in a user's borrowing history.
type LoanRecord struct {
	BookName   string
	IssueDate  time.Time
	ReturnDate *time.Time
}

// RangeRecord is one entry in a date-range report.
type RangeRecord struct {
	BookName   string
	IssuedTo   string
	IssueDate  time.Time
	ReturnDate *time.Time
}
