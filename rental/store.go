/*
store.go - Persistence interface for rental transactions

PURPOSE:
  Defines the interface between the ledger and the database. The critical
  contract is atomicity of Insert and CloseTransaction: the one-open-
  transaction-per-book check must not race with concurrent writers.

INSERT CONTRACT:
  Insert verifies "no open transaction exists for this book" and creates
  the row as one atomic unit. Two concurrent inserts for the same book must
  never both succeed; the loser gets ErrAlreadyIssued. The SQLite
  implementation expresses this as a partial unique index on
  (book_id) WHERE return_date IS NULL, so the race is settled by the
  storage layer, not by an application-level check-then-write.

CLOSE CONTRACT:
  CloseTransaction transitions open -> closed conditionally: it only
  applies if the transaction is still open. A concurrent second return
  loses the race and gets ErrTransactionNotFound. Closed is terminal.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - rental/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level lifecycle built on this interface
*/
package rental

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lending-ledger/catalog"
)

// =============================================================================
// STORE - Interface for transaction persistence
// =============================================================================

// Store handles persistence of rental transactions.
//
// INVARIANT: at most one open transaction per book, enforced atomically
// by Insert with respect to concurrent inserts.
type Store interface {
	// Insert persists a new open transaction. Returns ErrAlreadyIssued if
	// the book already has an open transaction; the check and the write
	// are a single atomic unit.
	Insert(ctx context.Context, tx Transaction) error

	// CloseTransaction sets the return date and rent on an open transaction.
	// Returns ErrTransactionNotFound if the transaction does not exist or
	// is already closed. This is the only mutation a transaction sees.
	CloseTransaction(ctx context.Context, id TransactionID, returnDate time.Time, rent decimal.Decimal) error

	// FindOpen returns the open transaction for a book, or nil if the book
	// is not currently out.
	FindOpen(ctx context.Context, bookID catalog.BookID) (*Transaction, error)

	// FindOpenByUser returns the open transaction for a (book, user) pair,
	// or nil if there is none.
	FindOpenByUser(ctx context.Context, bookID catalog.BookID, userID catalog.UserID) (*Transaction, error)

	// ListByBook returns all transactions for a book, open and closed,
	// ordered by issue date.
	ListByBook(ctx context.Context, bookID catalog.BookID) ([]Transaction, error)

	// ListByUser returns all transactions for a user, ordered by issue date.
	ListByUser(ctx context.Context, userID catalog.UserID) ([]Transaction, error)

	// ListByIssueRange returns transactions with from <= IssueDate <= to,
	// inclusive on both bounds, ordered by issue date.
	ListByIssueRange(ctx context.Context, from, to time.Time) ([]Transaction, error)
}
