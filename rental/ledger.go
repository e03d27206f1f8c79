/*
ledger.go - Rental transaction lifecycle and reports

PURPOSE:
  The Ledger owns the lending lifecycle: issue a book, return it, compute
  rent, and answer the reporting queries. Catalog lookups resolve names and
  ids; the store guarantees the one-open-transaction-per-book invariant.

LIFECYCLE:
  none -> open (IssueBook) -> closed (ReturnBook, terminal)

RENT:
  rentDays = ceil(returnDate - issueDate, in days)
  rent     = rentDays * book.RentPerDay

  The rate is read at return time, not frozen at issue time: if a book's
  rate changes mid-loan, settlement uses the current rate. A return dated
  before the issue date is rejected with ErrInvalidDateRange; a same-day
  return is allowed and costs nothing.

CONCURRENCY:
  IssueBook delegates the check-then-act race to Store.Insert, which is
  atomic. ReturnBook closes via a conditional update: when two returns race
  for the same open transaction, the second gets ErrTransactionNotFound.

SEE ALSO:
  - store.go: Atomicity contract
  - catalog/catalog.go: Book and user resolution
*/
package rental

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lending-ledger/catalog"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger performs rental operations against a catalog and a transaction
// store.
type Ledger struct {
	catalog catalog.Store
	store   Store
}

// NewLedger creates a ledger over the given catalog and transaction store.
func NewLedger(cat catalog.Store, store Store) *Ledger {
	return &Ledger{catalog: cat, store: store}
}

// =============================================================================
// LIFECYCLE OPERATIONS
// =============================================================================

// IssueBook lends the named book to the given user. Exactly one new
// transaction is created, or nothing at all: if the book already has an
// open transaction the call fails with AlreadyIssuedError and leaves no
// partial state.
func (l *Ledger) IssueBook(ctx context.Context, bookName string, userID catalog.UserID, issueDate string) (*IssuedTransaction, error) {
	if bookName == "" || userID == "" || issueDate == "" {
		return nil, fmt.Errorf("%w: book name, user id, and issue date are required", ErrValidation)
	}
	issuedAt, err := ParseDate(issueDate)
	if err != nil {
		return nil, err
	}

	book, err := l.catalog.FindBookByName(ctx, bookName)
	if err != nil {
		return nil, err
	}
	user, err := l.catalog.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx := Transaction{
		ID:        NewTransactionID(),
		BookID:    book.ID,
		UserID:    user.ID,
		IssueDate: issuedAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := l.store.Insert(ctx, tx); err != nil {
		if errors.Is(err, ErrAlreadyIssued) {
			return nil, l.alreadyIssued(ctx, book)
		}
		return nil, err
	}

	return &IssuedTransaction{
		Transaction: tx,
		Book:        BookDetails{Name: book.Name, Category: book.Category},
		User:        UserDetails{Name: user.Name, Email: user.Email},
	}, nil
}

// ReturnBook closes the open transaction for the (book, user) pair and
// computes rent against the book's current daily rate.
func (l *Ledger) ReturnBook(ctx context.Context, bookName string, userID catalog.UserID, returnDate string) (*IssuedTransaction, error) {
	if bookName == "" || userID == "" || returnDate == "" {
		return nil, fmt.Errorf("%w: book name, user id, and return date are required", ErrValidation)
	}
	returnedAt, err := ParseDate(returnDate)
	if err != nil {
		return nil, err
	}

	book, err := l.catalog.FindBookByName(ctx, bookName)
	if err != nil {
		return nil, err
	}
	user, err := l.catalog.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	open, err := l.store.FindOpenByUser(ctx, book.ID, user.ID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, fmt.Errorf("%w: no open transaction for book %q and user %s",
			ErrTransactionNotFound, bookName, userID)
	}

	if returnedAt.Before(open.IssueDate) {
		return nil, fmt.Errorf("%w: return %s precedes issue %s",
			ErrInvalidDateRange, FormatDate(returnedAt), FormatDate(open.IssueDate))
	}

	days := RentDays(open.IssueDate, returnedAt)
	rent := book.RentPerDay.Mul(decimal.NewFromInt(int64(days)))

	if err := l.store.CloseTransaction(ctx, open.ID, returnedAt, rent); err != nil {
		return nil, err
	}

	closed := *open
	closed.ReturnDate = &returnedAt
	closed.Rent = &rent
	closed.UpdatedAt = time.Now().UTC()

	rate := book.RentPerDay
	return &IssuedTransaction{
		Transaction: closed,
		Book:        BookDetails{Name: book.Name, Category: book.Category, RentPerDay: &rate},
		User:        UserDetails{Name: user.Name, Email: user.Email},
	}, nil
}

// alreadyIssued builds the conflict error, resolving the current holder
// when it can. The lookup is best-effort: the conflict stands either way.
func (l *Ledger) alreadyIssued(ctx context.Context, book *catalog.Book) error {
	conflict := &AlreadyIssuedError{BookName: book.Name}
	if open, err := l.store.FindOpen(ctx, book.ID); err == nil && open != nil {
		conflict.HeldBy = open.UserID
		conflict.TxID = open.ID
	}
	return conflict
}

// =============================================================================
// REPORTS - Read-only projections
// =============================================================================

// IssuedSummary reports how many times a book was issued, and who currently
// holds it.
func (l *Ledger) IssuedSummary(ctx context.Context, bookName string) (*IssuedSummary, error) {
	book, err := l.catalog.FindBookByName(ctx, bookName)
	if err != nil {
		return nil, err
	}

	txs, err := l.store.ListByBook(ctx, book.ID)
	if err != nil {
		return nil, err
	}

	summary := &IssuedSummary{
		TotalIssued:       len(txs),
		CurrentlyIssuedTo: NotIssued,
	}
	for _, tx := range txs {
		if !tx.Open() {
			continue
		}
		user, err := l.catalog.FindUserByID(ctx, tx.UserID)
		if err != nil {
			return nil, err
		}
		summary.CurrentlyIssuedTo = user.Name
		break
	}
	return summary, nil
}

// TotalRent sums rent over all closed transactions for a book. Open
// transactions contribute nothing.
func (l *Ledger) TotalRent(ctx context.Context, bookName string) (decimal.Decimal, error) {
	book, err := l.catalog.FindBookByName(ctx, bookName)
	if err != nil {
		return decimal.Zero, err
	}

	txs, err := l.store.ListByBook(ctx, book.ID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, tx := range txs {
		if tx.Rent != nil {
			total = total.Add(*tx.Rent)
		}
	}
	return total, nil
}

// IssuedToUser returns the borrowing history of a user, ordered by issue
// date.
func (l *Ledger) IssuedToUser(ctx context.Context, userID catalog.UserID) ([]LoanRecord, error) {
	user, err := l.catalog.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	txs, err := l.store.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	records := make([]LoanRecord, 0, len(txs))
	names := make(map[catalog.BookID]string)
	for _, tx := range txs {
		name, ok := names[tx.BookID]
		if !ok {
			book, err := l.catalog.GetBook(ctx, tx.BookID)
			if err != nil {
				return nil, err
			}
			name = book.Name
			names[tx.BookID] = name
		}
		records = append(records, LoanRecord{
			BookName:   name,
			IssueDate:  tx.IssueDate,
			ReturnDate: tx.ReturnDate,
		})
	}
	return records, nil
}

// IssuedInRange returns every transaction issued between the two dates,
// inclusive on both bounds.
func (l *Ledger) IssuedInRange(ctx context.Context, startDate, endDate string) ([]RangeRecord, error) {
	if startDate == "" || endDate == "" {
		return nil, fmt.Errorf("%w: start date and end date are required", ErrInvalidRequest)
	}
	from, err := ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	to, err := ParseDate(endDate)
	if err != nil {
		return nil, err
	}

	txs, err := l.store.ListByIssueRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	records := make([]RangeRecord, 0, len(txs))
	bookNames := make(map[catalog.BookID]string)
	userNames := make(map[catalog.UserID]string)
	for _, tx := range txs {
		bookName, ok := bookNames[tx.BookID]
		if !ok {
			book, err := l.catalog.GetBook(ctx, tx.BookID)
			if err != nil {
				return nil, err
			}
			bookName = book.Name
			bookNames[tx.BookID] = bookName
		}
		userName, ok := userNames[tx.UserID]
		if !ok {
			user, err := l.catalog.FindUserByID(ctx, tx.UserID)
			if err != nil {
				return nil, err
			}
			userName = user.Name
			userNames[tx.UserID] = userName
		}
		records = append(records, RangeRecord{
			BookName:   bookName,
			IssuedTo:   userName,
			IssueDate:  tx.IssueDate,
			ReturnDate: tx.ReturnDate,
		})
	}
	return records, nil
}
