/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements catalog.Store and rental.Store over one SQLite database.
  The same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  books:        Catalog of lendable books (name is a unique secondary key)
  users:        Registered borrowers
  transactions: Rental ledger (issue/return records)

THE OPEN-TRANSACTION INVARIANT:
  A book can have at most one open (unreturned) transaction. This is
  enforced by the database, not by application code:

    CREATE UNIQUE INDEX idx_transactions_open_book
        ON transactions(book_id) WHERE return_date IS NULL;

  Concurrent issue attempts for the same book race at the storage layer;
  the loser's INSERT violates the index and is surfaced as
  rental.ErrAlreadyIssued. There is no check-then-write window.

RETURNS:
  Closing a transaction is a conditional UPDATE guarded by
  "AND return_date IS NULL". Zero rows affected means the transaction was
  not open (already returned, or never existed) and the caller gets
  rental.ErrTransactionNotFound.

MONEY:
  Rates and rent are stored as decimal strings and parsed back with
  shopspring/decimal. Rent-range filters compare via CAST(... AS REAL),
  which is exact enough for filtering; arithmetic never happens in SQL.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, a single writer at a time.

USAGE:
  store, err := sqlite.New("./data/library.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := rental.NewLedger(store, store)

SEE ALSO:
  - rental/store.go: Interface definition and atomicity contract
  - catalog/catalog.go: Catalog contract
  - rental/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/lending-ledger/catalog"
	"github.com/warp/lending-ledger/rental"
)

// Store implements catalog.Store and rental.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ catalog.Store = (*Store)(nil)
	_ rental.Store  = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Catalog: books
	CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		rent_per_day TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Book names are an alternate identity: issue/return address books by
	-- name, so the name index carries the same uniqueness guarantee as id.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_books_name ON books(name);
	CREATE INDEX IF NOT EXISTS idx_books_category ON books(category);

	-- Catalog: users
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		created_at TEXT NOT NULL
	);

	-- Rental ledger
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		issue_date TEXT NOT NULL,
		return_date TEXT,
		rent TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one open transaction per book. Concurrent issues
	-- race here, at the storage layer, not in application code.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_open_book
		ON transactions(book_id) WHERE return_date IS NULL;

	CREATE INDEX IF NOT EXISTS idx_transactions_book
		ON transactions(book_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_issue_date
		ON transactions(issue_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RENTAL STORE (rental.Store interface)
// =============================================================================

// Insert persists a new open transaction. The partial unique index makes
// the "no open transaction for this book" check atomic with the write.
func (s *Store) Insert(ctx context.Context, tx rental.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO transactions (id, book_id, user_id, issue_date, return_date, rent, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, NULL, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		tx.ID,
		tx.BookID,
		tx.UserID,
		tx.IssueDate.UTC().Format(time.RFC3339),
		tx.CreatedAt.UTC().Format(time.RFC3339),
		tx.UpdatedAt.UTC().Format(time.RFC3339),
	)

	if err != nil {
		if isOpenBookConflict(err) {
			return rental.ErrAlreadyIssued
		}
		return storeErr("insert transaction", err)
	}
	return nil
}

// CloseTransaction transitions a transaction open -> closed. The WHERE
// clause makes the transition conditional: a transaction that is no longer
// open is left untouched and the second caller is rejected.
func (s *Store) CloseTransaction(ctx context.Context, id rental.TransactionID, returnDate time.Time, rent decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE transactions
		SET return_date = ?, rent = ?, updated_at = ?
		WHERE id = ? AND return_date IS NULL
	`

	res, err := s.db.ExecContext(ctx, query,
		returnDate.UTC().Format(time.RFC3339),
		rent.String(),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return storeErr("close transaction", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("close transaction", err)
	}
	if n == 0 {
		return rental.ErrTransactionNotFound
	}
	return nil
}

// FindOpen returns the open transaction for a book, or nil if none.
func (s *Store) FindOpen(ctx context.Context, bookID catalog.BookID) (*rental.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := txSelect + ` WHERE book_id = ? AND return_date IS NULL`
	return s.queryOneTransaction(ctx, query, bookID)
}

// FindOpenByUser returns the open transaction for a (book, user) pair.
func (s *Store) FindOpenByUser(ctx context.Context, bookID catalog.BookID, userID catalog.UserID) (*rental.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := txSelect + ` WHERE book_id = ? AND user_id = ? AND return_date IS NULL`
	return s.queryOneTransaction(ctx, query, bookID, userID)
}

// ListByBook returns all transactions for a book, open and closed.
func (s *Store) ListByBook(ctx context.Context, bookID catalog.BookID) ([]rental.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := txSelect + ` WHERE book_id = ? ORDER BY issue_date ASC, created_at ASC`
	return s.queryTransactions(ctx, query, bookID)
}

// ListByUser returns all transactions for a user.
func (s *Store) ListByUser(ctx context.Context, userID catalog.UserID) ([]rental.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := txSelect + ` WHERE user_id = ? ORDER BY issue_date ASC, created_at ASC`
	return s.queryTransactions(ctx, query, userID)
}

// ListByIssueRange returns transactions issued in [from, to], inclusive.
func (s *Store) ListByIssueRange(ctx context.Context, from, to time.Time) ([]rental.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := txSelect + ` WHERE issue_date >= ? AND issue_date <= ? ORDER BY issue_date ASC, created_at ASC`
	return s.queryTransactions(ctx, query,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
}

const txSelect = `
	SELECT id, book_id, user_id, issue_date, return_date, rent, created_at, updated_at
	FROM transactions`

func (s *Store) queryOneTransaction(ctx context.Context, query string, args ...any) (*rental.Transaction, error) {
	txs, err := s.queryTransactions(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]rental.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query transactions", err)
	}
	defer rows.Close()

	var transactions []rental.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("query transactions", err)
	}
	return transactions, nil
}

func scanTransaction(rows *sql.Rows) (rental.Transaction, error) {
	var (
		tx         rental.Transaction
		issueDate  string
		returnDate sql.NullString
		rent       sql.NullString
		createdAt  string
		updatedAt  string
	)

	err := rows.Scan(&tx.ID, &tx.BookID, &tx.UserID, &issueDate, &returnDate, &rent, &createdAt, &updatedAt)
	if err != nil {
		return tx, storeErr("scan transaction", err)
	}

	tx.IssueDate, _ = time.Parse(time.RFC3339, issueDate)
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	tx.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if returnDate.Valid {
		t, _ := time.Parse(time.RFC3339, returnDate.String)
		tx.ReturnDate = &t
	}
	if rent.Valid {
		d, err := decimal.NewFromString(rent.String)
		if err != nil {
			return tx, storeErr("scan transaction rent", err)
		}
		tx.Rent = &d
	}
	return tx, nil
}

// =============================================================================
// BOOK STORE (catalog.Store interface)
// =============================================================================

const bookSelect = `
	SELECT id, name, category, rent_per_day, created_at, updated_at
	FROM books`

// FindBookByName returns the book with the given name.
func (s *Store) FindBookByName(ctx context.Context, name string) (*catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryOneBook(ctx, bookSelect+` WHERE name = ?`, name)
}

// GetBook returns the book with the given id.
func (s *Store) GetBook(ctx context.Context, id catalog.BookID) (*catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryOneBook(ctx, bookSelect+` WHERE id = ?`, id)
}

// SaveBook inserts or updates a book.
func (s *Store) SaveBook(ctx context.Context, b catalog.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO books (id, name, category, rent_per_day, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			rent_per_day = excluded.rent_per_day,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.Name, b.Category, b.RentPerDay.String(), now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return catalog.ErrDuplicateBookName
		}
		return storeErr("save book", err)
	}
	return nil
}

// DeleteBook removes a book from the catalog. Transactions referencing it
// are kept: the ledger is never rewritten.
func (s *Store) DeleteBook(ctx context.Context, id catalog.BookID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id)
	if err != nil {
		return storeErr("delete book", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrBookNotFound
	}
	return nil
}

// ListBooks returns all books ordered by name.
func (s *Store) ListBooks(ctx context.Context) ([]catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBooks(ctx, bookSelect+` ORDER BY name ASC`)
}

// SearchBooks returns books whose name contains term, case-insensitive.
func (s *Store) SearchBooks(ctx context.Context, term string) ([]catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := bookSelect + ` WHERE name LIKE '%' || ? || '%' ORDER BY name ASC`
	return s.queryBooks(ctx, query, term)
}

// BooksByRent returns books whose daily rate falls in [min, max].
func (s *Store) BooksByRent(ctx context.Context, min, max decimal.Decimal) ([]catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := bookSelect + `
		WHERE CAST(rent_per_day AS REAL) >= CAST(? AS REAL)
		  AND CAST(rent_per_day AS REAL) <= CAST(? AS REAL)
		ORDER BY name ASC`
	return s.queryBooks(ctx, query, min.String(), max.String())
}

// FilterBooks combines category, name term, and rent range filters.
func (s *Store) FilterBooks(ctx context.Context, category, term string, min, max decimal.Decimal) ([]catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := bookSelect + `
		WHERE category = ?
		  AND name LIKE '%' || ? || '%'
		  AND CAST(rent_per_day AS REAL) >= CAST(? AS REAL)
		  AND CAST(rent_per_day AS REAL) <= CAST(? AS REAL)
		ORDER BY name ASC`
	return s.queryBooks(ctx, query, category, term, min.String(), max.String())
}

func (s *Store) queryOneBook(ctx context.Context, query string, args ...any) (*catalog.Book, error) {
	books, err := s.queryBooks(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, catalog.ErrBookNotFound
	}
	return &books[0], nil
}

func (s *Store) queryBooks(ctx context.Context, query string, args ...any) ([]catalog.Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query books", err)
	}
	defer rows.Close()

	var books []catalog.Book
	for rows.Next() {
		var (
			b          catalog.Book
			rentPerDay string
			createdAt  string
			updatedAt  string
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Category, &rentPerDay, &createdAt, &updatedAt); err != nil {
			return nil, storeErr("scan book", err)
		}
		rate, err := decimal.NewFromString(rentPerDay)
		if err != nil {
			return nil, storeErr("scan book rate", err)
		}
		b.RentPerDay = rate
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("query books", err)
	}
	return books, nil
}

// =============================================================================
// USER STORE (catalog.Store interface)
// =============================================================================

// FindUserByID returns the user with the given id.
func (s *Store) FindUserByID(ctx context.Context, id catalog.UserID) (*catalog.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		u         catalog.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, phone, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &createdAt)

	if err == sql.ErrNoRows {
		return nil, catalog.ErrUserNotFound
	}
	if err != nil {
		return nil, storeErr("query user", err)
	}

	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// SaveUser inserts or updates a user.
func (s *Store) SaveUser(ctx context.Context, u catalog.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, name, email, phone, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone
	`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.Phone, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return storeErr("save user", err)
	}
	return nil
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(ctx context.Context, id catalog.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return storeErr("delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.ErrUserNotFound
	}
	return nil
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]catalog.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, phone, created_at FROM users ORDER BY name ASC")
	if err != nil {
		return nil, storeErr("query users", err)
	}
	defer rows.Close()

	var users []catalog.User
	for rows.Next() {
		var (
			u         catalog.User
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &createdAt); err != nil {
			return nil, storeErr("scan user", err)
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("query users", err)
	}
	return users, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"transactions", "books", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return storeErr("reset", err)
		}
	}
	return nil
}

// Helper functions

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", rental.ErrStoreUnavailable, op, err)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isOpenBookConflict(err error) bool {
	// The partial unique index reports as a constraint on transactions.book_id.
	return isUniqueConstraintError(err) && strings.Contains(err.Error(), "transactions.book_id")
}
