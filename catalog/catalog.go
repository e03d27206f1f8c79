/*
Package catalog holds the library's Book and User records.

PURPOSE:
  The catalog is the identity layer the rental ledger builds on. Books and
  users are created and managed here; the ledger only references them by
  identity. A book's name doubles as a secondary key: issue and return
  requests address books by name, so name uniqueness carries the same
  guarantee as the primary key.

OWNERSHIP:
  Catalog records outlive any rental transaction that references them.
  The ledger never mutates a book or user; it reads rates and names at the
  moment it needs them.

SEE ALSO:
  - rental/ledger.go: The consumer of FindBookByName / FindUserByID
  - store/sqlite/sqlite.go: Production implementation of Store
  - rental/store/memory.go: In-memory implementation for tests
*/
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BookID string
type UserID string

// =============================================================================
// RECORDS
// =============================================================================

// Book is a single lendable unit. One name = one copy; there is no
// multi-copy inventory.
type Book struct {
	ID         BookID
	Name       string // unique within the catalog, used for lookups
	Category   string
	RentPerDay decimal.Decimal // positive daily rate
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// User is a registered borrower.
type User struct {
	ID        UserID
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBookNotFound is returned when no book matches the given name or id.
	ErrBookNotFound = errors.New("book not found")

	// ErrUserNotFound is returned when no user matches the given id.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateBookName is returned when saving a book whose name is
	// already taken by a different book. Names are a secondary identity.
	ErrDuplicateBookName = errors.New("book name already exists")
)

// =============================================================================
// STORE - Catalog persistence contract
// =============================================================================

// Store persists books and users. FindBookByName and FindUserByID are the
// two lookups the rental ledger depends on; the rest serve catalog
// management endpoints.
type Store interface {
	// FindBookByName returns the book with the given name.
	// Returns ErrBookNotFound if no such book exists.
	FindBookByName(ctx context.Context, name string) (*Book, error)

	// GetBook returns the book with the given id, or ErrBookNotFound.
	GetBook(ctx context.Context, id BookID) (*Book, error)

	// SaveBook inserts or updates a book. Returns ErrDuplicateBookName if
	// another book already holds the name.
	SaveBook(ctx context.Context, b Book) error

	// DeleteBook removes a book. Returns ErrBookNotFound if absent.
	DeleteBook(ctx context.Context, id BookID) error

	// ListBooks returns all books ordered by name.
	ListBooks(ctx context.Context) ([]Book, error)

	// SearchBooks returns books whose name contains term, case-insensitive.
	SearchBooks(ctx context.Context, term string) ([]Book, error)

	// BooksByRent returns books with min <= RentPerDay <= max.
	BooksByRent(ctx context.Context, min, max decimal.Decimal) ([]Book, error)

	// FilterBooks combines category, name term, and rent range filters.
	FilterBooks(ctx context.Context, category, term string, min, max decimal.Decimal) ([]Book, error)

	// FindUserByID returns the user with the given id, or ErrUserNotFound.
	FindUserByID(ctx context.Context, id UserID) (*User, error)

	// SaveUser inserts or updates a user.
	SaveUser(ctx context.Context, u User) error

	// DeleteUser removes a user. Returns ErrUserNotFound if absent.
	DeleteUser(ctx context.Context, id UserID) error

	// ListUsers returns all users ordered by name.
	ListUsers(ctx context.Context) ([]User, error)
}
