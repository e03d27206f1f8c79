// Package store provides an in-memory implementation of the catalog and
// rental store interfaces, for testing and development.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lending-ledger/catalog"
	"github.com/warp/lending-ledger/rental"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	books        map[catalog.BookID]catalog.Book
	booksByName  map[string]catalog.BookID
	users        map[catalog.UserID]catalog.User
	transactions []rental.Transaction // ordered by issue date
}

func NewMemory() *Memory {
	return &Memory{
		books:       make(map[catalog.BookID]catalog.Book),
		booksByName: make(map[string]catalog.BookID),
		users:       make(map[catalog.UserID]catalog.User),
	}
}

// =============================================================================
// RENTAL STORE (rental.Store interface)
// =============================================================================

// Insert adds an open transaction. The open-book check and the write happen
// under one lock, so concurrent inserts for the same book cannot both pass.
func (m *Memory) Insert(_ context.Context, tx rental.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.transactions {
		if m.transactions[i].BookID == tx.BookID && m.transactions[i].Open() {
			return rental.ErrAlreadyIssued
		}
	}

	// Keep the slice ordered by issue date
	i := sort.Search(len(m.transactions), func(i int) bool {
		return m.transactions[i].IssueDate.After(tx.IssueDate)
	})
	m.transactions = append(m.transactions, rental.Transaction{})
	copy(m.transactions[i+1:], m.transactions[i:])
	m.transactions[i] = tx
	return nil
}

// CloseTransaction transitions a transaction open -> closed. A transaction
// that is already closed is not touched again.
func (m *Memory) CloseTransaction(_ context.Context, id rental.TransactionID, returnDate time.Time, rent decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.transactions {
		if m.transactions[i].ID != id || !m.transactions[i].Open() {
			continue
		}
		ret := returnDate
		amount := rent
		m.transactions[i].ReturnDate = &ret
		m.transactions[i].Rent = &amount
		m.transactions[i].UpdatedAt = time.Now().UTC()
		return nil
	}
	return rental.ErrTransactionNotFound
}

func (m *Memory) FindOpen(_ context.Context, bookID catalog.BookID) (*rental.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.transactions {
		if m.transactions[i].BookID == bookID && m.transactions[i].Open() {
			tx := m.transactions[i]
			return &tx, nil
		}
	}
	return nil, nil
}

func (m *Memory) FindOpenByUser(_ context.Context, bookID catalog.BookID, userID catalog.UserID) (*rental.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.transactions {
		if m.transactions[i].BookID == bookID && m.transactions[i].UserID == userID && m.transactions[i].Open() {
			tx := m.transactions[i]
			return &tx, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListByBook(_ context.Context, bookID catalog.BookID) ([]rental.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []rental.Transaction
	for _, tx := range m.transactions {
		if tx.BookID == bookID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) ListByUser(_ context.Context, userID catalog.UserID) ([]rental.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []rental.Transaction
	for _, tx := range m.transactions {
		if tx.UserID == userID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) ListByIssueRange(_ context.Context, from, to time.Time) ([]rental.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []rental.Transaction
	for _, tx := range m.transactions {
		if !tx.IssueDate.Before(from) && !tx.IssueDate.After(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}

// =============================================================================
// CATALOG STORE (catalog.Store interface)
// =============================================================================

func (m *Memory) FindBookByName(_ context.Context, name string) (*catalog.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.booksByName[name]
	if !ok {
		return nil, catalog.ErrBookNotFound
	}
	b := m.books[id]
	return &b, nil
}

func (m *Memory) GetBook(_ context.Context, id catalog.BookID) (*catalog.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.books[id]
	if !ok {
		return nil, catalog.ErrBookNotFound
	}
	return &b, nil
}

func (m *Memory) SaveBook(_ context.Context, b catalog.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.booksByName[b.Name]; ok && existing != b.ID {
		return catalog.ErrDuplicateBookName
	}
	if prev, ok := m.books[b.ID]; ok && prev.Name != b.Name {
		delete(m.booksByName, prev.Name)
	}
	m.books[b.ID] = b
	m.booksByName[b.Name] = b.ID
	return nil
}

func (m *Memory) DeleteBook(_ context.Context, id catalog.BookID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[id]
	if !ok {
		return catalog.ErrBookNotFound
	}
	delete(m.books, id)
	delete(m.booksByName, b.Name)
	return nil
}

func (m *Memory) ListBooks(_ context.Context) ([]catalog.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectBooks(func(catalog.Book) bool { return true }), nil
}

func (m *Memory) SearchBooks(_ context.Context, term string) ([]catalog.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lower := strings.ToLower(term)
	return m.collectBooks(func(b catalog.Book) bool {
		return strings.Contains(strings.ToLower(b.Name), lower)
	}), nil
}

func (m *Memory) BooksByRent(_ context.Context, min, max decimal.Decimal) ([]catalog.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collectBooks(func(b catalog.Book) bool {
		return b.RentPerDay.GreaterThanOrEqual(min) && b.RentPerDay.LessThanOrEqual(max)
	}), nil
}

func (m *Memory) FilterBooks(_ context.Context, category, term string, min, max decimal.Decimal) ([]catalog.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lower := strings.ToLower(term)
	return m.collectBooks(func(b catalog.Book) bool {
		return b.Category == category &&
			strings.Contains(strings.ToLower(b.Name), lower) &&
			b.RentPerDay.GreaterThanOrEqual(min) && b.RentPerDay.LessThanOrEqual(max)
	}), nil
}

// collectBooks returns matching books sorted by name. Callers hold the lock.
func (m *Memory) collectBooks(match func(catalog.Book) bool) []catalog.Book {
	var result []catalog.Book
	for _, b := range m.books {
		if match(b) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (m *Memory) FindUserByID(_ context.Context, id catalog.UserID) (*catalog.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, catalog.ErrUserNotFound
	}
	return &u, nil
}

func (m *Memory) SaveUser(_ context.Context, u catalog.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id catalog.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return catalog.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *Memory) ListUsers(_ context.Context) ([]catalog.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]catalog.User, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
