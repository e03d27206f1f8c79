/*
handlers.go - HTTP API handlers for the book lending service

PURPOSE:
  Exposes the catalog and the rental ledger via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Books:
    GET    /api/books              List all books
    POST   /api/books              Create book
    GET    /api/books/search       Search books by name term
    GET    /api/books/rent-range   Books by daily rate range
    GET    /api/books/filter       Combined category/term/rate filter
    GET    /api/books/{id}         Get book
    PUT    /api/books/{id}         Update book
    DELETE /api/books/{id}         Delete book

  Users:
    GET    /api/users              List all users
    POST   /api/users              Create user
    GET    /api/users/{id}         Get user
    PUT    /api/users/{id}         Update user
    DELETE /api/users/{id}         Delete user

  Transactions:
    POST   /api/transactions/issue             Issue a book
    POST   /api/transactions/return            Return a book
    GET    /api/transactions/issued/{bookName} Issue count + current holder
    GET    /api/transactions/rent/{bookName}   Total rent generated
    GET    /api/transactions/user/{userId}     Books issued to a user
    GET    /api/transactions/range             Books issued in a date range

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid ranges, book already issued
  - 404: Book/user/transaction not found
  - 409: Book name conflict
  - 500: Store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - rental/ledger.go: The lifecycle logic these handlers delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/lending-ledger/catalog"
	"github.com/warp/lending-ledger/rental"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog catalog.Store
	Ledger  *rental.Ledger
}

// NewHandler creates a handler over a catalog store and a rental
// transaction store. The two are usually the same object (the SQLite
// store implements both interfaces).
func NewHandler(cat catalog.Store, txStore rental.Store) *Handler {
	return &Handler{
		Catalog: cat,
		Ledger:  rental.NewLedger(cat, txStore),
	}
}

// =============================================================================
// TRANSACTION HANDLERS - The lending lifecycle
// =============================================================================

// IssueBook lends a book to a user.
// POST /api/transactions/issue
func (h *Handler) IssueBook(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tx, err := h.Ledger.IssueBook(r.Context(), req.BookName, catalog.UserID(req.UserID), req.IssueDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// ReturnBook closes the open transaction for a (book, user) pair.
// POST /api/transactions/return
func (h *Handler) ReturnBook(w http.ResponseWriter, r *http.Request) {
	var req ReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tx, err := h.Ledger.ReturnBook(r.Context(), req.BookName, catalog.UserID(req.UserID), req.ReturnDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// IssuedSummary reports issue count and current holder for a book.
// GET /api/transactions/issued/{bookName}
func (h *Handler) IssuedSummary(w http.ResponseWriter, r *http.Request) {
	bookName := chi.URLParam(r, "bookName")

	summary, err := h.Ledger.IssuedSummary(r.Context(), bookName)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, IssuedSummaryDTO{
		TotalIssued:       summary.TotalIssued,
		CurrentlyIssuedTo: summary.CurrentlyIssuedTo,
	})
}

// TotalRent reports total rent generated by a book.
// GET /api/transactions/rent/{bookName}
func (h *Handler) TotalRent(w http.ResponseWriter, r *http.Request) {
	bookName := chi.URLParam(r, "bookName")

	total, err := h.Ledger.TotalRent(r.Context(), bookName)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rent, _ := total.Float64()
	writeJSON(w, http.StatusOK, TotalRentDTO{TotalRent: rent})
}

// IssuedToUser lists the borrowing history of a user.
// GET /api/transactions/user/{userId}
func (h *Handler) IssuedToUser(w http.ResponseWriter, r *http.Request) {
	userID := catalog.UserID(chi.URLParam(r, "userId"))

	records, err := h.Ledger.IssuedToUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]LoanDTO, len(records))
	for i, rec := range records {
		dtos[i] = LoanDTO{
			BookName:   rec.BookName,
			IssueDate:  rental.FormatDate(rec.IssueDate),
			ReturnDate: rental.FormatDatePtr(rec.ReturnDate),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// IssuedInRange lists transactions issued between two dates, inclusive.
// GET /api/transactions/range?startDate=...&endDate=...
func (h *Handler) IssuedInRange(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("startDate")
	end := r.URL.Query().Get("endDate")

	records, err := h.Ledger.IssuedInRange(r.Context(), start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RangeLoanDTO, len(records))
	for i, rec := range records {
		dtos[i] = RangeLoanDTO{
			BookName:   rec.BookName,
			IssuedTo:   rec.IssuedTo,
			IssueDate:  rental.FormatDate(rec.IssueDate),
			ReturnDate: rental.FormatDatePtr(rec.ReturnDate),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// BOOK HANDLERS - Catalog management
// =============================================================================

// ListBooks returns all books.
// GET /api/books
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.Catalog.ListBooks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list books", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTOs(books))
}

// GetBook returns a single book.
// GET /api/books/{id}
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id := catalog.BookID(chi.URLParam(r, "id"))

	book, err := h.Catalog.GetBook(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*book))
}

// CreateBook adds a book to the catalog.
// POST /api/books
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req SaveBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.Category == "" || req.RentPerDay <= 0 {
		writeError(w, http.StatusBadRequest, "Name, category, and a positive rentPerDay are required", nil)
		return
	}

	id := req.ID
	if id == "" {
		id = fmt.Sprintf("book-%d", time.Now().UnixNano())
	}

	book := catalog.Book{
		ID:         catalog.BookID(id),
		Name:       req.Name,
		Category:   req.Category,
		RentPerDay: decimal.NewFromFloat(req.RentPerDay),
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Catalog.SaveBook(r.Context(), book); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookDTO(book))
}

// UpdateBook updates an existing book.
// PUT /api/books/{id}
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id := catalog.BookID(chi.URLParam(r, "id"))

	book, err := h.Catalog.GetBook(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req SaveBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Name != "" {
		book.Name = req.Name
	}
	if req.Category != "" {
		book.Category = req.Category
	}
	if req.RentPerDay > 0 {
		book.RentPerDay = decimal.NewFromFloat(req.RentPerDay)
	}

	if err := h.Catalog.SaveBook(r.Context(), *book); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*book))
}

// DeleteBook removes a book from the catalog.
// DELETE /api/books/{id}
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id := catalog.BookID(chi.URLParam(r, "id"))

	if err := h.Catalog.DeleteBook(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Book deleted"})
}

// SearchBooks finds books by a name term.
// GET /api/books/search?term=...
func (h *Handler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	if term == "" {
		writeError(w, http.StatusBadRequest, "Search term is required", nil)
		return
	}

	books, err := h.Catalog.SearchBooks(r.Context(), term)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to search books", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTOs(books))
}

// BooksByRent finds books within a daily-rate range.
// GET /api/books/rent-range?minRent=...&maxRent=...
func (h *Handler) BooksByRent(w http.ResponseWriter, r *http.Request) {
	min, max, ok := parseRentRange(w, r)
	if !ok {
		return
	}

	books, err := h.Catalog.BooksByRent(r.Context(), min, max)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query books", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTOs(books))
}

// FilterBooks combines category, name term, and rate range.
// GET /api/books/filter?category=...&term=...&minRent=...&maxRent=...
func (h *Handler) FilterBooks(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	term := r.URL.Query().Get("term")
	if category == "" || term == "" {
		writeError(w, http.StatusBadRequest, "Category, term, min rent, and max rent are required", nil)
		return
	}
	min, max, ok := parseRentRange(w, r)
	if !ok {
		return
	}

	books, err := h.Catalog.FilterBooks(r.Context(), category, term, min, max)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to filter books", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTOs(books))
}

func parseRentRange(w http.ResponseWriter, r *http.Request) (min, max decimal.Decimal, ok bool) {
	minStr := r.URL.Query().Get("minRent")
	maxStr := r.URL.Query().Get("maxRent")
	if minStr == "" || maxStr == "" {
		writeError(w, http.StatusBadRequest, "Min and max rent are required", nil)
		return min, max, false
	}

	min, err := decimal.NewFromString(minStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid minRent", err)
		return min, max, false
	}
	max, err = decimal.NewFromString(maxStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid maxRent", err)
		return min, max, false
	}
	return min, max, true
}

// =============================================================================
// USER HANDLERS - Catalog management
// =============================================================================

// ListUsers returns all users.
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Catalog.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUser returns a single user.
// GET /api/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := catalog.UserID(chi.URLParam(r, "id"))

	user, err := h.Catalog.FindUserByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// CreateUser registers a user.
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Name and email are required", nil)
		return
	}

	id := req.ID
	if id == "" {
		id = fmt.Sprintf("user-%d", time.Now().UnixNano())
	}

	user := catalog.User{
		ID:        catalog.UserID(id),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Catalog.SaveUser(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// UpdateUser updates an existing user.
// PUT /api/users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := catalog.UserID(chi.URLParam(r, "id"))

	user, err := h.Catalog.FindUserByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}

	if err := h.Catalog.SaveUser(r.Context(), *user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// DeleteUser removes a user.
// DELETE /api/users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := catalog.UserID(chi.URLParam(r, "id"))

	if err := h.Catalog.DeleteUser(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error kinds to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrDuplicateBookName):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case rental.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case rental.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
