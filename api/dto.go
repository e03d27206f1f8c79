/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FIELD NAMES:
  The wire contract uses camelCase (bookName, rentPerDay, totalIssued)
  to match the request/response shapes the service has always spoken.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/lending-ledger/catalog"
	"github.com/warp/lending-ledger/rental"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// BookDTO represents a catalog book in API responses.
type BookDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	RentPerDay float64 `json:"rentPerDay"`
	CreatedAt  string  `json:"createdAt,omitempty"`
}

// SaveBookRequest is the request to create or update a book.
type SaveBookRequest struct {
	ID         string  `json:"id,omitempty"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	RentPerDay float64 `json:"rentPerDay"`
}

// UserDTO represents a registered user in API responses.
type UserDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// SaveUserRequest is the request to create or update a user.
type SaveUserRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// IssueRequest is the request to issue a book.
type IssueRequest struct {
	BookName  string `json:"bookName"`
	UserID    string `json:"userId"`
	IssueDate string `json:"issueDate"`
}

// ReturnRequest is the request to return a book.
type ReturnRequest struct {
	BookName   string `json:"bookName"`
	UserID     string `json:"userId"`
	ReturnDate string `json:"returnDate"`
}

// TransactionDTO represents a rental transaction, enriched with the book
// and user it references.
type TransactionDTO struct {
	ID         string             `json:"id"`
	Book       TransactionBookDTO `json:"book"`
	User       TransactionUserDTO `json:"user"`
	IssueDate  string             `json:"issueDate"`
	ReturnDate *string            `json:"returnDate,omitempty"`
	Rent       *float64           `json:"rent,omitempty"`
}

// TransactionBookDTO carries book details inside a transaction response.
// RentPerDay is present on return responses only.
type TransactionBookDTO struct {
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	RentPerDay *float64 `json:"rentPerDay,omitempty"`
}

// TransactionUserDTO carries user details inside a transaction response.
type TransactionUserDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// IssuedSummaryDTO is the issued-by-book report.
type IssuedSummaryDTO struct {
	TotalIssued       int    `json:"totalIssued"`
	CurrentlyIssuedTo string `json:"currentlyIssuedTo"`
}

// TotalRentDTO is the total-rent report.
type TotalRentDTO struct {
	TotalRent float64 `json:"totalRent"`
}

// LoanDTO is one entry in a user's borrowing history.
type LoanDTO struct {
	BookName   string  `json:"bookName"`
	IssueDate  string  `json:"issueDate"`
	ReturnDate *string `json:"returnDate,omitempty"`
}

// RangeLoanDTO is one entry in the issued-in-range report.
type RangeLoanDTO struct {
	BookName   string  `json:"bookName"`
	IssuedTo   string  `json:"issuedTo"`
	IssueDate  string  `json:"issueDate"`
	ReturnDate *string `json:"returnDate,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBookDTO(b catalog.Book) BookDTO {
	rate, _ := b.RentPerDay.Float64()
	return BookDTO{
		ID:         string(b.ID),
		Name:       b.Name,
		Category:   b.Category,
		RentPerDay: rate,
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
	}
}

func toBookDTOs(books []catalog.Book) []BookDTO {
	dtos := make([]BookDTO, len(books))
	for i, b := range books {
		dtos[i] = toBookDTO(b)
	}
	return dtos
}

func toUserDTO(u catalog.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx *rental.IssuedTransaction) TransactionDTO {
	dto := TransactionDTO{
		ID: string(tx.ID),
		Book: TransactionBookDTO{
			Name:     tx.Book.Name,
			Category: tx.Book.Category,
		},
		User: TransactionUserDTO{
			Name:  tx.User.Name,
			Email: tx.User.Email,
		},
		IssueDate:  rental.FormatDate(tx.IssueDate),
		ReturnDate: rental.FormatDatePtr(tx.ReturnDate),
	}
	if tx.Book.RentPerDay != nil {
		rate, _ := tx.Book.RentPerDay.Float64()
		dto.Book.RentPerDay = &rate
	}
	if tx.Rent != nil {
		rent, _ := tx.Rent.Float64()
		dto.Rent = &rent
	}
	return dto
}
