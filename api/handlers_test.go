/*
handlers_test.go - Unit tests for API handlers

Tests for:
- The issue/return lifecycle over HTTP
- Error status mapping (400/404/409)
- Reports and catalog CRUD
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/lending-ledger/catalog"
	"github.com/warp/lending-ledger/rental"
	"github.com/warp/lending-ledger/rental/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	srv := httptest.NewServer(NewRouter(NewHandler(mem, mem)))
	t.Cleanup(srv.Close)
	return srv, mem
}

func seedCatalog(t *testing.T, mem *store.Memory) {
	t.Helper()
	ctx := context.Background()
	if err := mem.SaveBook(ctx, catalog.Book{
		ID: "book-1", Name: "Dune", Category: "scifi", RentPerDay: decimal.NewFromInt(10),
	}); err != nil {
		t.Fatalf("Failed to seed book: %v", err)
	}
	if err := mem.SaveUser(ctx, catalog.User{
		ID: "user-1", Name: "Paul", Email: "paul@example.com",
	}); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestIssueAndReturn_Lifecycle(t *testing.T) {
	// GIVEN: A seeded catalog
	srv, mem := newTestServer(t)
	seedCatalog(t, mem)

	// WHEN: Issuing the book
	resp := postJSON(t, srv.URL+"/api/transactions/issue", IssueRequest{
		BookName: "Dune", UserID: "user-1", IssueDate: "2025-06-01",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var issued TransactionDTO
	decodeBody(t, resp, &issued)
	if issued.Book.Name != "Dune" || issued.User.Name != "Paul" {
		t.Errorf("Issue response not enriched: %+v", issued)
	}
	if issued.Rent != nil {
		t.Errorf("Rent should be absent on issue, got %v", *issued.Rent)
	}

	// WHEN: Returning three days later
	resp = postJSON(t, srv.URL+"/api/transactions/return", ReturnRequest{
		BookName: "Dune", UserID: "user-1", ReturnDate: "2025-06-04",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var returned TransactionDTO
	decodeBody(t, resp, &returned)

	// THEN: Rent is 3 days * 10/day
	if returned.Rent == nil || *returned.Rent != 30 {
		t.Errorf("Expected rent 30, got %v", returned.Rent)
	}
	if returned.ReturnDate == nil || *returned.ReturnDate != "2025-06-04" {
		t.Errorf("Expected return date 2025-06-04, got %v", returned.ReturnDate)
	}
}

func TestIssue_AlreadyIssued_Returns400(t *testing.T) {
	srv, mem := newTestServer(t)
	seedCatalog(t, mem)
	ctx := context.Background()
	if err := mem.SaveUser(ctx, catalog.User{ID: "user-2", Name: "Leto", Email: "leto@example.com"}); err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, srv.URL+"/api/transactions/issue", IssueRequest{
		BookName: "Dune", UserID: "user-1", IssueDate: "2025-06-01",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/transactions/issue", IssueRequest{
		BookName: "Dune", UserID: "user-2", IssueDate: "2025-06-02",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for double issue, got %d", resp.StatusCode)
	}
}

func TestIssue_UnknownBook_Returns404(t *testing.T) {
	srv, mem := newTestServer(t)
	seedCatalog(t, mem)

	resp := postJSON(t, srv.URL+"/api/transactions/issue", IssueRequest{
		BookName: "Hyperion", UserID: "user-1", IssueDate: "2025-06-01",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown book, got %d", resp.StatusCode)
	}
}

func TestReturn_NotIssued_Returns404(t *testing.T) {
	srv, mem := newTestServer(t)
	seedCatalog(t, mem)

	resp := postJSON(t, srv.URL+"/api/transactions/return", ReturnRequest{
		BookName: "Dune", UserID: "user-1", ReturnDate: "2025-06-04",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for return without open transaction, got %d", resp.StatusCode)
	}
}

func TestIssuedSummary(t *testing.T) {
	srv, mem := newTestServer(t)
	seedCatalog(t, mem)

	resp := postJSON(t, srv.URL+"/api/transactions/issue", IssueRequest{
		BookName: "Dune", UserID: "user-1", IssueDate: "2025-06-01",
	})
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/transactions/issued/Dune")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var summary IssuedSummaryDTO
	decodeBody(t, resp, &summary)
	if summary.TotalIssued != 1 {
		t.Errorf("Expected totalIssued 1, got %d", summary.TotalIssued)
	}
	if summary.CurrentlyIssuedTo != "Paul" {
		t.Errorf("Expected holder Paul, got %q", summary.CurrentlyIssuedTo)
	}
}

func TestIssuedSummary_NeverIssued(t *testing.T) {
	srv, mem := newTestServer(t)
	seedCatalog(t, mem)

	resp, err := http.Get(srv.URL + "/api/transactions/issued/Dune")
	if err != nil {
		t.Fatal(err)
	}
	var summary IssuedSummaryDTO
	decodeBody(t, resp, &summary)
	if summary.CurrentlyIssuedTo != rental.NotIssued {
		t.Errorf("Expected %q, got %q", rental.NotIssued, summary.CurrentlyIssuedTo)
	}
}

func TestTotalRent(t *testing.T) {
	srv, mem := newTestServer(t)
	seedCatalog(t, mem)

	resp := postJSON(t, srv.URL+"/api/transactions/issue", IssueRequest{
		BookName: "Dune", UserID: "user-1", IssueDate: "2025-06-01",
	})
	resp.Body.Close()
	resp = postJSON(t, srv.URL+"/api/transactions/return", ReturnRequest{
		BookName: "Dune", UserID: "user-1", ReturnDate: "2025-06-04",
	})
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/transactions/rent/Dune")
	if err != nil {
		t.Fatal(err)
	}
	var total TotalRentDTO
	decodeBody(t, resp, &total)
	if total.TotalRent != 30 {
		t.Errorf("Expected totalRent 30, got %v", total.TotalRent)
	}
}

func TestIssuedInRange_MissingParams_Returns400(t *testing.T) {
	srv, mem := newTestServer(t)
	seedCatalog(t, mem)

	resp, err := http.Get(srv.URL + "/api/transactions/range?startDate=2025-06-01")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing endDate, got %d", resp.StatusCode)
	}
}

func TestIssuedInRange(t *testing.T) {
	srv, mem := newTestServer(t)
	seedCatalog(t, mem)

	resp := postJSON(t, srv.URL+"/api/transactions/issue", IssueRequest{
		BookName: "Dune", UserID: "user-1", IssueDate: "2025-06-05",
	})
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/transactions/range?startDate=2025-06-01&endDate=2025-06-30")
	if err != nil {
		t.Fatal(err)
	}
	var records []RangeLoanDTO
	decodeBody(t, resp, &records)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].BookName != "Dune" || records[0].IssuedTo != "Paul" {
		t.Errorf("Unexpected record: %+v", records[0])
	}
}

func TestBookCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	// Create
	resp := postJSON(t, srv.URL+"/api/books", SaveBookRequest{
		Name: "Dune", Category: "scifi", RentPerDay: 10,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var created BookDTO
	decodeBody(t, resp, &created)
	if created.ID == "" {
		t.Error("Expected a generated book id")
	}

	// Duplicate name
	resp = postJSON(t, srv.URL+"/api/books", SaveBookRequest{
		Name: "Dune", Category: "scifi", RentPerDay: 5,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate name, got %d", resp.StatusCode)
	}

	// Missing fields
	resp = postJSON(t, srv.URL+"/api/books", SaveBookRequest{Name: "Nameless"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing fields, got %d", resp.StatusCode)
	}

	// Get
	resp, err := http.Get(srv.URL + "/api/books/" + created.ID)
	if err != nil {
		t.Fatal(err)
	}
	var fetched BookDTO
	decodeBody(t, resp, &fetched)
	if fetched.Name != "Dune" || fetched.RentPerDay != 10 {
		t.Errorf("Unexpected book: %+v", fetched)
	}

	// Get unknown
	resp, err = http.Get(srv.URL + "/api/books/book-missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown book, got %d", resp.StatusCode)
	}
}

func TestUserCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/users", SaveUserRequest{
		Name: "Paul", Email: "paul@example.com",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var created UserDTO
	decodeBody(t, resp, &created)
	if created.ID == "" {
		t.Error("Expected a generated user id")
	}

	resp = postJSON(t, srv.URL+"/api/users", SaveUserRequest{Name: "No Email"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing email, got %d", resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/api/users/" + created.ID)
	if err != nil {
		t.Fatal(err)
	}
	var fetched UserDTO
	decodeBody(t, resp, &fetched)
	if fetched.Name != "Paul" {
		t.Errorf("Unexpected user: %+v", fetched)
	}
}
