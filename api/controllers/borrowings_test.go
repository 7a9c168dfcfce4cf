package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmarrero/shelfstack-backend/internal/lending"
	pkgerrors "github.com/dmarrero/shelfstack-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
)

type stubLendingService struct {
	checkoutFn     func(ctx context.Context, input lending.CheckoutInput) (*lending.BorrowingDTO, error)
	returnFn       func(ctx context.Context, id int64, returnDate *time.Time) (*lending.BorrowingDTO, error)
	availabilityFn func(ctx context.Context, bookID int64) (*lending.AvailabilityDTO, error)
}

func (s stubLendingService) Checkout(ctx context.Context, input lending.CheckoutInput) (*lending.BorrowingDTO, error) {
	return s.checkoutFn(ctx, input)
}

func (s stubLendingService) Return(ctx context.Context, id int64, returnDate *time.Time) (*lending.BorrowingDTO, error) {
	return s.returnFn(ctx, id, returnDate)
}

func (s stubLendingService) GetByID(ctx context.Context, id int64) (*lending.BorrowingDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "borrowing not found")
}

func (s stubLendingService) Update(ctx context.Context, id int64, input lending.UpdateBorrowingInput) (*lending.BorrowingDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "borrowing not found")
}

func (s stubLendingService) Delete(ctx context.Context, id int64) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "borrowing not found")
}

func (s stubLendingService) Availability(ctx context.Context, bookID int64) (*lending.AvailabilityDTO, error) {
	return s.availabilityFn(ctx, bookID)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCreateBorrowingSuccess(t *testing.T) {
	svc := stubLendingService{
		checkoutFn: func(ctx context.Context, input lending.CheckoutInput) (*lending.BorrowingDTO, error) {
			if input.MemberID != 1 || input.BookID != 2 {
				t.Fatalf("unexpected input %+v", input)
			}
			return &lending.BorrowingDTO{ID: 10, MemberID: 1, BookID: 2, BorrowDate: "2024-03-15", Open: true}, nil
		},
	}
	handler := CreateBorrowing(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/borrowings", strings.NewReader(`{"member_id":1,"book_id":2}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}

	var envelope struct {
		Data lending.BorrowingDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != 10 {
		t.Fatalf("expected borrowing id 10 got %d", envelope.Data.ID)
	}
}

func TestCreateBorrowingValidatesPayload(t *testing.T) {
	handler := CreateBorrowing(stubLendingService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/borrowings", strings.NewReader(`{"member_id":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestCreateBorrowingUnavailableBook(t *testing.T) {
	svc := stubLendingService{
		checkoutFn: func(ctx context.Context, input lending.CheckoutInput) (*lending.BorrowingDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "book is already on loan")
		},
	}
	handler := CreateBorrowing(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/borrowings", strings.NewReader(`{"member_id":1,"book_id":2}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeUnavailable) {
		t.Fatalf("expected code %s got %s", pkgerrors.CodeUnavailable, envelope.Error.Code)
	}
}

func TestReturnBorrowingWithoutBody(t *testing.T) {
	var gotDate *time.Time
	svc := stubLendingService{
		returnFn: func(ctx context.Context, id int64, returnDate *time.Time) (*lending.BorrowingDTO, error) {
			gotDate = returnDate
			closed := "2024-03-15"
			return &lending.BorrowingDTO{ID: id, ReturnDate: &closed}, nil
		},
	}
	handler := ReturnBorrowing(svc, nil)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/borrowings/5/return", nil), "borrowingId", "5")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if gotDate != nil {
		t.Fatalf("expected default return date, got %v", gotDate)
	}
}

func TestReturnBorrowingRejectsBadID(t *testing.T) {
	handler := ReturnBorrowing(stubLendingService{}, nil)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/borrowings/abc/return", nil), "borrowingId", "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestBookAvailability(t *testing.T) {
	svc := stubLendingService{
		availabilityFn: func(ctx context.Context, bookID int64) (*lending.AvailabilityDTO, error) {
			return &lending.AvailabilityDTO{BookID: bookID, Available: true}, nil
		},
	}
	handler := BookAvailability(svc, nil)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/books/7/availability", nil), "bookId", "7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var envelope struct {
		Data lending.AvailabilityDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Available {
		t.Fatal("expected book reported available")
	}
}
