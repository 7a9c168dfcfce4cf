package controllers

import (
	"net/http"
	"time"

	"github.com/dmarrero/shelfstack-backend/api/responses"
	"github.com/dmarrero/shelfstack-backend/api/validators"
	"github.com/dmarrero/shelfstack-backend/internal/lending"
	pkgerrors "github.com/dmarrero/shelfstack-backend/pkg/errors"
	"github.com/dmarrero/shelfstack-backend/pkg/logger"
	"github.com/dmarrero/shelfstack-backend/pkg/types"
)

type checkoutPayload struct {
	MemberID   int64   `json:"member_id" validate:"required,gt=0"`
	BookID     int64   `json:"book_id" validate:"required,gt=0"`
	BorrowDate *string `json:"borrow_date" validate:"omitempty,datetime=2006-01-02"`
}

type returnPayload struct {
	ReturnDate *string `json:"return_date" validate:"omitempty,datetime=2006-01-02"`
}

type updateBorrowingPayload struct {
	MemberID   int64              `json:"member_id" validate:"required,gt=0"`
	BookID     int64              `json:"book_id" validate:"required,gt=0"`
	BorrowDate string             `json:"borrow_date" validate:"required,datetime=2006-01-02"`
	ReturnDate types.NullableDate `json:"return_date"`
}

func parseDate(value *string) *time.Time {
	if value == nil {
		return nil
	}
	parsed, err := time.ParseInLocation(types.DateLayout, *value, time.UTC)
	if err != nil {
		return nil
	}
	return &parsed
}

// CreateBorrowing checks a book out to a member.
func CreateBorrowing(svc lending.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lending service unavailable"))
			return
		}

		var payload checkoutPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		dto, err := svc.Checkout(ctx, lending.CheckoutInput{
			MemberID:   payload.MemberID,
			BookID:     payload.BookID,
			BorrowDate: parseDate(payload.BorrowDate),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// ReturnBorrowing closes an open loan. The body is optional; without one the
// return date defaults to today.
func ReturnBorrowing(svc lending.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lending service unavailable"))
			return
		}

		id, err := validators.PathID(r, "borrowingId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload returnPayload
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		dto, err := svc.Return(ctx, id, parseDate(payload.ReturnDate))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func GetBorrowing(svc lending.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lending service unavailable"))
			return
		}

		id, err := validators.PathID(r, "borrowingId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		dto, err := svc.GetByID(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// UpdateBorrowing replaces the whole borrowing row. The lending rules are
// re-checked against the replacement state.
func UpdateBorrowing(svc lending.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lending service unavailable"))
			return
		}

		id, err := validators.PathID(r, "borrowingId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload updateBorrowingPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		borrowDate, err := time.ParseInLocation(types.DateLayout, payload.BorrowDate, time.UTC)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid borrow_date"))
			return
		}

		dto, err := svc.Update(ctx, id, lending.UpdateBorrowingInput{
			MemberID:   payload.MemberID,
			BookID:     payload.BookID,
			BorrowDate: borrowDate,
			ReturnDate: payload.ReturnDate,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func DeleteBorrowing(svc lending.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lending service unavailable"))
			return
		}

		id, err := validators.PathID(r, "borrowingId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Delete(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// BookAvailability reports whether a book is on the shelf, derived from its
// open borrowing.
func BookAvailability(svc lending.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lending service unavailable"))
			return
		}

		id, err := validators.PathID(r, "bookId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		dto, err := svc.Availability(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
