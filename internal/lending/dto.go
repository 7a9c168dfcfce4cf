package lending

import (
	"time"

	"github.com/dmarrero/shelfstack-backend/pkg/db/models"
	"github.com/dmarrero/shelfstack-backend/pkg/types"
)

// CheckoutInput carries the fields for opening a borrowing. BorrowDate is
// optional and defaults to today.
type CheckoutInput struct {
	MemberID   int64
	BookID     int64
	BorrowDate *time.Time
}

// UpdateBorrowingInput carries the full-replace payload for a borrowing.
// ReturnDate distinguishes "sent as null" (reopen the loan) from absent.
type UpdateBorrowingInput struct {
	MemberID   int64
	BookID     int64
	BorrowDate time.Time
	ReturnDate types.NullableDate
}

// BorrowingDTO is the borrowing shape returned to the gateway. Dates are
// calendar dates, not timestamps.
type BorrowingDTO struct {
	ID         int64     `json:"borrowing_id"`
	MemberID   int64     `json:"member_id"`
	BookID     int64     `json:"book_id"`
	BorrowDate string    `json:"borrow_date"`
	ReturnDate *string   `json:"return_date"`
	Open       bool      `json:"open"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AvailabilityDTO reports the derived shelf state of a book copy.
type AvailabilityDTO struct {
	BookID      int64   `json:"book_id"`
	Available   bool    `json:"available"`
	BorrowingID *int64  `json:"borrowing_id,omitempty"`
	MemberID    *int64  `json:"member_id,omitempty"`
	BorrowDate  *string `json:"borrow_date,omitempty"`
}

func toDTO(borrowing *models.Borrowing) *BorrowingDTO {
	dto := &BorrowingDTO{
		ID:         borrowing.ID,
		MemberID:   borrowing.MemberID,
		BookID:     borrowing.BookID,
		BorrowDate: borrowing.BorrowDate.Format(types.DateLayout),
		Open:       borrowing.Open(),
		CreatedAt:  borrowing.CreatedAt,
		UpdatedAt:  borrowing.UpdatedAt,
	}
	if borrowing.ReturnDate != nil {
		formatted := borrowing.ReturnDate.Format(types.DateLayout)
		dto.ReturnDate = &formatted
	}
	return dto
}
