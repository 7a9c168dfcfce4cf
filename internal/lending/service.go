package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmarrero/shelfstack-backend/internal/books"
	"github.com/dmarrero/shelfstack-backend/internal/members"
	"github.com/dmarrero/shelfstack-backend/pkg/config"
	"github.com/dmarrero/shelfstack-backend/pkg/db"
	"github.com/dmarrero/shelfstack-backend/pkg/db/models"
	pkgerrors "github.com/dmarrero/shelfstack-backend/pkg/errors"
	"github.com/dmarrero/shelfstack-backend/pkg/types"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the lending operations. Availability is never stored; it is
// derived from the presence of an open borrowing.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*BorrowingDTO, error)
	Return(ctx context.Context, id int64, returnDate *time.Time) (*BorrowingDTO, error)
	GetByID(ctx context.Context, id int64) (*BorrowingDTO, error)
	Update(ctx context.Context, id int64, input UpdateBorrowingInput) (*BorrowingDTO, error)
	Delete(ctx context.Context, id int64) error
	Availability(ctx context.Context, bookID int64) (*AvailabilityDTO, error)
}

type service struct {
	repo    Repository
	members members.Repository
	books   books.Repository
	tx      txRunner
	policy  config.LendingConfig
	now     func() time.Time
}

// NewService builds a lending service with the required dependencies.
func NewService(repo Repository, memberRepo members.Repository, bookRepo books.Repository, tx txRunner, policy config.LendingConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("borrowings repository required")
	}
	if memberRepo == nil {
		return nil, fmt.Errorf("members repository required")
	}
	if bookRepo == nil {
		return nil, fmt.Errorf("books repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    repo,
		members: memberRepo,
		books:   bookRepo,
		tx:      tx,
		policy:  policy,
		now:     time.Now,
	}, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *service) today() time.Time {
	return dateOnly(s.now())
}

func (s *service) checkNotFuture(field string, date time.Time) error {
	if s.policy.AllowFutureDates {
		return nil
	}
	if date.After(s.today()) {
		return pkgerrors.New(pkgerrors.CodeValidation, field+" cannot be in the future").
			WithDetails(map[string]string{field: date.Format(types.DateLayout)})
	}
	return nil
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*BorrowingDTO, error) {
	if input.MemberID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member_id is required")
	}
	if input.BookID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book_id is required")
	}

	borrowDate := s.today()
	if input.BorrowDate != nil {
		borrowDate = dateOnly(*input.BorrowDate)
	}
	if err := s.checkNotFuture("borrow_date", borrowDate); err != nil {
		return nil, err
	}

	var dto *BorrowingDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.members.WithTx(tx).FindByID(ctx, input.MemberID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
		}
		if _, err := s.books.WithTx(tx).FindByID(ctx, input.BookID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}

		repo := s.repo.WithTx(tx)
		open, err := repo.FindOpenByBook(ctx, input.BookID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check availability")
		}
		if open != nil {
			return pkgerrors.New(pkgerrors.CodeUnavailable, "book is already on loan").
				WithDetails(map[string]int64{"borrowing_id": open.ID})
		}

		if s.policy.MaxOpenLoans > 0 {
			openLoans, err := repo.CountOpenByMember(ctx, input.MemberID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open loans")
			}
			if openLoans >= int64(s.policy.MaxOpenLoans) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "member reached the open loan limit").
					WithDetails(map[string]int{"max_open_loans": s.policy.MaxOpenLoans})
			}
		}

		borrowing, err := repo.Create(ctx, &models.Borrowing{
			MemberID:   input.MemberID,
			BookID:     input.BookID,
			BorrowDate: borrowDate,
		})
		if err != nil {
			if db.IsUniqueViolation(err, db.ConstraintOpenBook) {
				return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "book is already on loan")
			}
			if db.IsForeignKeyViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "member or book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert borrowing")
		}

		dto = toDTO(borrowing)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) Return(ctx context.Context, id int64, returnDate *time.Time) (*BorrowingDTO, error) {
	returned := s.today()
	if returnDate != nil {
		returned = dateOnly(*returnDate)
	}
	if err := s.checkNotFuture("return_date", returned); err != nil {
		return nil, err
	}

	var dto *BorrowingDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		borrowing, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "borrowing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load borrowing")
		}
		if !borrowing.Open() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "borrowing already returned").
				WithDetails(map[string]string{"return_date": borrowing.ReturnDate.Format(types.DateLayout)})
		}
		if returned.Before(dateOnly(borrowing.BorrowDate)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "return_date cannot precede borrow_date")
		}

		borrowing.ReturnDate = &returned
		if err := repo.Save(ctx, borrowing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close borrowing")
		}

		dto = toDTO(borrowing)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*BorrowingDTO, error) {
	borrowing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "borrowing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load borrowing")
	}
	return toDTO(borrowing), nil
}

// Update replaces the whole borrowing row and re-runs every checkout-time
// check against the new state, including the one open loan per book rule.
func (s *service) Update(ctx context.Context, id int64, input UpdateBorrowingInput) (*BorrowingDTO, error) {
	if input.MemberID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member_id is required")
	}
	if input.BookID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book_id is required")
	}
	if input.BorrowDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "borrow_date is required")
	}

	borrowDate := dateOnly(input.BorrowDate)
	if err := s.checkNotFuture("borrow_date", borrowDate); err != nil {
		return nil, err
	}

	var returned *time.Time
	if input.ReturnDate.Valid && input.ReturnDate.Value != nil {
		date := dateOnly(*input.ReturnDate.Value)
		if err := s.checkNotFuture("return_date", date); err != nil {
			return nil, err
		}
		if date.Before(borrowDate) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "return_date cannot precede borrow_date")
		}
		returned = &date
	}

	var dto *BorrowingDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		borrowing, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "borrowing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load borrowing")
		}

		if _, err := s.members.WithTx(tx).FindByID(ctx, input.MemberID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
		}
		if _, err := s.books.WithTx(tx).FindByID(ctx, input.BookID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}

		if returned == nil {
			open, err := repo.FindOpenByBook(ctx, input.BookID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check availability")
			}
			if open != nil && open.ID != borrowing.ID {
				return pkgerrors.New(pkgerrors.CodeUnavailable, "book is already on loan").
					WithDetails(map[string]int64{"borrowing_id": open.ID})
			}
		}

		borrowing.MemberID = input.MemberID
		borrowing.BookID = input.BookID
		borrowing.BorrowDate = borrowDate
		borrowing.ReturnDate = returned
		if err := repo.Save(ctx, borrowing); err != nil {
			if db.IsUniqueViolation(err, db.ConstraintOpenBook) {
				return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "book is already on loan")
			}
			if db.IsForeignKeyViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "member or book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update borrowing")
		}

		dto = toDTO(borrowing)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "borrowing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load borrowing")
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete borrowing")
		}
		return nil
	})
}

// Availability derives the shelf state of a book from its open borrowing.
func (s *service) Availability(ctx context.Context, bookID int64) (*AvailabilityDTO, error) {
	if _, err := s.books.FindByID(ctx, bookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}

	open, err := s.repo.FindOpenByBook(ctx, bookID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check availability")
	}

	dto := &AvailabilityDTO{BookID: bookID, Available: open == nil}
	if open != nil {
		borrowDate := open.BorrowDate.Format(types.DateLayout)
		dto.BorrowingID = &open.ID
		dto.MemberID = &open.MemberID
		dto.BorrowDate = &borrowDate
	}
	return dto, nil
}
