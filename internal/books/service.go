package books

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmarrero/shelfstack-backend/pkg/config"
	"github.com/dmarrero/shelfstack-backend/pkg/db"
	"github.com/dmarrero/shelfstack-backend/pkg/db/models"
	pkgerrors "github.com/dmarrero/shelfstack-backend/pkg/errors"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// BorrowingStore is the slice of the lending repository the book lifecycle
// depends on. Methods take an explicit tx so the delete checks share the
// deleting transaction.
type BorrowingStore interface {
	CountForBook(ctx context.Context, tx *gorm.DB, bookID int64) (int64, error)
	CountOpenForBook(ctx context.Context, tx *gorm.DB, bookID int64) (int64, error)
	DeleteClosedForBook(ctx context.Context, tx *gorm.DB, bookID int64) error
}

// Service defines catalog operations. Each row is one physical copy, so two
// copies of the same title are two rows.
type Service interface {
	Add(ctx context.Context, input AddBookInput) (*BookDTO, error)
	GetByID(ctx context.Context, id int64) (*BookDTO, error)
	Update(ctx context.Context, id int64, input UpdateBookInput) (*BookDTO, error)
	Delete(ctx context.Context, id int64) error
}

type service struct {
	repo       Repository
	borrowings BorrowingStore
	tx         txRunner
	policy     config.LendingConfig
}

// NewService builds a books service with the required dependencies.
func NewService(repo Repository, borrowings BorrowingStore, tx txRunner, policy config.LendingConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("books repository required")
	}
	if borrowings == nil {
		return nil, fmt.Errorf("borrowing store required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:       repo,
		borrowings: borrowings,
		tx:         tx,
		policy:     policy,
	}, nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *service) Add(ctx context.Context, input AddBookInput) (*BookDTO, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}

	book, err := s.repo.Create(ctx, &models.Book{
		Title:  title,
		Author: normalizeOptional(input.Author),
		ISBN:   normalizeOptional(input.ISBN),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert book")
	}
	return toDTO(book), nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*BookDTO, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	return toDTO(book), nil
}

func (s *service) Update(ctx context.Context, id int64, input UpdateBookInput) (*BookDTO, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}

	var dto *BookDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		book, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}

		book.Title = title
		book.Author = normalizeOptional(input.Author)
		book.ISBN = normalizeOptional(input.ISBN)
		if err := repo.Save(ctx, book); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update book")
		}

		dto = toDTO(book)
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
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
		}

		switch s.policy.DeletePolicy {
		case config.DeletePolicyRestrictOpen:
			open, err := s.borrowings.CountOpenForBook(ctx, tx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open borrowings")
			}
			if open > 0 {
				return pkgerrors.New(pkgerrors.CodeForeignKey, "book is currently on loan")
			}
			if err := s.borrowings.DeleteClosedForBook(ctx, tx, id); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune borrowing history")
			}
		default:
			total, err := s.borrowings.CountForBook(ctx, tx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count borrowings")
			}
			if total > 0 {
				return pkgerrors.New(pkgerrors.CodeForeignKey, "book is referenced by borrowings")
			}
		}

		if err := repo.Delete(ctx, id); err != nil {
			if db.IsForeignKeyViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeForeignKey, err, "book is referenced by borrowings")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete book")
		}
		return nil
	})
}
