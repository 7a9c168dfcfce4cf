package members

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

// BorrowingStore is the slice of the lending repository the member lifecycle
// depends on. Methods take an explicit tx so the delete checks share the
// deleting transaction.
type BorrowingStore interface {
	CountForMember(ctx context.Context, tx *gorm.DB, memberID int64) (int64, error)
	CountOpenForMember(ctx context.Context, tx *gorm.DB, memberID int64) (int64, error)
	DeleteClosedForMember(ctx context.Context, tx *gorm.DB, memberID int64) error
}

// Service defines member registry operations.
type Service interface {
	Register(ctx context.Context, input RegisterMemberInput) (*MemberDTO, error)
	GetByID(ctx context.Context, id int64) (*MemberDTO, error)
	Update(ctx context.Context, id int64, input UpdateMemberInput) (*MemberDTO, error)
	Delete(ctx context.Context, id int64) error
}

type service struct {
	repo       Repository
	borrowings BorrowingStore
	tx         txRunner
	policy     config.LendingConfig
}

// NewService builds a members service with the required dependencies.
func NewService(repo Repository, borrowings BorrowingStore, tx txRunner, policy config.LendingConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("members repository required")
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

func (s *service) Register(ctx context.Context, input RegisterMemberInput) (*MemberDTO, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	member, err := s.repo.Create(ctx, &models.Member{Name: name, Email: email})
	if err != nil {
		if db.IsUniqueViolation(err, db.ConstraintMemberEmail) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicate, err, "email already registered").
				WithDetails(map[string]string{"email": email})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert member")
	}
	return toDTO(member), nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*MemberDTO, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	return toDTO(member), nil
}

func (s *service) Update(ctx context.Context, id int64, input UpdateMemberInput) (*MemberDTO, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	var dto *MemberDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		member, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
		}

		member.Name = name
		member.Email = email
		if err := repo.Save(ctx, member); err != nil {
			if db.IsUniqueViolation(err, db.ConstraintMemberEmail) {
				return pkgerrors.Wrap(pkgerrors.CodeDuplicate, err, "email already registered").
					WithDetails(map[string]string{"email": email})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update member")
		}

		dto = toDTO(member)
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
				return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
		}

		switch s.policy.DeletePolicy {
		case config.DeletePolicyRestrictOpen:
			open, err := s.borrowings.CountOpenForMember(ctx, tx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open borrowings")
			}
			if open > 0 {
				return pkgerrors.New(pkgerrors.CodeForeignKey, "member has an open borrowing")
			}
			if err := s.borrowings.DeleteClosedForMember(ctx, tx, id); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune borrowing history")
			}
		default:
			total, err := s.borrowings.CountForMember(ctx, tx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count borrowings")
			}
			if total > 0 {
				return pkgerrors.New(pkgerrors.CodeForeignKey, "member is referenced by borrowings")
			}
		}

		if err := repo.Delete(ctx, id); err != nil {
			if db.IsForeignKeyViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeForeignKey, err, "member is referenced by borrowings")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete member")
		}
		return nil
	})
}
