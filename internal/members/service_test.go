package members

import (
	"context"
	"errors"
	"testing"

	"github.com/dmarrero/shelfstack-backend/pkg/config"
	"github.com/dmarrero/shelfstack-backend/pkg/db/models"
	pkgerrors "github.com/dmarrero/shelfstack-backend/pkg/errors"
	"gorm.io/gorm"
)

type stubRepo struct {
	createFn   func(ctx context.Context, member *models.Member) (*models.Member, error)
	findByIDFn func(ctx context.Context, id int64) (*models.Member, error)
	saveFn     func(ctx context.Context, member *models.Member) error
	deleteFn   func(ctx context.Context, id int64) error
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, member *models.Member) (*models.Member, error) {
	if s.createFn == nil {
		member.ID = 1
		return member, nil
	}
	return s.createFn(ctx, member)
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*models.Member, error) {
	if s.findByIDFn == nil {
		return &models.Member{ID: id, Name: "Ada", Email: "ada@example.com"}, nil
	}
	return s.findByIDFn(ctx, id)
}

func (s *stubRepo) Save(ctx context.Context, member *models.Member) error {
	if s.saveFn == nil {
		return nil
	}
	return s.saveFn(ctx, member)
}

func (s *stubRepo) Delete(ctx context.Context, id int64) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}

type stubBorrowings struct {
	total      int64
	open       int64
	pruned     bool
	countErr   error
	openErr    error
	deleteErr  error
	prunedByID int64
}

func (s *stubBorrowings) CountForMember(ctx context.Context, tx *gorm.DB, memberID int64) (int64, error) {
	return s.total, s.countErr
}

func (s *stubBorrowings) CountOpenForMember(ctx context.Context, tx *gorm.DB, memberID int64) (int64, error) {
	return s.open, s.openErr
}

func (s *stubBorrowings) DeleteClosedForMember(ctx context.Context, tx *gorm.DB, memberID int64) error {
	s.pruned = true
	s.prunedByID = memberID
	return s.deleteErr
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo Repository, borrowings BorrowingStore, policy config.LendingConfig) Service {
	t.Helper()
	svc, err := NewService(repo, borrowings, stubTxRunner{}, policy)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func restrictPolicy() config.LendingConfig {
	return config.LendingConfig{DeletePolicy: config.DeletePolicyRestrict}
}

func TestNewService_RequiresDependencies(t *testing.T) {
	if _, err := NewService(nil, &stubBorrowings{}, stubTxRunner{}, restrictPolicy()); err == nil {
		t.Fatal("expected error when repository is nil")
	}
	if _, err := NewService(&stubRepo{}, nil, stubTxRunner{}, restrictPolicy()); err == nil {
		t.Fatal("expected error when borrowing store is nil")
	}
	if _, err := NewService(&stubRepo{}, &stubBorrowings{}, nil, restrictPolicy()); err == nil {
		t.Fatal("expected error when tx runner is nil")
	}
}

func TestRegister_TrimsAndCreates(t *testing.T) {
	var created *models.Member
	repo := &stubRepo{
		createFn: func(ctx context.Context, member *models.Member) (*models.Member, error) {
			member.ID = 7
			created = member
			return member, nil
		},
	}
	svc := newTestService(t, repo, &stubBorrowings{}, restrictPolicy())

	dto, err := svc.Register(context.Background(), RegisterMemberInput{Name: "  Ada Lovelace ", Email: " ada@example.com "})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if created.Name != "Ada Lovelace" || created.Email != "ada@example.com" {
		t.Fatalf("expected trimmed fields, got %q %q", created.Name, created.Email)
	}
	if dto.ID != 7 {
		t.Fatalf("expected dto id 7, got %d", dto.ID)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubBorrowings{}, restrictPolicy())

	cases := []struct {
		name  string
		input RegisterMemberInput
	}{
		{name: "empty name", input: RegisterMemberInput{Name: "  ", Email: "a@b.c"}},
		{name: "empty email", input: RegisterMemberInput{Name: "Ada", Email: ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := &stubRepo{
		createFn: func(ctx context.Context, member *models.Member) (*models.Member, error) {
			return nil, errors.New(`duplicate key value violates unique constraint "members_email_key"`)
		},
	}
	svc := newTestService(t, repo, &stubBorrowings{}, restrictPolicy())

	_, err := svc.Register(context.Background(), RegisterMemberInput{Name: "Ada", Email: "ada@example.com"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDuplicate {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := &stubRepo{
		findByIDFn: func(ctx context.Context, id int64) (*models.Member, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := newTestService(t, repo, &stubBorrowings{}, restrictPolicy())

	_, err := svc.GetByID(context.Background(), 42)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestUpdate_ReplacesFields(t *testing.T) {
	var saved *models.Member
	repo := &stubRepo{
		findByIDFn: func(ctx context.Context, id int64) (*models.Member, error) {
			return &models.Member{ID: id, Name: "Old", Email: "old@example.com"}, nil
		},
		saveFn: func(ctx context.Context, member *models.Member) error {
			saved = member
			return nil
		},
	}
	svc := newTestService(t, repo, &stubBorrowings{}, restrictPolicy())

	dto, err := svc.Update(context.Background(), 3, UpdateMemberInput{Name: "New Name", Email: "new@example.com"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if saved.Name != "New Name" || saved.Email != "new@example.com" {
		t.Fatalf("expected replaced fields, got %q %q", saved.Name, saved.Email)
	}
	if dto.Name != "New Name" {
		t.Fatalf("expected dto to reflect update, got %q", dto.Name)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo := &stubRepo{
		findByIDFn: func(ctx context.Context, id int64) (*models.Member, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := newTestService(t, repo, &stubBorrowings{}, restrictPolicy())

	_, err := svc.Update(context.Background(), 9, UpdateMemberInput{Name: "A", Email: "a@b.c"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestDelete_RestrictBlocksWithHistory(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubBorrowings{total: 2}, restrictPolicy())

	err := svc.Delete(context.Background(), 5)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForeignKey {
		t.Fatalf("expected foreign key error, got %v", err)
	}
}

func TestDelete_RestrictAllowsWithoutHistory(t *testing.T) {
	deleted := false
	repo := &stubRepo{
		deleteFn: func(ctx context.Context, id int64) error {
			deleted = true
			return nil
		},
	}
	svc := newTestService(t, repo, &stubBorrowings{total: 0}, restrictPolicy())

	if err := svc.Delete(context.Background(), 5); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleted {
		t.Fatal("expected repository delete to run")
	}
}

func TestDelete_RestrictOpenBlocksOpenLoan(t *testing.T) {
	policy := config.LendingConfig{DeletePolicy: config.DeletePolicyRestrictOpen}
	svc := newTestService(t, &stubRepo{}, &stubBorrowings{open: 1}, policy)

	err := svc.Delete(context.Background(), 5)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForeignKey {
		t.Fatalf("expected foreign key error, got %v", err)
	}
}

func TestDelete_RestrictOpenPrunesClosedHistory(t *testing.T) {
	policy := config.LendingConfig{DeletePolicy: config.DeletePolicyRestrictOpen}
	borrowings := &stubBorrowings{open: 0, total: 4}
	svc := newTestService(t, &stubRepo{}, borrowings, policy)

	if err := svc.Delete(context.Background(), 5); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !borrowings.pruned || borrowings.prunedByID != 5 {
		t.Fatalf("expected closed history pruned for member 5, got pruned=%v id=%d", borrowings.pruned, borrowings.prunedByID)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo := &stubRepo{
		findByIDFn: func(ctx context.Context, id int64) (*models.Member, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := newTestService(t, repo, &stubBorrowings{}, restrictPolicy())

	err := svc.Delete(context.Background(), 5)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}
