package lending

import (
	"context"
	"errors"

	"github.com/dmarrero/shelfstack-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository defines persistence operations for the borrowings table. The
// tx-scoped helpers (CountForMember and friends) exist so the member and book
// lifecycles can run their referential checks inside their own transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, borrowing *models.Borrowing) (*models.Borrowing, error)
	FindByID(ctx context.Context, id int64) (*models.Borrowing, error)
	Save(ctx context.Context, borrowing *models.Borrowing) error
	Delete(ctx context.Context, id int64) error
	FindOpenByBook(ctx context.Context, bookID int64) (*models.Borrowing, error)
	CountOpenByMember(ctx context.Context, memberID int64) (int64, error)

	CountForMember(ctx context.Context, tx *gorm.DB, memberID int64) (int64, error)
	CountOpenForMember(ctx context.Context, tx *gorm.DB, memberID int64) (int64, error)
	DeleteClosedForMember(ctx context.Context, tx *gorm.DB, memberID int64) error
	CountForBook(ctx context.Context, tx *gorm.DB, bookID int64) (int64, error)
	CountOpenForBook(ctx context.Context, tx *gorm.DB, bookID int64) (int64, error)
	DeleteClosedForBook(ctx context.Context, tx *gorm.DB, bookID int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a borrowings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *repository) Create(ctx context.Context, borrowing *models.Borrowing) (*models.Borrowing, error) {
	if err := r.db.WithContext(ctx).Create(borrowing).Error; err != nil {
		return nil, err
	}
	return borrowing, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Borrowing, error) {
	var borrowing models.Borrowing
	err := r.db.WithContext(ctx).
		Where("borrowing_id = ?", id).
		First(&borrowing).Error
	if err != nil {
		return nil, err
	}
	return &borrowing, nil
}

func (r *repository) Save(ctx context.Context, borrowing *models.Borrowing) error {
	return r.db.WithContext(ctx).Save(borrowing).Error
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Where("borrowing_id = ?", id).
		Delete(&models.Borrowing{}).Error
}

// FindOpenByBook returns the open borrowing for a book, or nil when the book
// is on the shelf.
func (r *repository) FindOpenByBook(ctx context.Context, bookID int64) (*models.Borrowing, error) {
	var borrowing models.Borrowing
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND return_date IS NULL", bookID).
		First(&borrowing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &borrowing, nil
}

func (r *repository) CountOpenByMember(ctx context.Context, memberID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Borrowing{}).
		Where("member_id = ? AND return_date IS NULL", memberID).
		Count(&count).Error
	return count, err
}

func (r *repository) CountForMember(ctx context.Context, tx *gorm.DB, memberID int64) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&models.Borrowing{}).
		Where("member_id = ?", memberID).
		Count(&count).Error
	return count, err
}

func (r *repository) CountOpenForMember(ctx context.Context, tx *gorm.DB, memberID int64) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&models.Borrowing{}).
		Where("member_id = ? AND return_date IS NULL", memberID).
		Count(&count).Error
	return count, err
}

func (r *repository) DeleteClosedForMember(ctx context.Context, tx *gorm.DB, memberID int64) error {
	return r.conn(tx).WithContext(ctx).
		Where("member_id = ? AND return_date IS NOT NULL", memberID).
		Delete(&models.Borrowing{}).Error
}

func (r *repository) CountForBook(ctx context.Context, tx *gorm.DB, bookID int64) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&models.Borrowing{}).
		Where("book_id = ?", bookID).
		Count(&count).Error
	return count, err
}

func (r *repository) CountOpenForBook(ctx context.Context, tx *gorm.DB, bookID int64) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&models.Borrowing{}).
		Where("book_id = ? AND return_date IS NULL", bookID).
		Count(&count).Error
	return count, err
}

func (r *repository) DeleteClosedForBook(ctx context.Context, tx *gorm.DB, bookID int64) error {
	return r.conn(tx).WithContext(ctx).
		Where("book_id = ? AND return_date IS NOT NULL", bookID).
		Delete(&models.Borrowing{}).Error
}
