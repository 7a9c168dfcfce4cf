package models

import "time"

// Borrowing links a member to a book copy for a loan period. A nil ReturnDate
// means the loan is open and the book is out. The partial unique index
// borrowings_open_book_key (book_id where return_date is null) guarantees at
// most one open borrowing per book even under concurrent checkouts.
type Borrowing struct {
	ID         int64      `gorm:"column:borrowing_id;primaryKey;autoIncrement"`
	MemberID   int64      `gorm:"column:member_id;not null;index:borrowings_member_id_idx"`
	BookID     int64      `gorm:"column:book_id;not null;index:borrowings_book_id_idx"`
	BorrowDate time.Time  `gorm:"column:borrow_date;type:date;not null"`
	ReturnDate *time.Time `gorm:"column:return_date;type:date"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Open reports whether the loan has not been returned yet.
func (b Borrowing) Open() bool {
	return b.ReturnDate == nil
}
