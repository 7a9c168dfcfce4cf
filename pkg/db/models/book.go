package models

import "time"

// Book is a single loanable copy. Multiple copies of the same title are
// distinct rows and may share an ISBN.
type Book struct {
	ID        int64     `gorm:"column:book_id;primaryKey;autoIncrement"`
	Title     string    `gorm:"column:title;not null"`
	Author    *string   `gorm:"column:author"`
	ISBN      *string   `gorm:"column:isbn"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
