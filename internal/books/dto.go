package books

import (
	"time"

	"github.com/dmarrero/shelfstack-backend/pkg/db/models"
)

// AddBookInput carries the fields for cataloging a new copy.
type AddBookInput struct {
	Title  string
	Author *string
	ISBN   *string
}

// UpdateBookInput carries the full-replace payload for an existing copy.
type UpdateBookInput struct {
	Title  string
	Author *string
	ISBN   *string
}

// BookDTO is the book shape returned to the gateway.
type BookDTO struct {
	ID        int64     `json:"book_id"`
	Title     string    `json:"title"`
	Author    *string   `json:"author"`
	ISBN      *string   `json:"isbn"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDTO(book *models.Book) *BookDTO {
	return &BookDTO{
		ID:        book.ID,
		Title:     book.Title,
		Author:    book.Author,
		ISBN:      book.ISBN,
		CreatedAt: book.CreatedAt,
		UpdatedAt: book.UpdatedAt,
	}
}
