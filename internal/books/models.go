package books

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrBookNotFound is returned when no book matches the lookup
	ErrBookNotFound = errors.New("book not found")

	// ErrStockNumberConflict is returned when a stock number is already in use
	ErrStockNumberConflict = errors.New("stock number already in use")
)

// Book represents one inventory item. Status is true while the book is
// available and false while checked out.
type Book struct {
	ID          uuid.UUID `db:"id" json:"id"`
	StockNumber string    `db:"stock_number" json:"stock_number"`
	Title       string    `db:"title" json:"title"`
	Author      string    `db:"author" json:"author"`
	Publisher   string    `db:"publisher" json:"publisher"`
	Language    *string   `db:"language" json:"language,omitempty"`
	Category    *string   `db:"category" json:"category,omitempty"`
	Price       *float64  `db:"price" json:"price,omitempty"`
	BookType    *string   `db:"book_type" json:"book_type,omitempty"`
	Status      bool      `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// BookInput carries the writable fields for create and update.
type BookInput struct {
	StockNumber string   `json:"stock_number"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Publisher   string   `json:"publisher"`
	Language    *string  `json:"language"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	BookType    *string  `json:"book_type"`
	Status      bool     `json:"status"`
}

// Validate checks required fields and length limits.
func (in *BookInput) Validate() error {
	if in.StockNumber == "" {
		return errors.New("stock number is required")
	}
	if len(in.StockNumber) > 50 {
		return errors.New("stock number must be at most 50 characters")
	}
	if in.Title == "" {
		return errors.New("title is required")
	}
	if len(in.Title) > 255 {
		return errors.New("title must be at most 255 characters")
	}
	if in.Author == "" {
		return errors.New("author is required")
	}
	if len(in.Author) > 255 {
		return errors.New("author must be at most 255 characters")
	}
	if in.Publisher == "" {
		return errors.New("publisher is required")
	}
	if len(in.Publisher) > 255 {
		return errors.New("publisher must be at most 255 characters")
	}
	if in.Price != nil && *in.Price < 0 {
		return errors.New("price must not be negative")
	}
	return nil
}

// ListRequest carries the filters and pagination for catalog listings.
type ListRequest struct {
	Search   string
	Category string
	Language string
	Limit    int
	Offset   int
}
