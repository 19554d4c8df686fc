package books

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookColumns = "id, stock_number, title, author, publisher, language, category, price, book_type, status, created_at, updated_at"

// Service provides book inventory operations
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// GetByID retrieves a book by ID
func (s *Service) GetByID(ctx context.Context, bookID uuid.UUID) (*Book, error) {
	query := fmt.Sprintf("SELECT %s FROM books WHERE id = $1", bookColumns)

	var book Book
	err := s.pool.QueryRow(ctx, query, bookID).Scan(bookFields(&book)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	return &book, nil
}

// List retrieves books matching the filters, newest first, with the total
// count for pagination.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Book, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argNum := 1

	if req.Search != "" {
		where += fmt.Sprintf(" AND (title ILIKE $%d OR author ILIKE $%d OR stock_number ILIKE $%d)", argNum, argNum, argNum)
		args = append(args, "%"+req.Search+"%")
		argNum++
	}
	if req.Category != "" {
		where += fmt.Sprintf(" AND category = $%d", argNum)
		args = append(args, req.Category)
		argNum++
	}
	if req.Language != "" {
		where += fmt.Sprintf(" AND language = $%d", argNum)
		args = append(args, req.Language)
		argNum++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM books " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count books: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM books %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		bookColumns, where, argNum, argNum+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var items []Book
	for rows.Next() {
		var book Book
		if err := rows.Scan(bookFields(&book)...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan book: %w", err)
		}
		items = append(items, book)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating book rows: %w", err)
	}

	return items, total, nil
}

// Create inserts a new book
func (s *Service) Create(ctx context.Context, in BookInput) (*Book, error) {
	query := fmt.Sprintf(`
		INSERT INTO books (stock_number, title, author, publisher, language, category, price, book_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s
	`, bookColumns)

	var book Book
	err := s.pool.QueryRow(ctx, query,
		in.StockNumber, in.Title, in.Author, in.Publisher,
		in.Language, in.Category, in.Price, in.BookType, in.Status,
	).Scan(bookFields(&book)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrStockNumberConflict
		}
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	return &book, nil
}

// Update replaces the writable fields of an existing book
func (s *Service) Update(ctx context.Context, bookID uuid.UUID, in BookInput) (*Book, error) {
	query := fmt.Sprintf(`
		UPDATE books
		SET stock_number = $2, title = $3, author = $4, publisher = $5,
		    language = $6, category = $7, price = $8, book_type = $9,
		    status = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, bookColumns)

	var book Book
	err := s.pool.QueryRow(ctx, query,
		bookID, in.StockNumber, in.Title, in.Author, in.Publisher,
		in.Language, in.Category, in.Price, in.BookType, in.Status,
	).Scan(bookFields(&book)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrStockNumberConflict
		}
		return nil, fmt.Errorf("failed to update book: %w", err)
	}

	return &book, nil
}

// Delete removes a book
func (s *Service) Delete(ctx context.Context, bookID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, bookID)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookNotFound
	}

	return nil
}

// bookFields returns scan destinations in bookColumns order.
func bookFields(b *Book) []any {
	return []any{
		&b.ID, &b.StockNumber, &b.Title, &b.Author, &b.Publisher,
		&b.Language, &b.Category, &b.Price, &b.BookType, &b.Status,
		&b.CreatedAt, &b.UpdatedAt,
	}
}
