package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleAdmin is the capability flag granting access to inventory management
// and the invitation endpoint. It is the only role in use.
const RoleAdmin = "admin"

// ErrAlreadyGranted is returned when the (user, role) pair already exists
var ErrAlreadyGranted = errors.New("role already granted")

// Store provides role grant lookups and writes.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// HasRole reports whether the user holds the given role
func (s *Store) HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	var exists bool

	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2
		)
	`, userID, role).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}

	return exists, nil
}

// Grant inserts a role grant for the user. The primary key on
// (user_id, role) guarantees at most one grant per pair.
func (s *Store) Grant(ctx context.Context, userID uuid.UUID, role string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role)
		VALUES ($1, $2)
	`, userID, role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ErrAlreadyGranted
		}
		return fmt.Errorf("failed to grant role: %w", err)
	}

	return nil
}
