package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store owns user accounts and credentials.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GetByID retrieves a user by ID
func (s *Store) GetByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.getUser(ctx, `
		SELECT id, email, password_hash, invited_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
}

// GetByEmail retrieves a user by email
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `
		SELECT id, email, password_hash, invited_at, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var user User

	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.InvitedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// EmailTaken reports whether an account with this email already exists
func (s *Store) EmailTaken(ctx context.Context, email string) (bool, error) {
	var exists bool

	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)
	`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}

	return exists, nil
}

// CreateInvitedUser provisions a passwordless account for an invited email and
// issues a single-use setup token. The returned SetupURL points at redirectURL
// with the raw token attached; it is the magic link mailed to the invitee.
func (s *Store) CreateInvitedUser(ctx context.Context, email, redirectURL string) (*InvitedUser, error) {
	token, tokenHash, err := GenerateSetupToken()
	if err != nil {
		return nil, err
	}

	var userID uuid.UUID
	err = s.pool.QueryRow(ctx, `
		INSERT INTO users (email, setup_token_hash, invited_at)
		VALUES ($1, $2, NOW())
		RETURNING id
	`, email, tokenHash).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create invited user: %w", err)
	}

	return &InvitedUser{
		UserID:   userID,
		Email:    email,
		SetupURL: redirectURL + "?setup_token=" + url.QueryEscape(token),
	}, nil
}

// SetPasswordFromSetupToken completes the magic-link flow: finds the invited
// account by token hash, stores the password hash, and spends the token.
func (s *Store) SetPasswordFromSetupToken(ctx context.Context, token, passwordHash string) (uuid.UUID, error) {
	if !ValidateSetupTokenFormat(token) {
		return uuid.Nil, ErrSetupTokenInvalid
	}

	var userID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		UPDATE users
		SET password_hash = $2, setup_token_hash = NULL, updated_at = NOW()
		WHERE setup_token_hash = $1
		RETURNING id
	`, HashSetupToken(token), passwordHash).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrSetupTokenInvalid
		}
		return uuid.Nil, fmt.Errorf("failed to set password: %w", err)
	}

	return userID, nil
}

// CreateUser inserts a user with a password hash already set. Used by the
// admin bootstrap command, never by the HTTP surface.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (uuid.UUID, error) {
	var userID uuid.UUID

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id
	`, email, passwordHash).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return uuid.Nil, ErrEmailTaken
		}
		return uuid.Nil, fmt.Errorf("failed to create user: %w", err)
	}

	return userID, nil
}

// DeleteUser removes an account. Compensating action for the bootstrap
// command; the invite flow never deletes provisioned accounts.
func (s *Store) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
