package invites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres-backed invitation ledger. A partial unique index on
// unaccepted emails is the enforcement point for the one-active-invitation
// invariant under concurrent invites.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FindActive returns the active (unaccepted, unexpired) invitation for the
// email, or nil if there is none.
func (s *Store) FindActive(ctx context.Context, email string) (*Invitation, error) {
	var inv Invitation

	err := s.pool.QueryRow(ctx, `
		SELECT id, email, invited_by, created_at, expires_at, accepted_at
		FROM invitations
		WHERE email = $1
		  AND accepted_at IS NULL
		  AND expires_at > NOW()
	`, email).Scan(
		&inv.ID,
		&inv.Email,
		&inv.InvitedBy,
		&inv.CreatedAt,
		&inv.ExpiresAt,
		&inv.AcceptedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active invitation: %w", err)
	}

	return &inv, nil
}

// Insert creates a new invitation row. Expired unaccepted rows for the same
// email are cleared first so they do not trip the partial unique index; a
// unique violation from a concurrent insert surfaces as
// ErrDuplicateInvitation.
func (s *Store) Insert(ctx context.Context, email string, invitedBy uuid.UUID, expiresAt time.Time) (*Invitation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		DELETE FROM invitations
		WHERE email = $1
		  AND accepted_at IS NULL
		  AND expires_at <= NOW()
	`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to clear expired invitations: %w", err)
	}

	var inv Invitation
	err = tx.QueryRow(ctx, `
		INSERT INTO invitations (email, invited_by, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, email, invited_by, created_at, expires_at, accepted_at
	`, email, invitedBy, expiresAt).Scan(
		&inv.ID,
		&inv.Email,
		&inv.InvitedBy,
		&inv.CreatedAt,
		&inv.ExpiresAt,
		&inv.AcceptedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrDuplicateInvitation
		}
		return nil, fmt.Errorf("failed to insert invitation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &inv, nil
}

// MarkAccepted sets accepted_at on the invitation.
func (s *Store) MarkAccepted(ctx context.Context, inviteID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invitations
		SET accepted_at = NOW()
		WHERE id = $1
		  AND accepted_at IS NULL
	`, inviteID)
	if err != nil {
		return fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invitation %s not found or already accepted", inviteID)
	}

	return nil
}

// Delete removes an invitation row. Compensating action when account
// provisioning fails after the row was inserted.
func (s *Store) Delete(ctx context.Context, inviteID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM invitations WHERE id = $1`, inviteID)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	return nil
}

// DeleteExpired removes unaccepted invitations whose expiry is older than
// the retention horizon. Called by the daily sweep job.
func (s *Store) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM invitations
		WHERE accepted_at IS NULL
		  AND expires_at < NOW() - $1::interval
	`, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invitations: %w", err)
	}

	return tag.RowsAffected(), nil
}
