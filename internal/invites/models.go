package invites

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotAdmin is returned when the caller does not hold the admin role
	ErrNotAdmin = errors.New("only admins can invite users")

	// ErrEmailRequired is returned when the request carries no email
	ErrEmailRequired = errors.New("email is required")

	// ErrInvalidEmail is returned when the email fails the syntactic check
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrDuplicateInvitation is returned when an active invitation already
	// exists for the email
	ErrDuplicateInvitation = errors.New("an active invitation already exists for this email")

	// ErrUserExists is returned when an account with the email already exists
	ErrUserExists = errors.New("a user with this email already exists")
)

// ProvisioningError wraps an identity-provider failure during account
// creation. By the time it surfaces the invitation row has been rolled back.
type ProvisioningError struct {
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("failed to provision invited account: %v", e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// Invitation is one row of the invitation ledger. An invitation is active
// while AcceptedAt is nil and ExpiresAt is in the future; AcceptedAt is set
// the moment the invited account exists in the identity store.
type Invitation struct {
	ID         uuid.UUID  `db:"id"`
	Email      string     `db:"email"`
	InvitedBy  uuid.UUID  `db:"invited_by"`
	CreatedAt  time.Time  `db:"created_at"`
	ExpiresAt  time.Time  `db:"expires_at"`
	AcceptedAt *time.Time `db:"accepted_at"`
}

// Active reports whether the invitation is unaccepted and unexpired at t.
func (i *Invitation) Active(t time.Time) bool {
	return i.AcceptedAt == nil && t.Before(i.ExpiresAt)
}
