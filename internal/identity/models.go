package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when an email is already registered
	ErrEmailTaken = errors.New("email already registered")

	// ErrSetupTokenInvalid is returned when a setup token is unknown or spent
	ErrSetupTokenInvalid = errors.New("invalid or expired setup token")
)

// User represents an account in the identity store.
// PasswordHash is nil for invited users who have not set a password yet.
type User struct {
	ID           uuid.UUID  `db:"id"`
	Email        string     `db:"email"`
	PasswordHash *string    `db:"password_hash"`
	InvitedAt    *time.Time `db:"invited_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// InvitedUser is the result of provisioning an account through the invite
// flow. SetupURL is the magic link mailed to the invitee; the raw token is
// never stored.
type InvitedUser struct {
	UserID   uuid.UUID
	Email    string
	SetupURL string
}
