package invites

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/libradesk/libradesk/internal/identity"
	"github.com/libradesk/libradesk/internal/mailer"
	"github.com/libradesk/libradesk/internal/roles"
	"github.com/rs/zerolog/log"
)

// IdentityProvider is the slice of the identity store the invitation
// service needs.
type IdentityProvider interface {
	EmailTaken(ctx context.Context, email string) (bool, error)
	CreateInvitedUser(ctx context.Context, email, redirectURL string) (*identity.InvitedUser, error)
}

// RoleStore grants and checks role capability flags.
type RoleStore interface {
	HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error)
	Grant(ctx context.Context, userID uuid.UUID, role string) error
}

// Ledger is the invitation record store.
type Ledger interface {
	FindActive(ctx context.Context, email string) (*Invitation, error)
	Insert(ctx context.Context, email string, invitedBy uuid.UUID, expiresAt time.Time) (*Invitation, error)
	MarkAccepted(ctx context.Context, inviteID uuid.UUID) error
	Delete(ctx context.Context, inviteID uuid.UUID) error
}

// Auditor is the slice of the audit writer the invitation service uses.
type Auditor interface {
	LogInviteCreated(ctx context.Context, invitedBy uuid.UUID, inviteID uuid.UUID, email string) error
	LogInviteRolledBack(ctx context.Context, invitedBy uuid.UUID, inviteID uuid.UUID, email, reason string) error
	LogInviteAccepted(ctx context.Context, invitedBy uuid.UUID, inviteID, userID uuid.UUID) error
	LogRoleGranted(ctx context.Context, grantedBy, userID uuid.UUID, role string) error
	LogRoleGrantFailed(ctx context.Context, grantedBy, userID uuid.UUID, role, reason string) error
	LogEmailSendFailed(ctx context.Context, email, reason string) error
}

// Deps collects the collaborators and settings of the invitation service.
type Deps struct {
	Identities IdentityProvider
	Roles      RoleStore
	Ledger     Ledger
	Sender     mailer.Sender
	Auditor    Auditor

	InviteTTL time.Duration
	LoginURL  string
	EmailFrom string
}

// Service orchestrates the admin-invitation workflow. Each invocation runs
// its side effects strictly in order; account provisioning is the one step
// with no compensating action, so everything after it can only warn.
type Service struct {
	deps Deps
	now  func() time.Time
}

func NewService(deps Deps) *Service {
	return &Service{deps: deps, now: time.Now}
}

// Result is the successful outcome of an invite request.
type Result struct {
	Message string
	UserID  uuid.UUID
}

// InviteAdmin runs the full invitation workflow for the caller identified
// by invitedBy:
//
//  1. verify the caller holds the admin role
//  2. validate the email syntactically
//  3. refuse if an active invitation already exists for the email
//  4. refuse if an account with the email already exists
//  5. insert the invitation ledger row
//  6. provision the invited account in the identity store; on failure the
//     ledger row is deleted and a ProvisioningError surfaces the provider's
//     message
//  7. grant the admin role (failure is logged, not fatal)
//  8. mark the invitation accepted (failure is logged, not fatal)
//  9. send the notification email (failure is logged, not fatal)
//
// Failures before step 5 leave no side effects at all. Failures after step
// 6 are warnings: the provisioned account is usable either way.
func (s *Service) InviteAdmin(ctx context.Context, invitedBy uuid.UUID, email string) (*Result, error) {
	isAdmin, err := s.deps.Roles.HasRole(ctx, invitedBy, roles.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, ErrNotAdmin
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(email) > 320 {
		return nil, ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	existing, err := s.deps.Ledger.FindActive(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateInvitation
	}

	taken, err := s.deps.Identities.EmailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUserExists
	}

	inv, err := s.deps.Ledger.Insert(ctx, email, invitedBy, s.now().Add(s.deps.InviteTTL))
	if err != nil {
		return nil, err
	}

	if err := s.deps.Auditor.LogInviteCreated(ctx, invitedBy, inv.ID, email); err != nil {
		log.Error().Err(err).Msg("Failed to log audit event")
	}

	invited, err := s.deps.Identities.CreateInvitedUser(ctx, email, s.deps.LoginURL)
	if err != nil {
		// Roll back the ledger row before surfacing; nothing else has
		// happened yet.
		if delErr := s.deps.Ledger.Delete(ctx, inv.ID); delErr != nil {
			log.Error().Err(delErr).Str("invite_id", inv.ID.String()).Msg("Failed to roll back invitation record")
		}
		if auditErr := s.deps.Auditor.LogInviteRolledBack(ctx, invitedBy, inv.ID, email, err.Error()); auditErr != nil {
			log.Error().Err(auditErr).Msg("Failed to log audit event")
		}
		return nil, &ProvisioningError{Err: err}
	}

	if err := s.deps.Roles.Grant(ctx, invited.UserID, roles.RoleAdmin); err != nil {
		// The account exists and is usable; an operator can grant the
		// role by hand, so this does not fail the invite.
		log.Warn().Err(err).
			Str("user_id", invited.UserID.String()).
			Str("email", email).
			Msg("Failed to grant admin role to invited user")
		if auditErr := s.deps.Auditor.LogRoleGrantFailed(ctx, invitedBy, invited.UserID, roles.RoleAdmin, err.Error()); auditErr != nil {
			log.Error().Err(auditErr).Msg("Failed to log audit event")
		}
	} else {
		if auditErr := s.deps.Auditor.LogRoleGranted(ctx, invitedBy, invited.UserID, roles.RoleAdmin); auditErr != nil {
			log.Error().Err(auditErr).Msg("Failed to log audit event")
		}
	}

	if err := s.deps.Ledger.MarkAccepted(ctx, inv.ID); err != nil {
		log.Warn().Err(err).Str("invite_id", inv.ID.String()).Msg("Failed to mark invitation accepted")
	} else {
		if auditErr := s.deps.Auditor.LogInviteAccepted(ctx, invitedBy, inv.ID, invited.UserID); auditErr != nil {
			log.Error().Err(auditErr).Msg("Failed to log audit event")
		}
	}

	msg := mailer.Message{
		From:    s.deps.EmailFrom,
		To:      []string{email},
		Subject: inviteEmailSubject,
		HTML:    inviteEmailHTML(invited.SetupURL),
	}
	if err := s.deps.Sender.Send(ctx, msg); err != nil {
		// The account and role already exist; a missing courtesy email
		// does not undo them.
		log.Warn().Err(err).Str("email", email).Msg("Failed to send invitation email")
		if auditErr := s.deps.Auditor.LogEmailSendFailed(ctx, email, err.Error()); auditErr != nil {
			log.Error().Err(auditErr).Msg("Failed to log audit event")
		}
	}

	log.Info().
		Str("email", email).
		Str("user_id", invited.UserID.String()).
		Str("invited_by", invitedBy.String()).
		Msg("Admin invitation completed")

	return &Result{
		Message: "Invitation sent successfully",
		UserID:  invited.UserID,
	}, nil
}
