package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	EventLoginFailed      = "auth.login_failed"
	EventLoginLocked      = "auth.login_locked"
	EventInviteCreated    = "invite.created"
	EventInviteRolledBack = "invite.rolled_back"
	EventInviteAccepted   = "invite.accepted"
	EventInviteCompleted  = "invite.completed"
	EventRoleGranted      = "role.granted"
	EventRoleGrantFailed  = "role.grant_failed"
	EventEmailSendFailed  = "email.send_failed"
	EventBookCreated      = "book.created"
	EventBookUpdated      = "book.updated"
	EventBookDeleted      = "book.deleted"
)

// Event represents an audit log entry.
type Event struct {
	ID          uuid.UUID              `db:"id"`
	ActorUserID uuid.NullUUID          `db:"actor_user_id"`
	Action      string                 `db:"action"`
	Meta        map[string]interface{} `db:"meta"`
	CreatedAt   time.Time              `db:"created_at"`
}

// Writer provides methods to write audit log entries.
type Writer struct {
	pool *pgxpool.Pool
}

func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	ActorUserID *uuid.UUID
	Action      string
	Meta        map[string]interface{}
}

func (w *Writer) Log(ctx context.Context, params LogParams) error {
	metaJSON := []byte("{}")
	if params.Meta != nil {
		b, err := json.Marshal(params.Meta)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit meta")
			return err
		}
		metaJSON = b
	}

	query := `
		INSERT INTO audit_log (actor_user_id, action, meta)
		VALUES ($1, $2, $3)
	`

	_, err := w.pool.Exec(ctx, query, toNullUUID(params.ActorUserID), params.Action, metaJSON)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return err
	}

	log.Info().
		Str("action", params.Action).
		Interface("actor_user_id", params.ActorUserID).
		Msg("Audit event logged")

	return nil
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (w *Writer) LogLoginFailed(ctx context.Context, email, ip string) error {
	return w.Log(ctx, LogParams{
		Action: EventLoginFailed,
		Meta: map[string]interface{}{
			"email": email,
			"ip":    ip,
		},
	})
}

func (w *Writer) LogLoginLocked(ctx context.Context, email, ip string) error {
	return w.Log(ctx, LogParams{
		Action: EventLoginLocked,
		Meta: map[string]interface{}{
			"email": email,
			"ip":    ip,
		},
	})
}

func (w *Writer) LogInviteCreated(ctx context.Context, invitedBy uuid.UUID, inviteID uuid.UUID, email string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &invitedBy,
		Action:      EventInviteCreated,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
			"email":     email,
		},
	})
}

func (w *Writer) LogInviteRolledBack(ctx context.Context, invitedBy uuid.UUID, inviteID uuid.UUID, email, reason string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &invitedBy,
		Action:      EventInviteRolledBack,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
			"email":     email,
			"reason":    reason,
		},
	})
}

func (w *Writer) LogInviteAccepted(ctx context.Context, invitedBy uuid.UUID, inviteID, userID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &invitedBy,
		Action:      EventInviteAccepted,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
			"user_id":   userID.String(),
		},
	})
}

func (w *Writer) LogInviteCompleted(ctx context.Context, userID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &userID,
		Action:      EventInviteCompleted,
	})
}

func (w *Writer) LogRoleGranted(ctx context.Context, grantedBy, userID uuid.UUID, role string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &grantedBy,
		Action:      EventRoleGranted,
		Meta: map[string]interface{}{
			"user_id": userID.String(),
			"role":    role,
		},
	})
}

func (w *Writer) LogRoleGrantFailed(ctx context.Context, grantedBy, userID uuid.UUID, role, reason string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &grantedBy,
		Action:      EventRoleGrantFailed,
		Meta: map[string]interface{}{
			"user_id": userID.String(),
			"role":    role,
			"reason":  reason,
		},
	})
}

func (w *Writer) LogEmailSendFailed(ctx context.Context, email, reason string) error {
	return w.Log(ctx, LogParams{
		Action: EventEmailSendFailed,
		Meta: map[string]interface{}{
			"email":  email,
			"reason": reason,
		},
	})
}

func (w *Writer) LogBookEvent(ctx context.Context, action string, actorUserID, bookID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &actorUserID,
		Action:      action,
		Meta: map[string]interface{}{
			"book_id": bookID.String(),
		},
	})
}
