package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/libradesk/libradesk/internal/identity"
	"github.com/stretchr/testify/require"
)

var setupTokenPattern = regexp.MustCompile(`li_[A-Za-z0-9_-]+`)

type flatBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func decodeFlat(t *testing.T, resp *http.Response) flatBody {
	t.Helper()
	defer resp.Body.Close()

	var body flatBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestE2E_AdminInvitationFlow(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	ts := newTestServer(t, pool)
	ctx := context.Background()

	ts.seedUser(t, "admin@example.com", "password123", true)
	ts.seedUser(t, "member@example.com", "password123", false)

	adminToken := ts.login(t, "admin@example.com", "password123")
	memberToken := ts.login(t, "member@example.com", "password123")

	inviteBody := map[string]string{"email": "invitee@example.com"}

	// Anonymous callers are refused before the workflow starts.
	resp := ts.doJSON(t, http.MethodPost, "/functions/invite-admin", "", "", inviteBody)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Unauthorized", decodeFlat(t, resp).Error)

	// So are authenticated callers without the admin role.
	resp = ts.doJSON(t, http.MethodPost, "/functions/invite-admin", memberToken, "", inviteBody)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "Only admins can invite users", decodeFlat(t, resp).Error)

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM invitations").Scan(&count))
	require.Zero(t, count)

	// The admin's invite provisions the account end to end.
	resp = ts.doJSON(t, http.MethodPost, "/functions/invite-admin", adminToken, "", inviteBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeFlat(t, resp)
	require.True(t, body.Success)
	require.Equal(t, "Invitation sent successfully", body.Message)

	var invitedUserID uuid.UUID
	var hasPassword bool
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT id, password_hash IS NOT NULL FROM users WHERE email = $1", "invitee@example.com",
	).Scan(&invitedUserID, &hasPassword))
	require.False(t, hasPassword, "invited accounts start without a password")

	var isAdmin bool
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = 'admin')", invitedUserID,
	).Scan(&isAdmin))
	require.True(t, isAdmin)

	var accepted bool
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT accepted_at IS NOT NULL FROM invitations WHERE email = $1", "invitee@example.com",
	).Scan(&accepted))
	require.True(t, accepted, "invitation is marked accepted once the account exists")

	// The notification email carries the magic link.
	require.Len(t, ts.emails.messages, 1)
	msg := ts.emails.messages[0]
	require.Equal(t, []string{"invitee@example.com"}, msg.To)
	setupToken := setupTokenPattern.FindString(msg.HTML)
	require.NotEmpty(t, setupToken)
	require.True(t, identity.ValidateSetupTokenFormat(setupToken))

	// Re-inviting the same address now trips the existing-account check.
	resp = ts.doJSON(t, http.MethodPost, "/functions/invite-admin", adminToken, "", inviteBody)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "A user with this email already exists", decodeFlat(t, resp).Error)

	// The invitee completes the magic link and can sign in.
	resp = ts.doJSON(t, http.MethodPost, "/api/v1/auth/accept-invite", "", "", map[string]string{
		"token":    setupToken,
		"password": "invitee-password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	inviteeToken := ts.login(t, "invitee@example.com", "invitee-password")

	// A used setup token is dead.
	resp = ts.doJSON(t, http.MethodPost, "/api/v1/auth/accept-invite", "", "", map[string]string{
		"token":    setupToken,
		"password": "another-password",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// The invitee holds the admin role, so they can invite in turn.
	resp = ts.doJSON(t, http.MethodPost, "/functions/invite-admin", inviteeToken, "", map[string]string{
		"email": "next.admin@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decodeFlat(t, resp).Success)
}

func TestE2E_InviteValidationAndDuplicates(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	ts := newTestServer(t, pool)
	ctx := context.Background()

	ts.seedUser(t, "admin@example.com", "password123", true)
	adminToken := ts.login(t, "admin@example.com", "password123")

	resp := ts.doJSON(t, http.MethodPost, "/functions/invite-admin", adminToken, "", map[string]string{"email": ""})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Email is required", decodeFlat(t, resp).Error)

	resp = ts.doJSON(t, http.MethodPost, "/functions/invite-admin", adminToken, "", map[string]string{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Invalid email address", decodeFlat(t, resp).Error)

	// Inviting an address that already has an account is refused without
	// touching the ledger.
	resp = ts.doJSON(t, http.MethodPost, "/functions/invite-admin", adminToken, "", map[string]string{"email": "admin@example.com"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "A user with this email already exists", decodeFlat(t, resp).Error)

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM invitations").Scan(&count))
	require.Zero(t, count)

	// An unaccepted ledger row blocks a second invite for the same email.
	_, err := pool.Exec(ctx, `
		INSERT INTO invitations (email, invited_by, expires_at)
		SELECT 'pending@example.com', id, NOW() + INTERVAL '72 hours' FROM users LIMIT 1
	`)
	require.NoError(t, err)

	resp = ts.doJSON(t, http.MethodPost, "/functions/invite-admin", adminToken, "", map[string]string{"email": "pending@example.com"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "An active invitation already exists for this email", decodeFlat(t, resp).Error)

	// Once the pending row expires it no longer blocks, and the new invite
	// replaces it.
	_, err = pool.Exec(ctx, "UPDATE invitations SET expires_at = NOW() - INTERVAL '1 hour' WHERE email = 'pending@example.com'")
	require.NoError(t, err)

	resp = ts.doJSON(t, http.MethodPost, "/functions/invite-admin", adminToken, "", map[string]string{"email": "pending@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decodeFlat(t, resp).Success)

	require.NoError(t, pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM invitations WHERE email = 'pending@example.com'").Scan(&count))
	require.Equal(t, 1, count)
}
