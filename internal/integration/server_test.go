package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/libradesk/libradesk/internal/app"
	"github.com/libradesk/libradesk/internal/auth"
	"github.com/libradesk/libradesk/internal/config"
	"github.com/libradesk/libradesk/internal/identity"
	"github.com/libradesk/libradesk/internal/mailer"
	"github.com/libradesk/libradesk/internal/roles"
	"github.com/stretchr/testify/require"
)

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

type successEnvelope struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

// emailCapture is a fake Resend-compatible API recording every message.
type emailCapture struct {
	srv      *httptest.Server
	messages []mailer.Message
}

func newEmailCapture(t *testing.T) *emailCapture {
	t.Helper()
	c := &emailCapture{}
	c.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg mailer.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.messages = append(c.messages, msg)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"msg_test"}`))
	}))
	t.Cleanup(c.srv.Close)
	return c
}

type testServer struct {
	srv    *httptest.Server
	pool   *pgxpool.Pool
	emails *emailCapture
}

func newTestServer(t *testing.T, pool *pgxpool.Pool) *testServer {
	t.Helper()

	emails := newEmailCapture(t)

	cfg := &config.Config{
		Env:                 "dev",
		HTTPAddr:            ":0",
		BaseURL:             "http://localhost",
		DBDSN:               "unused",
		JWTSecret:           "test-secret",
		LogLevel:            "error",
		LoginRateLimitRPM:   120,
		SessionDays:         7,
		EmailAPIKey:         "re_test_key",
		EmailAPIURL:         emails.srv.URL,
		EmailFrom:           "LibraDesk <onboarding@resend.dev>",
		EmailTimeoutMS:      2000,
		InviteTTLHours:      72,
		InviteRetentionDays: 30,
		MaxFailedLogins:     5,
		LockoutDurationMins: 5,
	}

	tracker := auth.NewLockoutTracker(cfg.MaxFailedLogins, time.Duration(cfg.LockoutDurationMins)*time.Minute)
	t.Cleanup(tracker.Close)

	srv := httptest.NewServer(app.NewRouter(pool, cfg, tracker))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, pool: pool, emails: emails}
}

// seedUser creates an account with a password; when admin is true it also
// grants the admin role.
func (ts *testServer) seedUser(t *testing.T, email, password string, admin bool) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	userID, err := identity.NewStore(ts.pool).CreateUser(ctx, email, hash)
	require.NoError(t, err)

	if admin {
		require.NoError(t, roles.NewStore(ts.pool).Grant(ctx, userID, roles.RoleAdmin))
	}
	return userID
}

// doJSON sends a JSON request. clientIP pins the lockout key and token, when
// set, becomes the bearer credential.
func (ts *testServer) doJSON(t *testing.T, method, path, token, clientIP string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if clientIP != "" {
		req.Header.Set("X-Real-IP", clientIP)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()

	var env successEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.NotEmpty(t, env.RequestID)
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
}

func decodeError(t *testing.T, resp *http.Response) errorEnvelope {
	t.Helper()
	defer resp.Body.Close()

	var env errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

// login authenticates through the API and returns the session token.
func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()

	resp := ts.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data auth.LoginResponse
	decodeEnvelope(t, resp, &data)
	require.NotEmpty(t, data.Token)
	return data.Token
}
