package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestE2E_LoginLockout(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	ts := newTestServer(t, pool)

	ts.seedUser(t, "reader@example.com", "correct-horse", false)

	attempt := func(clientIP, password string) *http.Response {
		return ts.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", clientIP, map[string]string{
			"email":    "reader@example.com",
			"password": password,
		})
	}

	const clientIP = "203.0.113.7"

	// The first two failures carry no countdown.
	for i := 0; i < 2; i++ {
		resp := attempt(clientIP, "wrong-password")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "Invalid email or password.", decodeError(t, resp).Error.Message)
	}

	// The countdown starts when two attempts remain.
	resp := attempt(clientIP, "wrong-password")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Invalid email or password. 2 attempts remaining.", decodeError(t, resp).Error.Message)

	resp = attempt(clientIP, "wrong-password")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Invalid email or password. 1 attempt remaining.", decodeError(t, resp).Error.Message)

	// The fifth failure locks the client out.
	resp = attempt(clientIP, "wrong-password")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "Too many failed attempts. Please try again in 5 minutes.", decodeError(t, resp).Error.Message)

	// While locked, even the correct password is refused.
	resp = attempt(clientIP, "correct-horse")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Contains(t, decodeError(t, resp).Error.Message, "Too many failed attempts")

	// Other clients are unaffected.
	resp = attempt("198.51.100.9", "correct-horse")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestE2E_LoginValidationSkipsLockoutCounter(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	ts := newTestServer(t, pool)
	ts.seedUser(t, "reader@example.com", "correct-horse", false)

	const clientIP = "203.0.113.8"

	// Malformed submissions are rejected before the guard sees them, so
	// they never consume attempts.
	for i := 0; i < 10; i++ {
		resp := ts.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", clientIP, map[string]string{
			"email":    "not-an-email",
			"password": "whatever",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}

	resp := ts.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", clientIP, map[string]string{
		"email":    "reader@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
