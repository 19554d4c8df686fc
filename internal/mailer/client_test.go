package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_Send(t *testing.T) {
	var gotAuth, gotPath string
	var gotMsg Message

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotMsg))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "re_test_key", 2000)
	msg := Message{
		From:    "LibraDesk <onboarding@resend.dev>",
		To:      []string{"new.admin@example.com"},
		Subject: "You've been invited as a Library Admin!",
		HTML:    "<p>Welcome</p>",
	}

	require.NoError(t, client.Send(context.Background(), msg))
	require.Equal(t, "Bearer re_test_key", gotAuth)
	require.Equal(t, "/emails", gotPath)
	require.Equal(t, msg, gotMsg)
}

func TestClient_Send_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Invalid from address"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "re_test_key", 2000)
	err := client.Send(context.Background(), Message{To: []string{"x@example.com"}})

	require.Error(t, err)
	require.Contains(t, err.Error(), "status 422")
	require.Contains(t, err.Error(), "Invalid from address")
}

func TestClient_Send_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, "re_test_key", 500)
	err := client.Send(context.Background(), Message{To: []string{"x@example.com"}})
	require.Error(t, err)
}
