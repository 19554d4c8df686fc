package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Message is an outbound email.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Sender delivers email messages. The invitation service treats delivery
// failures as warnings, never as reasons to roll back committed work.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client talks to a Resend-compatible email API (POST {base}/emails with a
// bearer key).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates an email client with the specified timeout
func NewClient(baseURL, apiKey string, timeoutMS int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Send delivers the message through the email API.
// A non-2xx response is an error; the response body is included for operator
// visibility since providers put the useful detail there.
func (c *Client) Send(ctx context.Context, msg Message) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("email API returned status %d: %s", resp.StatusCode, string(body))
	}

	log.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Msg("Email sent successfully")

	return nil
}
