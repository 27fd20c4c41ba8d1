package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message. Delivery failures must not abort the workflow
// that triggered them; callers decide how to degrade.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// ResendClient sends through the Resend HTTP API. With an empty API key it
// logs the message and reports success, which keeps local development and
// tests free of external calls.
type ResendClient struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewResendClient(baseURL, apiKey, from string, logger zerolog.Logger) *ResendClient {
	return &ResendClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		from:       from,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (c *ResendClient) Send(ctx context.Context, msg Message) error {
	if c.apiKey == "" {
		c.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email delivery disabled, logging only")
		return nil
	}
	payload := sendRequest{From: c.from, To: []string{msg.To}, Subject: msg.Subject, HTML: msg.HTML}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("email provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
