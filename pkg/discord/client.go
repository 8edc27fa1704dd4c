// Package discord sends embed messages to a Discord channel webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/hookcord/pkg/logger"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Message is the body of a webhook execution request.
type Message struct {
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

// Embed is a rich message block.
type Embed struct {
	Author *Author `json:"author,omitempty"`
	Title  string  `json:"title,omitempty"`
	Fields []Field `json:"fields,omitempty"`
	Color  int     `json:"color"`
}

// Field is one name/value row in an embed. Name may be empty.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Author is the header block shown above an embed.
type Author struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

// DeliveryError reports a webhook response other than 204 No Content.
type DeliveryError struct {
	Body       string
	StatusCode int
}

func (e *DeliveryError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("discord webhook returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("discord webhook returned status %d: %s", e.StatusCode, e.Body)
}

// Client posts messages to a single Discord webhook URL.
type Client struct {
	httpClient *http.Client
	webhookURL string
}

// NewClient creates a client for webhookURL. A zero timeout selects the default.
func NewClient(webhookURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		webhookURL: webhookURL,
	}
}

// Send posts msg once. Success is a 204 response; failures are not retried.
func (c *Client) Send(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hookcord/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to discord: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn(ctx, "failed to close response body", logger.Fields{"error": err.Error()})
		}
	}()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		logger.Debug(ctx, "failed to read discord error body", logger.Fields{"error": err.Error()})
	}
	return &DeliveryError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
}
