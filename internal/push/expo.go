// Package push delivers mobile push notifications through the Expo push HTTP API.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"example.com/shareactivities/internal/logging"
)

// DefaultEndpoint is Expo's public push endpoint.
const DefaultEndpoint = "https://exp.host/--/api/v2/push/send"

// Transport sends a single push message. Implementations may block on the network and
// must honour ctx cancellation.
type Transport interface {
	Send(ctx context.Context, token, title, body string) (Receipt, error)
}

// Receipt is the raw provider response, kept for logging only.
type Receipt struct {
	StatusCode int
	Body       string
}

// Message is the request payload understood by the Expo push service.
type Message struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Sound string         `json:"sound"`
	Data  map[string]any `json:"data,omitempty"`
}

// Option configures the ExpoClient.
type Option func(*ExpoClient)

// WithLogger overrides the logger used to report provider responses.
func WithLogger(logger *log.Logger) Option {
	return func(c *ExpoClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *ExpoClient) {
		if client != nil {
			c.client = client
		}
	}
}

// ExpoClient calls the Expo push endpoint.
type ExpoClient struct {
	client *http.Client
	url    string
	logger *log.Logger
}

// NewExpoClient constructs an ExpoClient. timeout bounds every request even when the caller's
// context has no deadline.
func NewExpoClient(endpoint string, timeout time.Duration, opts ...Option) *ExpoClient {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	c := &ExpoClient{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(endpoint, "/"),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts a single notification.
func (c *ExpoClient) Send(ctx context.Context, token, title, body string) (Receipt, error) {
	payload, err := json.Marshal(Message{
		To:    token,
		Title: title,
		Body:  body,
		Sound: "default",
		Data:  map[string]any{"source": "shareactivities"},
	})
	if err != nil {
		return Receipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	resp, err := c.client.Do(req)
	if err != nil {
		return Receipt{}, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	receipt := Receipt{StatusCode: resp.StatusCode, Body: string(raw)}
	c.logger.Debug("expo push response", "status", resp.StatusCode, "body", receipt.Body)

	if resp.StatusCode >= 300 {
		return receipt, &DeliveryError{Status: resp.StatusCode, Body: receipt.Body}
	}
	return receipt, nil
}

// DeliveryError represents a non-successful provider response.
type DeliveryError struct {
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("push provider returned status %d: %s", e.Status, e.Body)
}
