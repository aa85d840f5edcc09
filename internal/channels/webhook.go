package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookResponse carries the status of a delivered webhook.
type WebhookResponse struct {
	Status int `json:"status"`
}

// WebhookClient issues HTTP requests for the trigger_webhook action.
type WebhookClient interface {
	Request(ctx context.Context, url, method string, headers map[string]string, body map[string]any) (WebhookResponse, error)
}

// HTTPWebhookClient delivers webhooks over HTTP with a bounded timeout.
// A hung endpoint fails the action after the timeout rather than stalling
// the rule indefinitely.
type HTTPWebhookClient struct {
	client *http.Client
}

// NewHTTPWebhookClient creates a webhook client with the given timeout.
func NewHTTPWebhookClient(timeout time.Duration) *HTTPWebhookClient {
	return &HTTPWebhookClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Request sends the JSON-encoded body to url. Any non-2xx response is an
// error carrying the status code.
func (c *HTTPWebhookClient) Request(ctx context.Context, url, method string, headers map[string]string, body map[string]any) (WebhookResponse, error) {
	if method == "" {
		method = http.MethodPost
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return WebhookResponse{}, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return WebhookResponse{}, fmt.Errorf("failed to build webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return WebhookResponse{}, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return WebhookResponse{Status: resp.StatusCode},
			fmt.Errorf("webhook failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return WebhookResponse{Status: resp.StatusCode}, nil
}
