// Package webhook delivers completed transcripts to the configured scribe
// endpoint. Delivery is best-effort: the caller logs a failure and moves on.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/moonlitpsych/medical-transcript-diarizer/internal/model"
)

type Client struct {
	url        string
	httpClient *http.Client
}

func New(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, httpClient: httpClient}
}

// Configured reports whether a webhook URL is set at all.
func (c *Client) Configured() bool {
	return c != nil && c.url != ""
}

// Deliver POSTs {status: "completed", transcript} to the webhook. One
// attempt, no retries; a non-2xx answer is an error for the caller to log.
func (c *Client) Deliver(ctx context.Context, transcript model.Transcript) error {
	payload, err := json.Marshal(model.WebhookPayload{
		Status:     "completed",
		Transcript: transcript,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, resp.Status)
	}
	return nil
}
