// Package notify sends best-effort push notifications to message
// recipients.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultExpoEndpoint = "https://exp.host/--/api/v2/push/send"

type Push struct {
	To                  string `json:"to"`
	Title               string `json:"title"`
	Body                string `json:"body"`
	Sound               string `json:"sound,omitempty"`
	DisplayInForeground bool   `json:"_displayInForeground"`
}

type Sender interface {
	Send(ctx context.Context, p Push) error
}

type ExpoClient struct {
	endpoint string
	http     *http.Client
}

func NewExpoClient(endpoint string, h *http.Client) *ExpoClient {
	if endpoint == "" {
		endpoint = defaultExpoEndpoint
	}
	if h == nil {
		h = &http.Client{Timeout: 10 * time.Second}
	}
	return &ExpoClient{endpoint: endpoint, http: h}
}

func (c *ExpoClient) Send(ctx context.Context, p Push) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("expo push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("expo push: status %d", resp.StatusCode)
	}
	return nil
}
