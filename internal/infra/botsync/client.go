// File: internal/infra/botsync/client.go
package botsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vpn-subscription-billing/internal/domain/ports/adapter"
)

var _ adapter.BotSyncClient = (*Client)(nil)

// Client notifies the secondary bot backend about new entitlement state.
// The timeout is generous: each sync may fan out to many records on the
// bot side. Callers dispatch this off the webhook path.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) SyncUser(ctx context.Context, provisioningID string) error {
	body, err := json.Marshal(map[string]string{"external_id": provisioningID})
	if err != nil {
		return fmt.Errorf("marshal sync request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sync", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sync request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bot sync returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
