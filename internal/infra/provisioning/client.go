// File: internal/infra/provisioning/client.go
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/ports/adapter"
)

var _ adapter.ProvisioningClient = (*Client)(nil)

// Client talks to the external VPN provisioning panel. Responses are parsed
// by explicit per-version functions; a shape that matches neither version is
// a typed ParseError, never a silent fallback.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// userV2 is the current panel response: a response envelope.
type userV2 struct {
	Response *struct {
		UUID              string    `json:"uuid"`
		ExpireAt          time.Time `json:"expireAt"`
		ActiveGroups      []string  `json:"activeGroups"`
		TrafficLimitBytes int64     `json:"trafficLimitBytes"`
	} `json:"response"`
}

// userV1 is the legacy flat shape still served by older panels.
type userV1 struct {
	UUID              string    `json:"uuid"`
	ExpireAt          time.Time `json:"expire_at"`
	Groups            []string  `json:"groups"`
	TrafficLimitBytes int64     `json:"traffic_limit"`
}

func parseUserV2(raw []byte) (*adapter.ProvisionedUser, error) {
	var v userV2
	if err := json.Unmarshal(raw, &v); err != nil || v.Response == nil || v.Response.UUID == "" {
		return nil, &domain.ParseError{Source: "provisioning", Detail: "not a v2 user envelope"}
	}
	return &adapter.ProvisionedUser{
		ExternalID:        v.Response.UUID,
		ExpireAt:          v.Response.ExpireAt,
		ActiveGroups:      v.Response.ActiveGroups,
		TrafficLimitBytes: v.Response.TrafficLimitBytes,
	}, nil
}

func parseUserV1(raw []byte) (*adapter.ProvisionedUser, error) {
	var v userV1
	if err := json.Unmarshal(raw, &v); err != nil || v.UUID == "" {
		return nil, &domain.ParseError{Source: "provisioning", Detail: "not a v1 user object"}
	}
	return &adapter.ProvisionedUser{
		ExternalID:        v.UUID,
		ExpireAt:          v.ExpireAt,
		ActiveGroups:      v.Groups,
		TrafficLimitBytes: v.TrafficLimitBytes,
	}, nil
}

func (c *Client) FetchUser(ctx context.Context, externalID string) (*adapter.ProvisionedUser, error) {
	url := fmt.Sprintf("%s/users/%s", c.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create provisioning request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch provisioned user: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read provisioning response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provisioning returned %d: %s", resp.StatusCode, string(raw))
	}

	if user, err := parseUserV2(raw); err == nil {
		return user, nil
	}
	if user, err := parseUserV1(raw); err == nil {
		return user, nil
	}
	return nil, &domain.ParseError{Source: "provisioning", Detail: "user response matched no known version"}
}

func (c *Client) UpdateUser(ctx context.Context, upd adapter.ProvisioningUpdate) error {
	payload := map[string]interface{}{
		"uuid":         upd.ExternalID,
		"expireAt":     upd.ExpireAt.UTC().Format(time.RFC3339),
		"activeGroups": upd.ActiveGroups,
	}
	if upd.TrafficLimitBytes != nil {
		payload["trafficLimitBytes"] = *upd.TrafficLimitBytes
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal provisioning update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/users", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create provisioning request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("update provisioned user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("provisioning update returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
