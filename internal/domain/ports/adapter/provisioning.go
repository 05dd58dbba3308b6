package adapter

import (
	"context"
	"time"
)

// ProvisionedUser is the entitlement state the external VPN panel tracks.
type ProvisionedUser struct {
	ExternalID        string
	ExpireAt          time.Time
	ActiveGroups      []string
	TrafficLimitBytes int64
}

// ProvisioningUpdate is one PATCH to the panel. ActiveGroups overwrites the
// current assignment; TrafficLimitBytes is only sent when non-nil.
type ProvisioningUpdate struct {
	ExternalID        string
	ExpireAt          time.Time
	ActiveGroups      []string
	TrafficLimitBytes *int64
}

// ProvisioningClient talks to the external subscription provisioning system.
type ProvisioningClient interface {
	FetchUser(ctx context.Context, externalID string) (*ProvisionedUser, error)
	UpdateUser(ctx context.Context, upd ProvisioningUpdate) error
}
