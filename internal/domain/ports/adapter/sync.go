package adapter

import "context"

// BotSyncClient propagates new entitlement state to the secondary bot
// backend. Best-effort; callers dispatch it off the webhook path.
type BotSyncClient interface {
	SyncUser(ctx context.Context, provisioningID string) error
}

// EntitlementCache invalidates read caches keyed by a user's provisioning
// identity so reads reflect new entitlements immediately after fulfillment.
type EntitlementCache interface {
	InvalidateUser(ctx context.Context, provisioningID string)
}
