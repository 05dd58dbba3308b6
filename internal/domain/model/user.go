package model

import "time"

// User is the owning account as this core sees it: a provisioning identity on
// the external VPN panel and a canonical-currency balance in minor units.
type User struct {
	ID             string
	ProvisioningID string // opaque external id on the provisioning system
	BalanceMinor   int64  // canonical currency (RUB) kopecks
	CreatedAt      time.Time
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
