package model

import "time"

// Tariff is the pricing/catalog entity: per-currency price, duration, limits
// and the provisioning group the purchase assigns. Read-only for this core.
type Tariff struct {
	ID             string
	Name           string
	Prices         map[string]int64 // currency code -> price in minor units
	DurationDays   int
	TrafficLimitGB *int // nil means unlimited
	DeviceLimit    int
	GroupID        string // external provisioning group; empty keeps current
	CreatedAt      time.Time
}

func (t *Tariff) IsZero() bool { return t == nil || t.ID == "" }

// PriceIn returns the tariff price in the requested currency.
func (t *Tariff) PriceIn(currency string) (int64, bool) {
	p, ok := t.Prices[currency]
	return p, ok
}
