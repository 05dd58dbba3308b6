package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // charge created with provider; awaiting webhook
	PaymentStatusPaid    PaymentStatus = "paid"    // terminal; must never be re-applied
	PaymentStatusFailed  PaymentStatus = "failed"  // expired or explicitly failed
)

// PaymentIntent records one purchase or balance top-up attempt. Rows are
// created PENDING when the external charge exists, mutated exactly once by
// the conditional paid-transition, and never deleted by this subsystem.
type PaymentIntent struct {
	ID                string // UUID, row id
	OrderID           string // globally unique caller-assigned key
	UserID            string
	TariffID          *string // nil means balance top-up
	Status            PaymentStatus
	Amount            int64 // minor units of Currency, post-discount
	Currency          string
	Provider          string // key into the provider registry
	ProviderReference string // opaque id returned by the provider at creation
	PromoCodeID       *string
	Description       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PaidAt            *time.Time
}

func (p *PaymentIntent) IsZero() bool { return p == nil || p.ID == "" }

// IsTopUp reports whether this intent credits the internal balance rather
// than purchasing a tariff.
func (p *PaymentIntent) IsTopUp() bool { return p.TariffID == nil }
