package adapter

import (
	"context"
	"net/http"

	"vpn-subscription-billing/internal/domain/model"
)

// Outcome is the canonical webhook status vocabulary. Every provider's own
// vocabulary (paid, succeeded, Settled, success, ...) maps onto these two.
type Outcome string

const (
	OutcomePaid  Outcome = "paid"
	OutcomeOther Outcome = "other" // unknown or irrelevant event types; a no-op, not a fault
)

// ChargeRequest is everything an adapter needs to create an external charge.
type ChargeRequest struct {
	OrderID     string
	Amount      model.Money
	Description string
	ReturnURL   string
	CallbackURL string
}

// Charge is the provider's answer to a successful creation call.
type Charge struct {
	RedirectURL       string
	ProviderReference string
}

// Notification is a verified, normalized inbound webhook.
type Notification struct {
	// LookupKey is whichever identifier the payload actually carries: the
	// original order id when the provider echoes it, otherwise the provider's
	// own reference. The ledger resolves either.
	LookupKey string
	Outcome   Outcome
	Amount    model.Money // as claimed by the provider; zero value when absent
}

// PaymentProvider is the uniform capability contract one payment provider
// implements. All protocol heterogeneity (signature algorithm, payload shape,
// minor-unit convention, acknowledgment body) lives behind this interface;
// no call site outside the registry branches on a provider name.
type PaymentProvider interface {
	Key() string

	// Supports reports whether the provider can charge the given currency.
	// Single-currency providers gate here, before any external call.
	Supports(currency string) bool

	// CreateCharge performs the provider's creation call and returns a
	// redirect URL plus the provider-side reference. Business failures are a
	// *domain.ProviderError; a "pending" result is never an error.
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)

	// VerifyWebhook validates authenticity of an inbound notification and
	// normalizes it. Invalid signature or shape is a *domain.VerificationError.
	VerifyWebhook(r *http.Request, body []byte) (*Notification, error)

	// Ack writes the provider-exact acknowledgment. Providers retry
	// indefinitely on anything else, so this is written for failed
	// verifications too.
	Ack(w http.ResponseWriter, r *http.Request)
}
