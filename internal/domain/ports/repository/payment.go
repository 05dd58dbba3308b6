package repository

import (
	"context"
	"time"

	"vpn-subscription-billing/internal/domain/model"
)

// PaymentIntentRepository is the persisted ledger of purchase/top-up attempts.
type PaymentIntentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentIntent) error
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.PaymentIntent, error)

	// FindByLookupKey resolves an intent by order_id first, then by
	// provider_reference. domain.ErrNotFound when neither matches.
	FindByLookupKey(ctx context.Context, tx Tx, key string) (*model.PaymentIntent, error)

	// MarkPaidIfPending is the idempotency guard: a single conditional UPDATE
	// that sets status to paid only while it is pending. It returns the
	// transitioned intent, or (nil, false, nil) when zero rows changed.
	MarkPaidIfPending(ctx context.Context, tx Tx, lookupKey string, paidAt time.Time) (*model.PaymentIntent, bool, error)

	// MarkFailedIfPending expires a stale pending intent. Same CAS shape.
	MarkFailedIfPending(ctx context.Context, tx Tx, orderID string) (bool, error)

	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error)

	// SumPaidByPeriod totals paid intents since the start of the current
	// calendar period (day/week/month), in minor units per currency.
	SumPaidByPeriod(ctx context.Context, tx Tx, period string) (map[string]int64, error)
}
