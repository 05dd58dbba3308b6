package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/model"
	"vpn-subscription-billing/internal/domain/ports/repository"
)

var _ repository.PaymentIntentRepository = (*paymentIntentRepo)(nil)

type paymentIntentRepo struct{ pool *pgxpool.Pool }

func NewPaymentIntentRepo(pool *pgxpool.Pool) *paymentIntentRepo {
	return &paymentIntentRepo{pool: pool}
}

const intentColumns = `id, order_id, user_id, tariff_id, status, amount, currency, provider, provider_reference, promo_code_id, description, created_at, updated_at, paid_at`

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	p := &model.PaymentIntent{}
	if err := row.Scan(
		&p.ID, &p.OrderID, &p.UserID, &p.TariffID, &p.Status, &p.Amount, &p.Currency,
		&p.Provider, &p.ProviderReference, &p.PromoCodeID, &p.Description,
		&p.CreatedAt, &p.UpdatedAt, &p.PaidAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentIntentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (
  id, order_id, user_id, tariff_id, status, amount, currency, provider, provider_reference, promo_code_id, description, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (id) DO UPDATE SET
  provider_reference=$9, description=$11, updated_at=$13;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.OrderID, p.UserID, p.TariffID, p.Status, p.Amount, p.Currency,
		p.Provider, p.ProviderReference, p.PromoCodeID, p.Description,
		p.CreatedAt, p.UpdatedAt, p.PaidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentIntentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE order_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *paymentIntentRepo) FindByLookupKey(ctx context.Context, tx repository.Tx, key string) (*model.PaymentIntent, error) {
	// order_id wins when both could match; providers that echo our id are
	// preferred over their own reference.
	q := `SELECT ` + intentColumns + `
  FROM payment_intents
 WHERE order_id=$1 OR provider_reference=$1
 ORDER BY (order_id=$1) DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, key)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

// MarkPaidIfPending is the single synchronization primitive of the payment
// core: one conditional UPDATE, so two concurrent deliveries for the same
// key are guaranteed exactly one winner.
func (r *paymentIntentRepo) MarkPaidIfPending(ctx context.Context, tx repository.Tx, lookupKey string, paidAt time.Time) (*model.PaymentIntent, bool, error) {
	q := `
UPDATE payment_intents
   SET status='paid', paid_at=$2, updated_at=NOW()
 WHERE (order_id=$1 OR provider_reference=$1)
   AND status='pending'
RETURNING ` + intentColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q, lookupKey, paidAt)
	if err != nil {
		return nil, false, err
	}
	p, err := scanIntent(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return p, true, nil
}

func (r *paymentIntentRepo) MarkFailedIfPending(ctx context.Context, tx repository.Tx, orderID string) (bool, error) {
	const q = `
UPDATE payment_intents
   SET status='failed', updated_at=NOW()
 WHERE order_id=$1 AND status='pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, orderID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentIntentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + intentColumns + `
  FROM payment_intents
 WHERE status='pending' AND created_at < $1
 ORDER BY created_at ASC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentIntent
	for rows.Next() {
		p, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *paymentIntentRepo) SumPaidByPeriod(ctx context.Context, tx repository.Tx, period string) (map[string]int64, error) {
	const q = `
SELECT currency, COALESCE(SUM(amount),0)
  FROM payment_intents
 WHERE status='paid' AND paid_at >= DATE_TRUNC($1, NOW())
 GROUP BY currency;`
	rows, err := queryRows(ctx, r.pool, tx, q, period)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var currency string
		var sum int64
		if err := rows.Scan(&currency, &sum); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[currency] = sum
	}
	return out, nil
}
