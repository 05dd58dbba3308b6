package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/model"
	"vpn-subscription-billing/internal/domain/ports/repository"
)

var _ repository.TariffRepository = (*tariffRepo)(nil)

type tariffRepo struct{ pool *pgxpool.Pool }

func NewTariffRepo(pool *pgxpool.Pool) *tariffRepo {
	return &tariffRepo{pool: pool}
}

const tariffColumns = `id, name, prices, duration_days, traffic_limit_gb, device_limit, group_id, created_at`

// prices is stored as JSONB {currency: minor units}.
func scanTariff(row pgx.Row) (*model.Tariff, error) {
	t := &model.Tariff{}
	var prices []byte
	if err := row.Scan(
		&t.ID, &t.Name, &prices, &t.DurationDays, &t.TrafficLimitGB,
		&t.DeviceLimit, &t.GroupID, &t.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if err := json.Unmarshal(prices, &t.Prices); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func (r *tariffRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tariff, error) {
	q := `SELECT ` + tariffColumns + ` FROM tariffs WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanTariff(row)
}

func (r *tariffRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error) {
	q := `SELECT ` + tariffColumns + ` FROM tariffs ORDER BY name;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
