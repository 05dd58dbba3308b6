package repository

import (
	"context"

	"vpn-subscription-billing/internal/domain/model"
)

// TariffRepository reads the tariff catalog. The catalog is managed by the
// back office; this core never writes it.
type TariffRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Tariff, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Tariff, error)
}
