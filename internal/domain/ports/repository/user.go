package repository

import (
	"context"

	"vpn-subscription-billing/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)

	// AddBalance credits the canonical-currency balance by delta minor units.
	AddBalance(ctx context.Context, tx Tx, id string, deltaMinor int64) error
}
