package repository

import (
	"context"

	"vpn-subscription-billing/internal/domain/model"
)

type PromoCodeRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.PromoCode, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.PromoCode, error)

	// ConsumeUse decrements uses_left by one, only while it is above zero.
	// Returns false when the code was already exhausted.
	ConsumeUse(ctx context.Context, tx Tx, id string) (bool, error)
}
