// File: internal/usecase/stats_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/ports/repository"
)

var _ StatsUseCase = (*statsUC)(nil)

// StatsUseCase serves the small reporting surface of the back office.
type StatsUseCase interface {
	// Revenue totals paid intents since the start of the current calendar
	// period, per currency in minor units. Period is day, week or month.
	Revenue(ctx context.Context, period string) (map[string]int64, error)
}

type statsUC struct {
	intents repository.PaymentIntentRepository
	log     *zerolog.Logger
}

func NewStatsUseCase(intents repository.PaymentIntentRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{intents: intents, log: logger}
}

func (u *statsUC) Revenue(ctx context.Context, period string) (map[string]int64, error) {
	switch period {
	case "day", "week", "month":
	default:
		return nil, domain.ErrInvalidArgument
	}
	return u.intents.SumPaidByPeriod(ctx, nil, period)
}
