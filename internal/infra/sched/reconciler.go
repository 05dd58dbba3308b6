// File: internal/infra/sched/reconciler.go
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vpn-subscription-billing/internal/domain/ports/repository"
	"vpn-subscription-billing/internal/infra/metrics"
)

// Reconciler periodically scans stale pending payment intents. Intents older
// than staleAfter are surfaced for operators (the provider callback may have
// been lost); intents older than failAfter are expired with the same
// conditional transition the webhook path uses, so a very late webhook still
// cannot double-apply anything.
type Reconciler struct {
	intents    repository.PaymentIntentRepository
	interval   time.Duration
	staleAfter time.Duration
	failAfter  time.Duration
	log        *zerolog.Logger
}

func NewReconciler(intents repository.PaymentIntentRepository, interval, staleAfter, failAfter time.Duration, logger *zerolog.Logger) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	if failAfter <= 0 {
		failAfter = 24 * time.Hour
	}
	return &Reconciler{
		intents:    intents,
		interval:   interval,
		staleAfter: staleAfter,
		failAfter:  failAfter,
		log:        logger,
	}
}

func (w *Reconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *Reconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.intents.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("reconciler: list pending failed")
		return
	}

	failCutoff := time.Now().Add(-w.failAfter)
	for _, p := range pending {
		if p.CreatedAt.Before(failCutoff) {
			expired, err := w.intents.MarkFailedIfPending(ctx, nil, p.OrderID)
			if err != nil {
				w.log.Error().Err(err).Str("order_id", p.OrderID).Msg("reconciler: expire failed")
				continue
			}
			if expired {
				metrics.IncPayment(p.Provider, "failed")
				w.log.Info().Str("order_id", p.OrderID).Str("provider", p.Provider).Msg("reconciler: pending intent expired")
			}
			continue
		}
		w.log.Warn().
			Str("order_id", p.OrderID).
			Str("provider", p.Provider).
			Time("created_at", p.CreatedAt).
			Msg("reconciler: stale pending intent")
	}
}
