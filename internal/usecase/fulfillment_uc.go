// File: internal/usecase/fulfillment_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/model"
	"vpn-subscription-billing/internal/domain/ports/adapter"
	"vpn-subscription-billing/internal/domain/ports/repository"
	"vpn-subscription-billing/internal/infra/logging"
	"vpn-subscription-billing/internal/infra/metrics"
)

// Compile-time check
var _ FulfillmentUseCase = (*fulfillmentUC)(nil)

type MarkPaidStatus int

const (
	MarkPaidTransitioned MarkPaidStatus = iota
	MarkPaidAlreadyPaid
	MarkPaidNotFound
)

type MarkPaidResult struct {
	Status MarkPaidStatus
	Intent *model.PaymentIntent // set only for Transitioned
}

// SyncDispatcher is the detached-task surface for background bot sync.
type SyncDispatcher interface {
	Submit(task func(ctx context.Context) error) error
}

// BillingRates is the config slice the orchestrator needs for top-ups.
type BillingRates struct {
	BalanceCurrency string
	Rates           map[string]float64
}

type FulfillmentUseCase interface {
	// MarkPaid is the idempotency guard: exactly one caller per lookup key
	// ever sees Transitioned; replays and races collapse to AlreadyPaid.
	MarkPaid(ctx context.Context, lookupKey string) (*MarkPaidResult, error)

	// HandlePaid runs the guard and, on the single winning transition,
	// executes fulfillment. Duplicate deliveries and unknown keys return
	// without error so the webhook path can acknowledge them.
	HandlePaid(ctx context.Context, lookupKey string) (*MarkPaidResult, error)

	// Fulfill applies the financial/entitlement effect of a freshly paid
	// intent. It is only ever invoked on a Transitioned result.
	Fulfill(ctx context.Context, intent *model.PaymentIntent) error
}

type fulfillmentUC struct {
	intents      repository.PaymentIntentRepository
	tariffs      repository.TariffRepository
	promos       repository.PromoCodeRepository
	users        repository.UserRepository
	provisioning adapter.ProvisioningClient
	botSync      adapter.BotSyncClient
	cache        adapter.EntitlementCache
	dispatcher   SyncDispatcher
	txm          repository.TransactionManager
	rates        BillingRates
	log          *zerolog.Logger
}

func NewFulfillmentUseCase(
	intents repository.PaymentIntentRepository,
	tariffs repository.TariffRepository,
	promos repository.PromoCodeRepository,
	users repository.UserRepository,
	provisioning adapter.ProvisioningClient,
	botSync adapter.BotSyncClient,
	cache adapter.EntitlementCache,
	dispatcher SyncDispatcher,
	txm repository.TransactionManager,
	rates BillingRates,
	logger *zerolog.Logger,
) *fulfillmentUC {
	return &fulfillmentUC{
		intents:      intents,
		tariffs:      tariffs,
		promos:       promos,
		users:        users,
		provisioning: provisioning,
		botSync:      botSync,
		cache:        cache,
		dispatcher:   dispatcher,
		txm:          txm,
		rates:        rates,
		log:          logger,
	}
}

func (u *fulfillmentUC) MarkPaid(ctx context.Context, lookupKey string) (*MarkPaidResult, error) {
	intent, transitioned, err := u.intents.MarkPaidIfPending(ctx, nil, lookupKey, time.Now())
	if err != nil {
		return nil, err
	}
	if transitioned {
		metrics.IncPayment(intent.Provider, string(model.PaymentStatusPaid))
		metrics.AddPaymentRevenue(intent.Currency, intent.Amount)
		return &MarkPaidResult{Status: MarkPaidTransitioned, Intent: intent}, nil
	}

	// Zero rows changed: either the row is already terminal or it never
	// existed. Distinguish for the caller, who acknowledges both.
	if _, err := u.intents.FindByLookupKey(ctx, nil, lookupKey); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &MarkPaidResult{Status: MarkPaidNotFound}, nil
		}
		return nil, err
	}
	return &MarkPaidResult{Status: MarkPaidAlreadyPaid}, nil
}

func (u *fulfillmentUC) HandlePaid(ctx context.Context, lookupKey string) (*MarkPaidResult, error) {
	defer logging.TraceDuration(u.log, "FulfillmentUC.HandlePaid")()

	res, err := u.MarkPaid(ctx, lookupKey)
	if err != nil {
		return nil, err
	}
	switch res.Status {
	case MarkPaidAlreadyPaid:
		u.log.Info().Str("lookup_key", lookupKey).Msg("duplicate payment notification ignored")
		return res, nil
	case MarkPaidNotFound:
		// A missing intent cannot become fulfillable later; log and let the
		// caller stop provider retries.
		u.log.Warn().Str("lookup_key", lookupKey).Msg("payment notification matched no intent")
		return res, nil
	}
	if err := u.Fulfill(ctx, res.Intent); err != nil {
		return nil, err
	}
	return res, nil
}

func (u *fulfillmentUC) Fulfill(ctx context.Context, intent *model.PaymentIntent) error {
	user, err := u.users.FindByID(ctx, nil, intent.UserID)
	if err != nil {
		metrics.IncFulfillment(kindOf(intent), "user_missing")
		return err
	}

	if intent.IsTopUp() {
		done, err := u.fulfillTopUp(ctx, intent, user)
		if err != nil {
			return err
		}
		if !done {
			// Credit failed after the paid transition; the alert is the
			// remediation surface, nothing else runs for this intent.
			return nil
		}
	} else {
		done, err := u.fulfillSubscription(ctx, intent, user)
		if err != nil {
			return err
		}
		if !done {
			// Provisioning failed after the paid transition. The financial
			// fact is committed and must not be replayed through the guard;
			// the reconciliation log above is the remediation surface.
			return nil
		}
	}

	// Top-up promo consumption happens inside the balance transaction.
	if intent.PromoCodeID != nil && !intent.IsTopUp() {
		u.consumePromo(ctx, intent)
	}

	u.cache.InvalidateUser(ctx, user.ProvisioningID)
	u.dispatchSync(user.ProvisioningID, intent.ID)
	return nil
}

// fulfillTopUp returns done=false when the credit could not be applied after
// the paid transition: redelivery would only see AlreadyPaid, so the failure
// is logged for manual reconciliation instead of surfacing as a 500.
func (u *fulfillmentUC) fulfillTopUp(ctx context.Context, intent *model.PaymentIntent, user *model.User) (bool, error) {
	credit, err := ConvertToBalance(
		model.Money{Amount: intent.Amount, Currency: intent.Currency},
		u.rates.BalanceCurrency, u.rates.Rates,
	)
	if err != nil {
		u.reconciliationAlert(intent, user, err, "balance conversion failed after paid transition")
		metrics.IncFulfillment("topup", "rate_missing")
		return false, nil
	}
	// Credit and promo consumption commit or roll back together.
	err = u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.users.AddBalance(ctx, tx, user.ID, credit); err != nil {
			return err
		}
		if intent.PromoCodeID != nil {
			consumed, err := u.promos.ConsumeUse(ctx, tx, *intent.PromoCodeID)
			if err != nil {
				return err
			}
			if !consumed {
				u.log.Warn().
					Str("order_id", intent.OrderID).
					Str("promo_code_id", *intent.PromoCodeID).
					Msg("promo code exhausted before fulfillment")
			}
		}
		return nil
	})
	if err != nil {
		u.reconciliationAlert(intent, user, err, "balance credit failed after paid transition")
		metrics.IncFulfillment("topup", "balance_failed")
		return false, nil
	}
	metrics.IncFulfillment("topup", "ok")
	u.log.Info().
		Str("order_id", intent.OrderID).
		Str("user_id", user.ID).
		Int64("credit_minor", credit).
		Msg("balance credited")
	return true, nil
}

// fulfillSubscription returns done=false when the provisioning update failed:
// the intent stays PAID and the failure is logged for manual reconciliation.
func (u *fulfillmentUC) fulfillSubscription(ctx context.Context, intent *model.PaymentIntent, user *model.User) (bool, error) {
	tariff, err := u.tariffs.FindByID(ctx, nil, *intent.TariffID)
	if err != nil {
		metrics.IncFulfillment("subscription", "tariff_missing")
		return false, err
	}

	current, err := u.provisioning.FetchUser(ctx, user.ProvisioningID)
	if err != nil {
		u.reconciliationAlert(intent, user, err, "fetch provisioning state failed")
		metrics.IncFulfillment("subscription", "provisioning_failed")
		return false, nil
	}

	base := time.Now()
	if current.ExpireAt.After(base) {
		base = current.ExpireAt
	}
	upd := adapter.ProvisioningUpdate{
		ExternalID:   user.ProvisioningID,
		ExpireAt:     base.AddDate(0, 0, tariff.DurationDays),
		ActiveGroups: current.ActiveGroups,
	}
	if tariff.GroupID != "" {
		// Active group is overwritten, not appended.
		upd.ActiveGroups = []string{tariff.GroupID}
	}
	if tariff.TrafficLimitGB != nil {
		limit := int64(*tariff.TrafficLimitGB) * 1024 * 1024 * 1024
		upd.TrafficLimitBytes = &limit
	}

	if err := u.provisioning.UpdateUser(ctx, upd); err != nil {
		u.reconciliationAlert(intent, user, err, "provisioning update failed after paid transition")
		metrics.IncFulfillment("subscription", "provisioning_failed")
		return false, nil
	}

	metrics.IncFulfillment("subscription", "ok")
	u.log.Info().
		Str("order_id", intent.OrderID).
		Str("user_id", user.ID).
		Str("tariff_id", tariff.ID).
		Time("expire_at", upd.ExpireAt).
		Msg("subscription extended")
	return true, nil
}

// reconciliationAlert is the loud log for the one failure that cannot be
// rolled back: the paid transition already happened.
func (u *fulfillmentUC) reconciliationAlert(intent *model.PaymentIntent, user *model.User, err error, msg string) {
	u.log.Error().Err(err).
		Str("order_id", intent.OrderID).
		Str("intent_id", intent.ID).
		Str("user_id", user.ID).
		Str("provisioning_id", user.ProvisioningID).
		Str("provider", intent.Provider).
		Bool("needs_reconciliation", true).
		Msg(msg)
}

func (u *fulfillmentUC) consumePromo(ctx context.Context, intent *model.PaymentIntent) {
	consumed, err := u.promos.ConsumeUse(ctx, nil, *intent.PromoCodeID)
	if err != nil {
		u.log.Error().Err(err).
			Str("order_id", intent.OrderID).
			Str("promo_code_id", *intent.PromoCodeID).
			Msg("promo consume failed")
		return
	}
	if !consumed {
		// The charge-time pre-check should have caught this; the code ran
		// out between creation and fulfillment.
		u.log.Warn().
			Str("order_id", intent.OrderID).
			Str("promo_code_id", *intent.PromoCodeID).
			Msg("promo code exhausted before fulfillment")
	}
}

func (u *fulfillmentUC) dispatchSync(provisioningID, intentID string) {
	// The bot backend is optional; deployments without one skip the sync.
	if u.botSync == nil {
		return
	}
	err := u.dispatcher.Submit(func(ctx context.Context) error {
		if err := u.botSync.SyncUser(ctx, provisioningID); err != nil {
			metrics.IncSync("error")
			u.log.Warn().Err(err).
				Str("provisioning_id", provisioningID).
				Str("intent_id", intentID).
				Msg("bot sync failed")
			return err
		}
		metrics.IncSync("ok")
		return nil
	})
	if err != nil {
		metrics.IncSync("dropped")
		u.log.Warn().Err(err).
			Str("provisioning_id", provisioningID).
			Str("intent_id", intentID).
			Msg("bot sync not scheduled")
	}
}

func kindOf(intent *model.PaymentIntent) string {
	if intent.IsTopUp() {
		return "topup"
	}
	return "subscription"
}
