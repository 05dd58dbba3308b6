// File: internal/usecase/charge_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/model"
	"vpn-subscription-billing/internal/domain/ports/adapter"
	"vpn-subscription-billing/internal/domain/ports/repository"
	"vpn-subscription-billing/internal/infra/logging"
)

// Compile-time check
var _ ChargeUseCase = (*chargeUC)(nil)

// ProviderResolver is the registry surface the charge path needs.
type ProviderResolver interface {
	Resolve(key string) (adapter.PaymentProvider, error)
}

type CreateChargeInput struct {
	UserID      string
	TariffID    string // empty means balance top-up
	Provider    string
	Currency    string
	PromoCode   string
	ReturnURL   string
	Description string
	// TopUpAmount is the requested credit in minor units of Currency.
	// Only read when TariffID is empty.
	TopUpAmount int64
}

type CreateChargeResult struct {
	Intent      *model.PaymentIntent
	RedirectURL string
}

type ChargeUseCase interface {
	// Create computes the charge amount, creates the external charge with the
	// selected provider and persists a PENDING intent. No row is written when
	// the provider call fails: a ledger entry without an external reference
	// would be an orphan nothing can ever fulfill.
	Create(ctx context.Context, in CreateChargeInput) (*CreateChargeResult, error)
}

type chargeUC struct {
	intents   repository.PaymentIntentRepository
	tariffs   repository.TariffRepository
	promos    repository.PromoCodeRepository
	users     repository.UserRepository
	providers ProviderResolver
	publicURL string
	log       *zerolog.Logger
}

func NewChargeUseCase(
	intents repository.PaymentIntentRepository,
	tariffs repository.TariffRepository,
	promos repository.PromoCodeRepository,
	users repository.UserRepository,
	providers ProviderResolver,
	publicURL string,
	logger *zerolog.Logger,
) *chargeUC {
	return &chargeUC{
		intents:   intents,
		tariffs:   tariffs,
		promos:    promos,
		users:     users,
		providers: providers,
		publicURL: publicURL,
		log:       logger,
	}
}

func (u *chargeUC) Create(ctx context.Context, in CreateChargeInput) (*CreateChargeResult, error) {
	defer logging.TraceDuration(u.log, "ChargeUC.Create")()

	if in.UserID == "" || in.Provider == "" || in.Currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := u.users.FindByID(ctx, nil, in.UserID); err != nil {
		return nil, err
	}

	prov, err := u.providers.Resolve(in.Provider)
	if err != nil {
		return nil, err
	}
	if !prov.Supports(in.Currency) {
		return nil, &domain.UnsupportedCurrencyError{Provider: prov.Key(), Currency: in.Currency}
	}

	var (
		tariffID *string
		promoID  *string
		promo    *model.PromoCode
		amount   model.Money
	)
	if in.PromoCode != "" {
		promo, err = u.promos.FindByCode(ctx, nil, in.PromoCode)
		if err != nil {
			return nil, err
		}
		promoID = &promo.ID
	}
	if in.TariffID != "" {
		tariff, err := u.tariffs.FindByID(ctx, nil, in.TariffID)
		if err != nil {
			return nil, err
		}
		amount, err = ComputeCharge(tariff, in.Currency, promo)
		if err != nil {
			return nil, err
		}
		tariffID = &tariff.ID
	} else {
		if in.TopUpAmount <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		discounted, err := applyPromoDiscount(in.TopUpAmount, promo)
		if err != nil {
			return nil, err
		}
		amount = model.Money{Amount: discounted, Currency: in.Currency}
	}

	orderID := u.newOrderID()
	ctx = logging.WithOrderID(ctx, orderID)
	charge, err := prov.CreateCharge(ctx, adapter.ChargeRequest{
		OrderID:     orderID,
		Amount:      amount,
		Description: in.Description,
		ReturnURL:   in.ReturnURL,
		CallbackURL: fmt.Sprintf("%s/webhook/%s", u.publicURL, prov.Key()),
	})
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).
			Str("provider", prov.Key()).
			Msg("charge creation failed")
		return nil, err
	}

	now := time.Now()
	intent := &model.PaymentIntent{
		ID:                uuid.NewString(),
		OrderID:           orderID,
		UserID:            in.UserID,
		TariffID:          tariffID,
		Status:            model.PaymentStatusPending,
		Amount:            amount.Amount,
		Currency:          amount.Currency,
		Provider:          prov.Key(),
		ProviderReference: charge.ProviderReference,
		PromoCodeID:       promoID,
		Description:       in.Description,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := u.intents.Save(ctx, nil, intent); err != nil {
		return nil, err
	}

	logging.With(ctx, u.log).Info().
		Str("provider", prov.Key()).
		Str("amount", amount.Major()).
		Str("currency", amount.Currency).
		Msg("payment intent created")

	return &CreateChargeResult{Intent: intent, RedirectURL: charge.RedirectURL}, nil
}

func (u *chargeUC) newOrderID() string {
	// ulid.Make uses the locked default entropy source; safe under concurrent
	// charge creation and keeps order ids time-sortable.
	return ulid.Make().String()
}
