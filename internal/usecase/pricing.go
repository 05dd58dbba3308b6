// File: internal/usecase/pricing.go
package usecase

import (
	"math"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/model"
)

// ComputeCharge converts a tariff's per-currency price and an optional
// percent promo into the single amount the provider will be asked to charge.
// The result is always in minor units of the requested currency; adapters
// that quote major units or other conventions convert on their side.
//
// DAYS promos are redeemed through a separate non-financial path and are
// rejected here so they can never reach a provider. Exhausted promos are
// rejected at this pre-check stage, before any external call.
func ComputeCharge(tariff *model.Tariff, currency string, promo *model.PromoCode) (model.Money, error) {
	if tariff.IsZero() {
		return model.Money{}, domain.ErrInvalidArgument
	}
	price, ok := tariff.PriceIn(currency)
	if !ok {
		return model.Money{}, &domain.UnsupportedCurrencyError{Currency: currency}
	}
	price, err := applyPromoDiscount(price, promo)
	if err != nil {
		return model.Money{}, err
	}
	return model.Money{Amount: price, Currency: currency}, nil
}

// applyPromoDiscount runs the financial promo pre-checks shared by tariff
// charges and top-ups: DAYS promos and exhausted codes never reach a
// provider, percent promos discount the amount.
func applyPromoDiscount(price int64, promo *model.PromoCode) (int64, error) {
	if promo == nil || promo.IsZero() {
		return price, nil
	}
	switch promo.Type {
	case model.PromoTypePercent:
		if promo.UsesLeft <= 0 {
			return 0, domain.ErrPromoExhausted
		}
		return applyPercent(price, promo.Value), nil
	case model.PromoTypeDays:
		return 0, domain.ErrPromoNotFinancial
	default:
		return 0, domain.ErrInvalidArgument
	}
}

// applyPercent discounts amount by pct percent, floored at zero. Values
// outside [0,100] are clamped rather than rejected; the catalog is trusted
// but a bad row must not produce a negative charge.
func applyPercent(amount int64, pct int) int64 {
	if pct <= 0 {
		return amount
	}
	if pct >= 100 {
		return 0
	}
	discounted := amount - int64(math.Round(float64(amount)*float64(pct)/100.0))
	if discounted < 0 {
		return 0
	}
	return discounted
}

// ConvertToBalance converts an amount into minor units of the canonical
// balance currency using per-major-unit rates from config.
func ConvertToBalance(m model.Money, balanceCurrency string, rates map[string]float64) (int64, error) {
	if m.Currency == balanceCurrency {
		return m.Amount, nil
	}
	rate, ok := rates[m.Currency]
	if !ok || rate <= 0 {
		return 0, &domain.UnsupportedCurrencyError{Currency: m.Currency}
	}
	srcDiv := math.Pow10(model.Exponent(m.Currency))
	dstMul := math.Pow10(model.Exponent(balanceCurrency))
	major := float64(m.Amount) / srcDiv
	return int64(math.Round(major * rate * dstMul)), nil
}
