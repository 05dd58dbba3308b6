package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrUnknownProvider    = errors.New("unknown payment provider")
	ErrPromoNotFinancial  = errors.New("days promo cannot flow through a charge")
	ErrPromoExhausted     = errors.New("promo code has no uses left")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// UnsupportedCurrencyError is returned before any external call when a tariff
// has no price in the requested currency or a provider cannot charge it.
type UnsupportedCurrencyError struct {
	Provider string // empty when the tariff itself lacks the price
	Currency string
}

func (e *UnsupportedCurrencyError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("currency %s not supported", e.Currency)
	}
	return fmt.Sprintf("provider %s does not support currency %s", e.Provider, e.Currency)
}

// ProviderError carries a provider-reported business error from charge creation.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider %s: [%s] %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// VerificationError is returned by webhook verification when the signature or
// payload shape is invalid. Handlers log it and still acknowledge; state is
// never mutated on a failed verification.
type VerificationError struct {
	Provider string
	Reason   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("webhook verification failed for %s: %s", e.Provider, e.Reason)
}

// ParseError marks an external API response whose shape did not match any
// known version. Unknown shapes are an explicit error, not a silent fallback.
type ParseError struct {
	Source string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %s", e.Source, e.Detail)
}
