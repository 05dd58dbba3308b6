// File: internal/infra/http/payments_api.go
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/model"
	"vpn-subscription-billing/internal/infra/logging"
	"vpn-subscription-billing/internal/usecase"
)

var validate = validator.New()

type createPaymentRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	TariffID    string `json:"tariff_id"`
	Provider    string `json:"provider" validate:"required"`
	Currency    string `json:"currency" validate:"required,uppercase"`
	PromoCode   string `json:"promo_code"`
	ReturnURL   string `json:"return_url" validate:"omitempty,url"`
	Description string `json:"description"`
	TopUpAmount int64  `json:"top_up_amount" validate:"gte=0"`
}

type createPaymentResponse struct {
	OrderID     string `json:"order_id"`
	RedirectURL string `json:"redirect_url"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

type apiError struct {
	Error string `json:"error"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "malformed request body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	ctx := logging.WithUserID(r.Context(), req.UserID)
	res, err := s.charges.Create(ctx, usecase.CreateChargeInput{
		UserID:      req.UserID,
		TariffID:    req.TariffID,
		Provider:    req.Provider,
		Currency:    req.Currency,
		PromoCode:   req.PromoCode,
		ReturnURL:   req.ReturnURL,
		Description: req.Description,
		TopUpAmount: req.TopUpAmount,
	})
	if err != nil {
		s.writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createPaymentResponse{
		OrderID:     res.Intent.OrderID,
		RedirectURL: res.RedirectURL,
		Amount:      model.Money{Amount: res.Intent.Amount, Currency: res.Intent.Currency}.Major(),
		Currency:    res.Intent.Currency,
	})
}

func (s *Server) writePaymentError(w http.ResponseWriter, err error) {
	var (
		currErr *domain.UnsupportedCurrencyError
		provErr *domain.ProviderError
	)
	switch {
	case errors.As(err, &currErr), errors.Is(err, domain.ErrUnknownProvider):
		// The storefront treats both the same way: offer another method.
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: "payment method unavailable"})
	case errors.Is(err, domain.ErrPromoExhausted):
		writeJSON(w, http.StatusConflict, apiError{Error: "promo code exhausted"})
	case errors.Is(err, domain.ErrPromoNotFinancial):
		writeJSON(w, http.StatusBadRequest, apiError{Error: "promo code does not apply to payments"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Error: "not found"})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request"})
	case errors.As(err, &provErr):
		s.log.Error().Err(err).Str("provider", provErr.Provider).Msg("provider charge creation failed")
		writeJSON(w, http.StatusBadGateway, apiError{Error: "payment provider unavailable"})
	default:
		s.log.Error().Err(err).Msg("failed to create payment")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
	}
}

func (s *Server) handleRevenueStats(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}
	sums, err := s.stats.Revenue(r.Context(), period)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "period must be day, week or month"})
			return
		}
		s.log.Error().Err(err).Msg("failed to compute revenue stats")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": period, "revenue_minor": sums})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
