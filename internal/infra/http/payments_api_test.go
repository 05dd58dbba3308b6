// File: internal/infra/http/payments_api_test.go
package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vpn-subscription-billing/internal/config"
	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/model"
	httpapi "vpn-subscription-billing/internal/infra/http"
	"vpn-subscription-billing/internal/usecase"
)

// fakeCharge is a scriptable usecase.ChargeUseCase.
type fakeCharge struct {
	res *usecase.CreateChargeResult
	err error
	in  usecase.CreateChargeInput
}

func (f *fakeCharge) Create(ctx context.Context, in usecase.CreateChargeInput) (*usecase.CreateChargeResult, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

// fakeStats is a scriptable usecase.StatsUseCase.
type fakeStats struct {
	sums   map[string]int64
	err    error
	period string
}

func (f *fakeStats) Revenue(ctx context.Context, period string) (map[string]int64, error) {
	f.period = period
	if f.err != nil {
		return nil, f.err
	}
	return f.sums, nil
}

func newAPIServer(charge usecase.ChargeUseCase) http.Handler {
	return newAPIServerWithStats(charge, nil)
}

func newAPIServerWithStats(charge usecase.ChargeUseCase, stats usecase.StatsUseCase) http.Handler {
	cfg := &config.HTTPConfig{Port: 0, APIToken: "api-secret", WebhookRate: 100, WebhookBurst: 100}
	return httpapi.NewServer(cfg, nil, charge, nil, stats, newTestLogger()).Handler()
}

func doCreate(h http.Handler, token, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestCreatePaymentAPI(t *testing.T) {
	validBody := `{"user_id":"user-1","tariff_id":"tariff-1","provider":"yookassa","currency":"RUB"}`

	t.Run("returns the redirect and amount", func(t *testing.T) {
		now := time.Now()
		charge := &fakeCharge{res: &usecase.CreateChargeResult{
			Intent: &model.PaymentIntent{
				ID:       "i-1",
				OrderID:  "01ARZ3NDEKTSV4RRFFQ69G5FAV",
				Status:   model.PaymentStatusPending,
				Amount:   29900,
				Currency: "RUB",
				Provider: "yookassa",
				CreatedAt: now,
			},
			RedirectURL: "https://pay.example/confirm",
		}}
		h := newAPIServer(charge)

		w := doCreate(h, "api-secret", validBody)
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
		}
		var resp struct {
			OrderID     string `json:"order_id"`
			RedirectURL string `json:"redirect_url"`
			Amount      string `json:"amount"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response json: %v", err)
		}
		if resp.RedirectURL != "https://pay.example/confirm" {
			t.Errorf("redirect = %q", resp.RedirectURL)
		}
		if resp.Amount != "299.00" {
			t.Errorf("amount = %q, want 299.00", resp.Amount)
		}
	})

	t.Run("requires a bearer token", func(t *testing.T) {
		h := newAPIServer(&fakeCharge{})
		if w := doCreate(h, "", validBody); w.Code != http.StatusUnauthorized {
			t.Errorf("no token: status = %d, want 401", w.Code)
		}
		if w := doCreate(h, "wrong", validBody); w.Code != http.StatusForbidden {
			t.Errorf("wrong token: status = %d, want 403", w.Code)
		}
	})

	t.Run("validates the payload", func(t *testing.T) {
		h := newAPIServer(&fakeCharge{})
		w := doCreate(h, "api-secret", `{"tariff_id":"tariff-1"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("unavailable methods map to 422", func(t *testing.T) {
		for _, err := range []error{
			domain.ErrUnknownProvider,
			&domain.UnsupportedCurrencyError{Provider: "yookassa", Currency: "XTR"},
		} {
			h := newAPIServer(&fakeCharge{err: err})
			w := doCreate(h, "api-secret", validBody)
			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("%v: status = %d, want 422", err, w.Code)
			}
		}
	})

	t.Run("provider outage maps to 502", func(t *testing.T) {
		h := newAPIServer(&fakeCharge{err: &domain.ProviderError{Provider: "yookassa", Message: "down"}})
		w := doCreate(h, "api-secret", validBody)
		if w.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", w.Code)
		}
	})

	t.Run("exhausted promo maps to 409", func(t *testing.T) {
		h := newAPIServer(&fakeCharge{err: domain.ErrPromoExhausted})
		w := doCreate(h, "api-secret", validBody)
		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", w.Code)
		}
	})
}

func TestTraceIDHeader(t *testing.T) {
	h := newAPIServer(&fakeCharge{})
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Header().Get("X-Trace-Id") == "" {
		t.Fatal("expected every response to carry a correlation id")
	}
}

func TestRevenueStatsAPI(t *testing.T) {
	get := func(h http.Handler, path string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		r.Header.Set("Authorization", "Bearer api-secret")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	t.Run("returns per-currency totals", func(t *testing.T) {
		stats := &fakeStats{sums: map[string]int64{"RUB": 59800, "XTR": 250}}
		h := newAPIServerWithStats(nil, stats)

		w := get(h, "/api/v1/stats/revenue?period=week")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if stats.period != "week" {
			t.Errorf("period passed = %q, want week", stats.period)
		}
		var resp struct {
			Period  string           `json:"period"`
			Revenue map[string]int64 `json:"revenue_minor"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Revenue["RUB"] != 59800 || resp.Revenue["XTR"] != 250 {
			t.Errorf("revenue = %v", resp.Revenue)
		}
	})

	t.Run("defaults to the current month", func(t *testing.T) {
		stats := &fakeStats{sums: map[string]int64{}}
		h := newAPIServerWithStats(nil, stats)

		if w := get(h, "/api/v1/stats/revenue"); w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if stats.period != "month" {
			t.Errorf("period passed = %q, want month", stats.period)
		}
	})

	t.Run("rejects unknown periods", func(t *testing.T) {
		stats := &fakeStats{err: domain.ErrInvalidArgument}
		h := newAPIServerWithStats(nil, stats)

		if w := get(h, "/api/v1/stats/revenue?period=year"); w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}
