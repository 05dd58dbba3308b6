// File: internal/infra/providers/yookassa.go
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/model"
	"vpn-subscription-billing/internal/domain/ports/adapter"
)

// YooKassa charges through the v3 payments API with shop-id/secret Basic
// auth. Webhooks carry no signature; authenticity rests on the provider's
// source-IP allowlist enforced upstream, so verification here is shape-only.
type YooKassa struct {
	shopID    string
	secretKey string
	baseURL   string
	client    *http.Client
}

var _ adapter.PaymentProvider = (*YooKassa)(nil)

func NewYooKassa(shopID, secretKey, baseURL string) *YooKassa {
	if baseURL == "" {
		baseURL = "https://api.yookassa.ru/v3"
	}
	return &YooKassa{shopID: shopID, secretKey: secretKey, baseURL: baseURL, client: newHTTPClient()}
}

func (y *YooKassa) Key() string { return "yookassa" }

func (y *YooKassa) Supports(currency string) bool {
	return supported([]string{"RUB"}, currency)
}

type yooKassaCreateResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
	Type        string `json:"type"` // "error" on failure
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (y *YooKassa) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	payload := map[string]interface{}{
		"amount": map[string]string{
			"value":    req.Amount.Major(),
			"currency": req.Amount.Currency,
		},
		"capture":     true,
		"description": req.Description,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": req.ReturnURL,
		},
		"metadata": map[string]string{"order_id": req.OrderID},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal yookassa request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, y.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create yookassa request: %w", err)
	}
	httpReq.SetBasicAuth(y.shopID, y.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	// YooKassa deduplicates creation calls by this key.
	httpReq.Header.Set("Idempotence-Key", req.OrderID)

	resp, err := y.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send yookassa request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read yookassa response: %w", err)
	}
	var out yooKassaCreateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal yookassa response: %w, body: %s", err, string(raw))
	}
	if resp.StatusCode != http.StatusOK || out.Type == "error" {
		return nil, &domain.ProviderError{Provider: y.Key(), Code: out.Code, Message: out.Description}
	}
	if out.Confirmation.ConfirmationURL == "" {
		return nil, &domain.ProviderError{Provider: y.Key(), Message: "no confirmation url in response"}
	}
	return &adapter.Charge{RedirectURL: out.Confirmation.ConfirmationURL, ProviderReference: out.ID}, nil
}

type yooKassaEvent struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"amount"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

func (y *YooKassa) VerifyWebhook(r *http.Request, body []byte) (*adapter.Notification, error) {
	var ev yooKassaEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, &domain.VerificationError{Provider: y.Key(), Reason: "malformed json"}
	}
	if ev.Object.ID == "" {
		return nil, &domain.VerificationError{Provider: y.Key(), Reason: "missing object id"}
	}

	lookup := ev.Object.Metadata["order_id"]
	if lookup == "" {
		lookup = ev.Object.ID
	}
	if ev.Event != "payment.succeeded" || ev.Object.Status != "succeeded" {
		// Cancellations, waiting_for_capture and future event types are a
		// deliberate no-op, not a fault.
		return &adapter.Notification{LookupKey: lookup, Outcome: adapter.OutcomeOther}, nil
	}
	return &adapter.Notification{
		LookupKey: lookup,
		Outcome:   adapter.OutcomePaid,
		Amount:    parseMajor(ev.Object.Amount.Value, ev.Object.Amount.Currency),
	}, nil
}

func (y *YooKassa) Ack(w http.ResponseWriter, r *http.Request) {
	// A bare 200 stops YooKassa redelivery.
	writeAck(w, "", "")
}

// parseMajor converts a provider's major-unit decimal string into Money.
// A malformed amount yields the zero value; the ledger's own amount is
// authoritative anyway.
func parseMajor(value, currency string) model.Money {
	if value == "" {
		return model.Money{}
	}
	exp := model.Exponent(currency)
	neg := false
	var whole, frac int64
	fracDigits := 0
	stage := 0
	for i, ch := range value {
		switch {
		case ch == '-' && i == 0:
			neg = true
		case ch == '.' && stage == 0:
			stage = 1
		case ch >= '0' && ch <= '9':
			if stage == 0 {
				whole = whole*10 + int64(ch-'0')
			} else if fracDigits < exp {
				frac = frac*10 + int64(ch-'0')
				fracDigits++
			}
		default:
			return model.Money{}
		}
	}
	for fracDigits < exp {
		frac *= 10
		fracDigits++
	}
	minor := whole
	for i := 0; i < exp; i++ {
		minor *= 10
	}
	minor += frac
	if neg {
		minor = -minor
	}
	return model.Money{Amount: minor, Currency: currency}
}
