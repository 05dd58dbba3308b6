// File: internal/infra/providers/lava.go
package providers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/ports/adapter"
)

// Lava signs request and webhook bodies the same way: hex HMAC-SHA256 of the
// raw JSON under the shop secret, carried in the Signature header. Its hook
// expects the acknowledgment body {"error": false}.
type Lava struct {
	shopID  string
	secret  string
	baseURL string
	client  *http.Client
}

var _ adapter.PaymentProvider = (*Lava)(nil)

func NewLava(shopID, secret, baseURL string) *Lava {
	if baseURL == "" {
		baseURL = "https://api.lava.ru/business"
	}
	return &Lava{shopID: shopID, secret: secret, baseURL: baseURL, client: newHTTPClient()}
}

func (l *Lava) Key() string { return "lava" }

func (l *Lava) Supports(currency string) bool {
	return supported([]string{"RUB"}, currency)
}

type lavaInvoiceResponse struct {
	Status int `json:"status"`
	Data   struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"data"`
	Error string `json:"error"`
}

func (l *Lava) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	payload := map[string]interface{}{
		"shopId":     l.shopID,
		"sum":        req.Amount.Major(),
		"orderId":    req.OrderID,
		"comment":    req.Description,
		"successUrl": req.ReturnURL,
		"hookUrl":    req.CallbackURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal lava request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/invoice/create", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create lava request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Signature", l.sign(body))

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send lava request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read lava response: %w", err)
	}
	var out lavaInvoiceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal lava response: %w, body: %s", err, string(raw))
	}
	if resp.StatusCode != http.StatusOK || out.Status != http.StatusOK {
		return nil, &domain.ProviderError{Provider: l.Key(), Message: out.Error}
	}
	return &adapter.Charge{RedirectURL: out.Data.URL, ProviderReference: out.Data.ID}, nil
}

func (l *Lava) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(l.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type lavaHook struct {
	InvoiceID string `json:"invoice_id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
}

func (l *Lava) VerifyWebhook(r *http.Request, body []byte) (*adapter.Notification, error) {
	sig := r.Header.Get("Signature")
	if sig == "" {
		// Older shop integrations deliver the same digest as Authorization.
		sig = r.Header.Get("Authorization")
	}
	if sig == "" {
		return nil, &domain.VerificationError{Provider: l.Key(), Reason: "missing signature header"}
	}
	if !hmac.Equal([]byte(l.sign(body)), []byte(sig)) {
		return nil, &domain.VerificationError{Provider: l.Key(), Reason: "body hmac mismatch"}
	}

	var hook lavaHook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, &domain.VerificationError{Provider: l.Key(), Reason: "malformed json"}
	}
	lookup := hook.OrderID
	if lookup == "" {
		lookup = hook.InvoiceID
	}
	if lookup == "" {
		return nil, &domain.VerificationError{Provider: l.Key(), Reason: "no correlation id"}
	}
	if hook.Status != "success" {
		return &adapter.Notification{LookupKey: lookup, Outcome: adapter.OutcomeOther}, nil
	}
	return &adapter.Notification{
		LookupKey: lookup,
		Outcome:   adapter.OutcomePaid,
		Amount:    parseMajor(hook.Amount, "RUB"),
	}, nil
}

func (l *Lava) Ack(w http.ResponseWriter, r *http.Request) {
	writeAck(w, "application/json", `{"error": false}`)
}
