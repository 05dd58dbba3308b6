// File: internal/infra/providers/cryptomus.go
package providers

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/ports/adapter"
)

// Cryptomus signs both directions with MD5(base64(json) + api_key). The
// webhook embeds its own sign field inside the JSON body; verification
// re-signs the body with that field removed.
type Cryptomus struct {
	merchant string
	apiKey   string
	baseURL  string
	client   *http.Client
}

var _ adapter.PaymentProvider = (*Cryptomus)(nil)

func NewCryptomus(merchant, apiKey, baseURL string) *Cryptomus {
	if baseURL == "" {
		baseURL = "https://api.cryptomus.com/v1"
	}
	return &Cryptomus{merchant: merchant, apiKey: apiKey, baseURL: baseURL, client: newHTTPClient()}
}

func (c *Cryptomus) Key() string { return "cryptomus" }

func (c *Cryptomus) Supports(currency string) bool {
	return supported([]string{"USD", "USDT"}, currency)
}

type cryptomusCreateResponse struct {
	State  int `json:"state"`
	Result struct {
		UUID string `json:"uuid"`
		URL  string `json:"url"`
	} `json:"result"`
	Message string `json:"message"`
}

func (c *Cryptomus) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	payload := map[string]interface{}{
		"amount":       req.Amount.Major(),
		"currency":     req.Amount.Currency,
		"order_id":     req.OrderID,
		"url_return":   req.ReturnURL,
		"url_callback": req.CallbackURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal cryptomus request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payment", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create cryptomus request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("merchant", c.merchant)
	httpReq.Header.Set("sign", c.sign(body))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send cryptomus request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read cryptomus response: %w", err)
	}
	var out cryptomusCreateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal cryptomus response: %w, body: %s", err, string(raw))
	}
	if resp.StatusCode != http.StatusOK || out.State != 0 {
		return nil, &domain.ProviderError{Provider: c.Key(), Message: out.Message}
	}
	return &adapter.Charge{RedirectURL: out.Result.URL, ProviderReference: out.Result.UUID}, nil
}

func (c *Cryptomus) sign(body []byte) string {
	sum := md5.Sum([]byte(base64.StdEncoding.EncodeToString(body) + c.apiKey))
	return hex.EncodeToString(sum[:])
}

func (c *Cryptomus) VerifyWebhook(r *http.Request, body []byte) (*adapter.Notification, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &domain.VerificationError{Provider: c.Key(), Reason: "malformed json"}
	}
	sig, _ := fields["sign"].(string)
	if sig == "" {
		return nil, &domain.VerificationError{Provider: c.Key(), Reason: "missing sign field"}
	}
	delete(fields, "sign")
	// Re-marshal without the sign field; Go's map marshaling is key-sorted,
	// which matches the canonical form the merchant API signs.
	unsigned, err := json.Marshal(fields)
	if err != nil {
		return nil, &domain.VerificationError{Provider: c.Key(), Reason: "cannot canonicalize body"}
	}
	if subtle.ConstantTimeCompare([]byte(c.sign(unsigned)), []byte(strings.ToLower(sig))) != 1 {
		return nil, &domain.VerificationError{Provider: c.Key(), Reason: "md5 sign mismatch"}
	}

	orderID, _ := fields["order_id"].(string)
	uuid, _ := fields["uuid"].(string)
	status, _ := fields["status"].(string)
	lookup := orderID
	if lookup == "" {
		lookup = uuid
	}
	if lookup == "" {
		return nil, &domain.VerificationError{Provider: c.Key(), Reason: "no correlation id"}
	}

	if status != "paid" && status != "paid_over" {
		return &adapter.Notification{LookupKey: lookup, Outcome: adapter.OutcomeOther}, nil
	}
	amount, _ := fields["amount"].(string)
	currency, _ := fields["currency"].(string)
	return &adapter.Notification{
		LookupKey: lookup,
		Outcome:   adapter.OutcomePaid,
		Amount:    parseMajor(amount, currency),
	}, nil
}

func (c *Cryptomus) Ack(w http.ResponseWriter, r *http.Request) {
	writeAck(w, "", "")
}
