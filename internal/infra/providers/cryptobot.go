// File: internal/infra/providers/cryptobot.go
package providers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/ports/adapter"
)

// CryptoBot is the Crypto Pay API. Invoices are created with a token header;
// webhook bodies are signed with HMAC-SHA256 where the key is the SHA-256 of
// the API token, delivered in the crypto-pay-api-signature header. The
// order id rides in the invoice payload field.
type CryptoBot struct {
	token   string
	asset   string
	baseURL string
	client  *http.Client
}

var _ adapter.PaymentProvider = (*CryptoBot)(nil)

func NewCryptoBot(token, asset, baseURL string) *CryptoBot {
	if baseURL == "" {
		baseURL = "https://pay.crypt.bot/api"
	}
	if asset == "" {
		asset = "USDT"
	}
	return &CryptoBot{token: token, asset: asset, baseURL: baseURL, client: newHTTPClient()}
}

func (c *CryptoBot) Key() string { return "cryptobot" }

func (c *CryptoBot) Supports(currency string) bool {
	return currency == c.asset
}

type cryptoBotInvoiceResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		InvoiceID     int64  `json:"invoice_id"`
		BotInvoiceURL string `json:"bot_invoice_url"`
	} `json:"result"`
	Error struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"error"`
}

func (c *CryptoBot) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	payload := map[string]interface{}{
		"asset":       c.asset,
		"amount":      req.Amount.Major(),
		"description": req.Description,
		"payload":     req.OrderID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal cryptobot request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/createInvoice", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create cryptobot request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Crypto-Pay-API-Token", c.token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send cryptobot request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read cryptobot response: %w", err)
	}
	var out cryptoBotInvoiceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal cryptobot response: %w, body: %s", err, string(raw))
	}
	if !out.OK {
		return nil, &domain.ProviderError{
			Provider: c.Key(),
			Code:     strconv.Itoa(out.Error.Code),
			Message:  out.Error.Name,
		}
	}
	return &adapter.Charge{
		RedirectURL:       out.Result.BotInvoiceURL,
		ProviderReference: strconv.FormatInt(out.Result.InvoiceID, 10),
	}, nil
}

type cryptoBotUpdate struct {
	UpdateType string `json:"update_type"`
	Payload    struct {
		InvoiceID int64  `json:"invoice_id"`
		Status    string `json:"status"`
		Asset     string `json:"asset"`
		Amount    string `json:"amount"`
		Payload   string `json:"payload"` // echoes the order id
	} `json:"payload"`
}

func (c *CryptoBot) VerifyWebhook(r *http.Request, body []byte) (*adapter.Notification, error) {
	sig := r.Header.Get("Crypto-Pay-Api-Signature")
	if sig == "" {
		return nil, &domain.VerificationError{Provider: c.Key(), Reason: "missing signature header"}
	}
	key := sha256.Sum256([]byte(c.token))
	mac := hmac.New(sha256.New, key[:])
	mac.Write(body)
	expected := fmt.Sprintf("%x", mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return nil, &domain.VerificationError{Provider: c.Key(), Reason: "body hmac mismatch"}
	}

	var upd cryptoBotUpdate
	if err := json.Unmarshal(body, &upd); err != nil {
		return nil, &domain.VerificationError{Provider: c.Key(), Reason: "malformed json"}
	}

	lookup := upd.Payload.Payload
	if lookup == "" {
		lookup = strconv.FormatInt(upd.Payload.InvoiceID, 10)
	}
	if upd.UpdateType != "invoice_paid" || upd.Payload.Status != "paid" {
		return &adapter.Notification{LookupKey: lookup, Outcome: adapter.OutcomeOther}, nil
	}
	return &adapter.Notification{
		LookupKey: lookup,
		Outcome:   adapter.OutcomePaid,
		Amount:    parseMajor(upd.Payload.Amount, upd.Payload.Asset),
	}, nil
}

func (c *CryptoBot) Ack(w http.ResponseWriter, r *http.Request) {
	writeAck(w, "application/json", `{"ok": true}`)
}
