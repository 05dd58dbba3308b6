// File: internal/infra/providers/telegramstars.go
package providers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/model"
	"vpn-subscription-billing/internal/domain/ports/adapter"
)

// starsAPI is the slice of the Bot API client this adapter needs; the real
// *tgbotapi.BotAPI satisfies it.
type starsAPI interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// TelegramStars charges in XTR through a Bot API invoice link. This is the
// one strictly single-currency provider. The successful_payment update is
// relayed by the bot backend to our webhook with a shared secret token in
// the query string; that token is the whole trust model.
type TelegramStars struct {
	bot          starsAPI
	webhookToken string
}

var _ adapter.PaymentProvider = (*TelegramStars)(nil)

func NewTelegramStars(bot starsAPI, webhookToken string) *TelegramStars {
	return &TelegramStars{bot: bot, webhookToken: webhookToken}
}

func (t *TelegramStars) Key() string { return "telegramstars" }

func (t *TelegramStars) Supports(currency string) bool {
	return currency == "XTR"
}

func (t *TelegramStars) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	if req.Amount.Currency != "XTR" {
		return nil, &domain.UnsupportedCurrencyError{Provider: t.Key(), Currency: req.Amount.Currency}
	}
	prices, err := json.Marshal([]map[string]interface{}{
		{"label": req.Description, "amount": req.Amount.Amount},
	})
	if err != nil {
		return nil, err
	}

	params := tgbotapi.Params{
		"title":          req.Description,
		"description":    req.Description,
		"payload":        req.OrderID,
		"currency":       "XTR",
		"provider_token": "", // Stars invoices carry no provider token
		"prices":         string(prices),
	}
	resp, err := t.bot.MakeRequest("createInvoiceLink", params)
	if err != nil {
		return nil, &domain.ProviderError{Provider: t.Key(), Message: err.Error()}
	}
	if !resp.Ok {
		return nil, &domain.ProviderError{
			Provider: t.Key(),
			Code:     strconv.Itoa(resp.ErrorCode),
			Message:  resp.Description,
		}
	}

	var link string
	if err := json.Unmarshal(resp.Result, &link); err != nil || link == "" {
		return nil, &domain.ProviderError{Provider: t.Key(), Message: "no invoice link in response"}
	}
	// Telegram assigns no invoice id for links; the payload echo correlates.
	return &adapter.Charge{RedirectURL: link, ProviderReference: req.OrderID}, nil
}

type starsPayment struct {
	InvoicePayload string `json:"invoice_payload"`
	TotalAmount    int64  `json:"total_amount"`
	Currency       string `json:"currency"`
}

func (t *TelegramStars) VerifyWebhook(r *http.Request, body []byte) (*adapter.Notification, error) {
	token := r.URL.Query().Get("token")
	if t.webhookToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(t.webhookToken)) != 1 {
		return nil, &domain.VerificationError{Provider: t.Key(), Reason: "bad relay token"}
	}

	var p starsPayment
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &domain.VerificationError{Provider: t.Key(), Reason: "malformed json"}
	}
	if p.InvoicePayload == "" {
		return nil, &domain.VerificationError{Provider: t.Key(), Reason: "missing invoice payload"}
	}
	if p.Currency != "XTR" {
		return &adapter.Notification{LookupKey: p.InvoicePayload, Outcome: adapter.OutcomeOther}, nil
	}
	// successful_payment is only relayed once the stars are charged.
	return &adapter.Notification{
		LookupKey: p.InvoicePayload,
		Outcome:   adapter.OutcomePaid,
		Amount:    model.Money{Amount: p.TotalAmount, Currency: "XTR"},
	}, nil
}

func (t *TelegramStars) Ack(w http.ResponseWriter, r *http.Request) {
	writeAck(w, "", "")
}
