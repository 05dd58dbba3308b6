// File: internal/infra/providers/freekassa.go
package providers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/ports/adapter"
)

// FreeKassa creates orders through the JSON API, signing the sorted request
// values with HMAC-SHA256 over the API key. Its callback is an old-style form
// post signed with an MD5 over colon-joined fields and the second merchant
// secret; the expected acknowledgment is the bare string YES.
type FreeKassa struct {
	shopID  string
	apiKey  string // signs API requests
	secret2 string // signs inbound callbacks
	baseURL string
	client  *http.Client
}

var _ adapter.PaymentProvider = (*FreeKassa)(nil)

func NewFreeKassa(shopID, apiKey, secret2, baseURL string) *FreeKassa {
	if baseURL == "" {
		baseURL = "https://api.fk.life/v1"
	}
	return &FreeKassa{shopID: shopID, apiKey: apiKey, secret2: secret2, baseURL: baseURL, client: newHTTPClient()}
}

func (f *FreeKassa) Key() string { return "freekassa" }

func (f *FreeKassa) Supports(currency string) bool {
	return supported([]string{"RUB", "USD", "EUR"}, currency)
}

type freeKassaOrderResponse struct {
	Type     string `json:"type"` // "success" or "error"
	Message  string `json:"message"`
	OrderID  int64  `json:"orderId"`
	Location string `json:"location"`
}

func (f *FreeKassa) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	params := map[string]interface{}{
		"shopId":    f.shopID,
		"nonce":     time.Now().UnixNano(),
		"paymentId": req.OrderID,
		"amount":    req.Amount.Major(),
		"currency":  req.Amount.Currency,
	}
	params["signature"] = f.signAPI(params)

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal freekassa request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/orders/create", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create freekassa request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send freekassa request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read freekassa response: %w", err)
	}
	var out freeKassaOrderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal freekassa response: %w, body: %s", err, string(raw))
	}
	if resp.StatusCode != http.StatusOK || out.Type != "success" {
		return nil, &domain.ProviderError{Provider: f.Key(), Message: out.Message}
	}
	return &adapter.Charge{
		RedirectURL:       out.Location,
		ProviderReference: strconv.FormatInt(out.OrderID, 10),
	}, nil
}

// signAPI implements the API signature: values of the request sorted by key,
// joined with "|", HMAC-SHA256 under the API key.
func (f *FreeKassa) signAPI(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, 0, len(keys))
	for _, k := range keys {
		vals = append(vals, fmt.Sprint(params[k]))
	}
	mac := hmac.New(sha256.New, []byte(f.apiKey))
	mac.Write([]byte(strings.Join(vals, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

func (f *FreeKassa) VerifyWebhook(r *http.Request, body []byte) (*adapter.Notification, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &domain.VerificationError{Provider: f.Key(), Reason: "malformed form body"}
	}
	orderID := form.Get("MERCHANT_ORDER_ID")
	amount := form.Get("AMOUNT")
	if orderID == "" || amount == "" {
		return nil, &domain.VerificationError{Provider: f.Key(), Reason: "missing required fields"}
	}

	sum := md5.Sum([]byte(strings.Join([]string{f.shopID, amount, f.secret2, orderID}, ":")))
	expected := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(form.Get("SIGN")))) != 1 {
		return nil, &domain.VerificationError{Provider: f.Key(), Reason: "md5 sign mismatch"}
	}

	// FreeKassa only notifies settled payments; a valid sign is a paid order.
	return &adapter.Notification{
		LookupKey: orderID,
		Outcome:   adapter.OutcomePaid,
		Amount:    parseMajor(amount, "RUB"),
	}, nil
}

func (f *FreeKassa) Ack(w http.ResponseWriter, r *http.Request) {
	writeAck(w, "text/plain", "YES")
}
