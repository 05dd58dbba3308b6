// File: internal/infra/providers/robokassa.go
package providers

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strings"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/ports/adapter"
)

// Robokassa has no creation API: the charge is a signed merchant URL. Its
// ResultURL callback arrives as a query/form request signed with
// MD5(OutSum:InvId:password2[:Shp_order=...]) and must be answered with the
// bare body "OK<InvId>" or it retries indefinitely.
//
// InvId must be numeric, so the caller's order id travels in the Shp_order
// custom parameter, which participates in both signatures.
type Robokassa struct {
	login     string
	password1 string // signs outbound payment URLs
	password2 string // signs inbound result callbacks
	baseURL   string
}

var _ adapter.PaymentProvider = (*Robokassa)(nil)

func NewRobokassa(login, password1, password2, baseURL string) *Robokassa {
	if baseURL == "" {
		baseURL = "https://auth.robokassa.ru/Merchant/Index.aspx"
	}
	return &Robokassa{login: login, password1: password1, password2: password2, baseURL: baseURL}
}

func (rk *Robokassa) Key() string { return "robokassa" }

func (rk *Robokassa) Supports(currency string) bool {
	return supported([]string{"RUB"}, currency)
}

func (rk *Robokassa) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	outSum := req.Amount.Major()
	invID := derivedInvID(req.OrderID)
	shp := "Shp_order=" + req.OrderID

	sum := md5.Sum([]byte(strings.Join([]string{
		rk.login, outSum, invID, rk.password1, shp,
	}, ":")))

	v := url.Values{}
	v.Set("MerchantLogin", rk.login)
	v.Set("OutSum", outSum)
	v.Set("InvId", invID)
	v.Set("Description", req.Description)
	v.Set("SignatureValue", hex.EncodeToString(sum[:]))
	v.Set("Shp_order", req.OrderID)

	return &adapter.Charge{
		RedirectURL:       rk.baseURL + "?" + v.Encode(),
		ProviderReference: invID,
	}, nil
}

func (rk *Robokassa) VerifyWebhook(r *http.Request, body []byte) (*adapter.Notification, error) {
	params, err := resultParams(r, body)
	if err != nil {
		return nil, &domain.VerificationError{Provider: rk.Key(), Reason: "malformed request"}
	}
	outSum := params.Get("OutSum")
	invID := params.Get("InvId")
	orderID := params.Get("Shp_order")
	if outSum == "" || invID == "" {
		return nil, &domain.VerificationError{Provider: rk.Key(), Reason: "missing OutSum/InvId"}
	}

	parts := []string{outSum, invID, rk.password2}
	if orderID != "" {
		parts = append(parts, "Shp_order="+orderID)
	}
	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	expected := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(expected)),
		[]byte(strings.ToLower(params.Get("SignatureValue"))),
	) != 1 {
		return nil, &domain.VerificationError{Provider: rk.Key(), Reason: "md5 signature mismatch"}
	}

	lookup := orderID
	if lookup == "" {
		lookup = invID
	}
	// ResultURL is only invoked for settled payments.
	return &adapter.Notification{
		LookupKey: lookup,
		Outcome:   adapter.OutcomePaid,
		Amount:    parseMajor(outSum, "RUB"),
	}, nil
}

func (rk *Robokassa) Ack(w http.ResponseWriter, r *http.Request) {
	// The webhook handler restores r.Body after verification, so the InvId
	// can be re-read here for the exact "OK<InvId>" acknowledgment.
	body, _ := io.ReadAll(r.Body)
	invID := ""
	if params, err := resultParams(r, body); err == nil {
		invID = params.Get("InvId")
	}
	writeAck(w, "text/plain", "OK"+invID)
}

// resultParams reads Robokassa parameters from the query string (GET) or the
// form body (POST).
func resultParams(r *http.Request, body []byte) (url.Values, error) {
	if r.Method == http.MethodGet || len(body) == 0 {
		return r.URL.Query(), nil
	}
	return url.ParseQuery(string(body))
}

// derivedInvID maps the string order id onto Robokassa's numeric invoice id
// space. Correlation uses Shp_order; the derived id only needs stability.
func derivedInvID(orderID string) string {
	h := fnv.New32a()
	h.Write([]byte(orderID))
	return fmt.Sprintf("%d", h.Sum32()&0x7fffffff)
}
