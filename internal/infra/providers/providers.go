// File: internal/infra/providers/providers.go
//
// One file per payment provider. Each adapter absorbs its provider's entire
// protocol: outbound creation call, webhook signature scheme, status
// vocabulary, minor-unit convention and acknowledgment body. Everything
// outside this package sees only adapter.PaymentProvider.
package providers

import (
	"net/http"
	"time"
)

const defaultHTTPTimeout = 20 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

func supported(set []string, currency string) bool {
	for _, c := range set {
		if c == currency {
			return true
		}
	}
	return false
}

func writeAck(w http.ResponseWriter, contentType, body string) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(http.StatusOK)
	if body != "" {
		_, _ = w.Write([]byte(body))
	}
}
