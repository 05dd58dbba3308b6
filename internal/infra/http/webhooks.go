// File: internal/infra/http/webhooks.go
package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/ports/adapter"
	"vpn-subscription-billing/internal/infra/logging"
	"vpn-subscription-billing/internal/infra/metrics"
	"vpn-subscription-billing/internal/usecase"
)

// Providers retry failed callbacks aggressively, so the handler acknowledges
// everything it can classify, even notifications it discards. Only a transport
// or storage error leaves the provider without its expected body.
const maxWebhookBody = 1 << 20

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "provider")
	log := logging.With(r.Context(), s.log)
	start := time.Now()
	defer func() {
		metrics.ObserveWebhookDuration(key, time.Since(start).Seconds())
	}()

	prov, err := s.registry.Resolve(key)
	if err != nil {
		metrics.IncWebhook(key, "unknown_provider")
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Error().Err(err).Str("provider", key).Msg("failed to read webhook body")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	// Adapters and their Ack methods may re-read the body (form re-parse,
	// InvId echo), so restore it after draining.
	r.Body = io.NopCloser(bytes.NewReader(body))

	note, err := prov.VerifyWebhook(r, body)
	if err != nil {
		var verr *domain.VerificationError
		if errors.As(err, &verr) {
			// A forged or corrupted callback; acknowledge so the provider
			// stops retrying, change nothing.
			log.Warn().Str("provider", key).Str("reason", verr.Reason).
				Msg("webhook verification failed")
			metrics.IncWebhook(key, "verify_failed")
			r.Body = io.NopCloser(bytes.NewReader(body))
			prov.Ack(w, r)
			return
		}
		log.Error().Err(err).Str("provider", key).Msg("webhook rejected")
		metrics.IncWebhook(key, "rejected")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if note.Outcome != adapter.OutcomePaid {
		metrics.IncWebhook(key, "other")
		r.Body = io.NopCloser(bytes.NewReader(body))
		prov.Ack(w, r)
		return
	}

	res, err := s.fulfill.HandlePaid(r.Context(), note.LookupKey)
	if err != nil {
		// Storage failure: withhold the ack so the provider redelivers
		// once the database is back.
		log.Error().Err(err).Str("provider", key).Str("lookup_key", note.LookupKey).
			Msg("failed to process payment notification")
		metrics.IncWebhook(key, "error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	metrics.IncWebhook(key, webhookResult(res.Status))
	r.Body = io.NopCloser(bytes.NewReader(body))
	prov.Ack(w, r)
}

func webhookResult(st usecase.MarkPaidStatus) string {
	switch st {
	case usecase.MarkPaidTransitioned:
		return "transitioned"
	case usecase.MarkPaidAlreadyPaid:
		return "already_paid"
	default:
		return "not_found"
	}
}
