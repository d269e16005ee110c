package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/blablabl4/StreamAssist/internal/domain"
	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/usecase"
)

// ProvisionedNotifier delivers credentials to the owner after an
// out-of-band settlement (webhook or reconciler) provisioned an account.
type ProvisionedNotifier func(ctx context.Context, phone string, creds *model.Credentials)

// InboundHandler receives one inbound chat message. Implementations enqueue
// the message for per-user serialized handling and return immediately.
type InboundHandler func(phone, text string) error

// Server exposes the payment-gateway webhook plus health and metrics
// endpoints. The webhook body is never trusted: the payment usecase
// re-queries the gateway before touching the ledger.
type Server struct {
	payments usecase.PaymentUseCase
	notify   ProvisionedNotifier
	inbound  InboundHandler
	log      *zerolog.Logger
}

func NewServer(payments usecase.PaymentUseCase, notify ProvisionedNotifier, inbound InboundHandler, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{payments: payments, notify: notify, inbound: inbound, log: &l}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/webhook/paghiper", s.handlePagHiperWebhook)
	r.Post("/api/webhook/whatsapp", s.handleWhatsAppInbound)

	return r
}

// handleWhatsAppInbound accepts Twilio's inbound message callback
// (form-encoded From/Body) and enqueues it for the dialog.
func (s *Server) handleWhatsAppInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	phone := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	phone = strings.TrimPrefix(phone, "+")
	body := r.PostFormValue("Body")
	if phone == "" || body == "" {
		http.Error(w, "From and Body required", http.StatusBadRequest)
		return
	}
	if err := s.inbound(phone, body); err != nil {
		s.log.Warn().Err(err).Msg("inbound enqueue rejected")
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}
	// Empty TwiML keeps Twilio from echoing anything.
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}

// webhookPayload is the subset of PagHiper's notification we care about.
// Notifications may arrive as JSON or classic form posts.
type webhookPayload struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

func (s *Server) handlePagHiperWebhook(w http.ResponseWriter, r *http.Request) {
	var p webhookPayload
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.Contains(ct, "application/json"):
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
	default:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		p.TransactionID = r.PostFormValue("transaction_id")
		p.Status = r.PostFormValue("status")
	}

	if p.TransactionID == "" {
		http.Error(w, "transaction_id required", http.StatusBadRequest)
		return
	}

	status := strings.ToLower(p.Status)
	if status != "paid" && status != "completed" {
		// Nothing to do for pending/canceled notifications.
		w.WriteHeader(http.StatusOK)
		return
	}

	res, err := s.payments.FinalizeSettled(r.Context(), p.TransactionID)
	if errors.Is(err, domain.ErrNotFound) {
		// Not a transaction we created. Acknowledge so the gateway stops
		// retrying a notification that will never match.
		s.log.Warn().Str("tx_id", p.TransactionID).Msg("webhook for unknown transaction ignored")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("tx_id", p.TransactionID).Msg("webhook finalize failed")
		// 500 so the gateway retries later.
		http.Error(w, "finalize failed", http.StatusInternalServerError)
		return
	}
	if res.Outcome == usecase.OutcomeProvisioned && s.notify != nil {
		s.notify(r.Context(), res.Phone, res.Creds)
	}
	s.log.Info().Str("tx_id", p.TransactionID).Int("outcome", int(res.Outcome)).Msg("webhook handled")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "ok")
}
