package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/repository"
	"github.com/blablabl4/StreamAssist/internal/infra/metrics"
	"github.com/blablabl4/StreamAssist/internal/usecase"
)

// ProvisionedNotifier mirrors web.ProvisionedNotifier for reconciled
// settlements.
type ProvisionedNotifier func(ctx context.Context, phone string, creds *model.Credentials)

// PaymentReconciler periodically scans for stale pending ledger entries and
// tries to finalize them. This covers charges whose webhook was missed or
// where the process crashed mid-confirm.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	ledger     repository.LedgerRepository
	notify     ProvisionedNotifier
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending entry must be to retry
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, ledger repository.LedgerRepository, notify ProvisionedNotifier, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, ledger: ledger, notify: notify, interval: interval, staleAfter: staleAfter, log: &l}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.ledger.ListPendingOlderThan(ctx, cutoff, 200)
	if err != nil {
		metrics.IncReconcilerRun("error")
		w.log.Error().Err(err).Msg("list pending failed")
		return
	}
	settled := 0
	for _, rec := range pending {
		res, err := w.uc.FinalizeSettled(ctx, rec.TransactionID)
		if err != nil {
			w.log.Warn().Err(err).Str("tx_id", rec.TransactionID).Msg("finalize failed")
			continue
		}
		if res.Outcome == usecase.OutcomeProvisioned {
			settled++
			w.log.Info().Str("tx_id", rec.TransactionID).Msg("reconciled")
			if w.notify != nil {
				w.notify(ctx, res.Phone, res.Creds)
			}
		}
	}
	if settled > 0 {
		metrics.IncReconcilerRun("settled")
	} else {
		metrics.IncReconcilerRun("idle")
	}
}
