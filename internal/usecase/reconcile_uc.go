package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/adapter"
	"github.com/blablabl4/StreamAssist/internal/infra/metrics"
)

// Compile-time check
var _ PaymentCheckUseCase = (*paymentCheckUC)(nil)

// PaymentCheckUseCase runs confirmation loops against the gateway. It never
// mutates the ledger: callers decide what a confirmation means.
type PaymentCheckUseCase interface {
	// BurstCheck is the short, user-facing window run when someone claims
	// "I paid": a handful of attempts a few seconds apart.
	BurstCheck(ctx context.Context, txID string) model.PollResult
	// SlowPoll is the patient background loop used by reconciliation.
	SlowPoll(ctx context.Context, txID string) model.PollResult
}

type paymentCheckUC struct {
	gateway adapter.PaymentGateway

	burstAttempts int
	burstInterval time.Duration
	pollAttempts  int
	pollInterval  time.Duration

	log *zerolog.Logger
}

func NewPaymentCheckUseCase(gateway adapter.PaymentGateway, burstAttempts int, burstInterval time.Duration, pollAttempts int, pollInterval time.Duration, logger *zerolog.Logger) *paymentCheckUC {
	l := logger.With().Str("component", "PaymentCheckUC").Logger()
	return &paymentCheckUC{
		gateway:       gateway,
		burstAttempts: burstAttempts,
		burstInterval: burstInterval,
		pollAttempts:  pollAttempts,
		pollInterval:  pollInterval,
		log:           &l,
	}
}

func (u *paymentCheckUC) BurstCheck(ctx context.Context, txID string) model.PollResult {
	res := u.run(ctx, txID, u.burstAttempts, u.burstInterval)
	metrics.ObservePaymentCheck("burst", res.Paid, res.Attempts)
	return res
}

func (u *paymentCheckUC) SlowPoll(ctx context.Context, txID string) model.PollResult {
	res := u.run(ctx, txID, u.pollAttempts, u.pollInterval)
	metrics.ObservePaymentCheck("poll", res.Paid, res.Attempts)
	return res
}

// run queries the gateway up to attempts times, sleeping interval between
// tries. A transport error counts as "not confirmed yet" and the loop keeps
// going; only a positive confirmation short-circuits.
func (u *paymentCheckUC) run(ctx context.Context, txID string, attempts int, interval time.Duration) model.PollResult {
	out := model.PollResult{}
	for i := 0; i < attempts; i++ {
		out.Attempts = i + 1
		q := u.gateway.QueryStatus(ctx, txID)
		out.LastStatus = q.SettledStatus
		out.LastErr = q.Err
		if q.Err != "" {
			u.log.Warn().Str("tx_id", txID).Int("attempt", out.Attempts).Str("err", q.Err).Msg("status query failed; treating as unconfirmed")
		}
		if q.Confirmed {
			out.Paid = true
			return out
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			out.LastErr = ctx.Err().Error()
			return out
		case <-time.After(interval):
		}
	}
	return out
}
