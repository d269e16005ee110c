package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway for dev mode and tests.
// Charges settle when MarkSettled is called.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	settled map[string]bool
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{settled: make(map[string]bool)}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) CreateCharge(ctx context.Context, phone string, plan model.Plan) (*model.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	txID := fmt.Sprintf("noop-%d", g.seq)
	g.settled[txID] = false
	return &model.Charge{
		TransactionID: txID,
		OrderID:       "ORDER-" + txID,
		Plan:          plan.ID,
		AmountCents:   plan.PriceCents,
		DueAt:         time.Now().Add(24 * time.Hour),
		QRCodeText:    "00020126nooppixpayload" + txID,
	}, nil
}

func (g *NoopPaymentGateway) QueryStatus(ctx context.Context, txID string) model.PaymentQueryResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	paid, ok := g.settled[txID]
	if !ok {
		return model.PaymentQueryResult{Err: "noop: transaction not found"}
	}
	if paid {
		return model.PaymentQueryResult{Confirmed: true, SettledStatus: "paid"}
	}
	return model.PaymentQueryResult{SettledStatus: "pending"}
}

// MarkSettled flips a charge to paid.
func (g *NoopPaymentGateway) MarkSettled(txID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settled[txID] = true
}
