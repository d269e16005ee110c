package adapter

import (
	"context"

	"github.com/blablabl4/StreamAssist/internal/domain/model"
)

// PaymentGateway is the hex port for the PIX payment provider. CreateCharge
// initiates an invoice; QueryStatus performs one settlement check. Transport
// errors from QueryStatus come back inside the result (Confirmed=false,
// Err set) so retry loops can treat them as "not yet confirmed".
type PaymentGateway interface {
	Name() string
	CreateCharge(ctx context.Context, phone string, plan model.Plan) (*model.Charge, error)
	QueryStatus(ctx context.Context, txID string) model.PaymentQueryResult
}
