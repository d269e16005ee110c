package model

import "time"

// Charge is the PIX charge returned by the payment initiator.
type Charge struct {
	TransactionID string
	OrderID       string
	Plan          string
	AmountCents   int64
	DueAt         time.Time
	QRCodeLink    string // image URL for the QR code
	QRCodeText    string // EMV copy-paste payload
}

// PaymentQueryResult is the normalized outcome of one gateway status query.
// Transport failures surface as Confirmed=false with Err set; they are not
// fatal to polling loops.
type PaymentQueryResult struct {
	Confirmed     bool
	SettledStatus string // raw gateway status: paid | pending | canceled | completed
	Err           string // last transport/gateway error, for diagnostics
}

// PollResult reports the outcome of a multi-attempt confirmation loop.
type PollResult struct {
	Paid       bool
	Attempts   int
	LastStatus string
	LastErr    string
}
