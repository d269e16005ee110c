package repository

import (
	"context"
	"time"
)

// Audit event names. Kept as constants so handlers and tests agree on the
// vocabulary.
const (
	AuditChargeCreated       = "charge_created"
	AuditPaymentCheckStarted = "payment_check_started"
	AuditPaymentCheckResult  = "payment_check_result"
	AuditAccountCreated      = "account_created"
	AuditDuplicateBlocked    = "duplicate_claim_blocked"
	AuditStaleWriteRejected  = "stale_write_rejected"
	AuditProvisioningError   = "provisioning_error"
)

// AuditEvent is one append-only audit trail entry. Phone is stored masked.
type AuditEvent struct {
	ID            string
	Event         string
	TransactionID string
	PhoneMasked   string
	Detail        string
	CreatedAt     time.Time
}

// AuditRepository is an append-only audit log. Append failures are logged
// by callers but never abort the business operation.
type AuditRepository interface {
	Append(ctx context.Context, ev AuditEvent) error
}
