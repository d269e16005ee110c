package model

import "time"

// LedgerStatus is the processing status of one payment transaction. The
// ordering pending < paid < processed is load-bearing: writes may never move
// a record backward, and only the paid->processed transition is allowed to
// trigger provisioning.
type LedgerStatus string

const (
	LedgerPending   LedgerStatus = "pending"   // charge created, settlement unknown
	LedgerPaid      LedgerStatus = "paid"      // gateway independently confirmed settlement
	LedgerProcessed LedgerStatus = "processed" // account was provisioned for this payment
)

// Rank maps a status to its position in the monotonic ordering. Unknown
// statuses rank below pending so they can always be overwritten.
func (s LedgerStatus) Rank() int {
	switch s {
	case LedgerPending:
		return 1
	case LedgerPaid:
		return 2
	case LedgerProcessed:
		return 3
	}
	return 0
}

// LedgerRecord is the idempotency record for one transaction id.
type LedgerRecord struct {
	TransactionID string
	Owner         string // phone number the transaction belongs to
	Plan          string
	PackageID     int
	Status        LedgerStatus
	SavedAt       time.Time
}

// LedgerPatch is a partial, monotonic update to a ledger record.
type LedgerPatch struct {
	Owner     *string
	Plan      *string
	PackageID *int
	Status    LedgerStatus // "" leaves status untouched
}
