package repository

import (
	"context"
	"time"

	"github.com/blablabl4/StreamAssist/internal/domain/model"
)

// LedgerRepository is the idempotency ledger: the single source of truth
// preventing duplicate provisioning per transaction id.
type LedgerRepository interface {
	// Get returns nil, domain.ErrNotFound for unknown transaction ids.
	Get(ctx context.Context, txID string) (*model.LedgerRecord, error)

	// Upsert creates the record or merges the patch into it. The write is
	// rejected with domain.ErrStaleWrite when it would move Status backward
	// in the pending < paid < processed ordering; the stored record is left
	// untouched in that case.
	Upsert(ctx context.Context, txID string, patch model.LedgerPatch) error

	// TryMarkProcessed atomically transitions paid -> processed. It returns
	// true only for the single caller whose write applied the transition;
	// false means the record is already processed, not yet paid, or owned
	// by a different phone. This is the only primitive allowed to gate
	// provisioning.
	TryMarkProcessed(ctx context.Context, txID, ownerPhone string) (bool, error)

	// ListPendingOlderThan returns pending records created before the
	// cutoff, oldest first, for background reconciliation.
	ListPendingOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]*model.LedgerRecord, error)
}
