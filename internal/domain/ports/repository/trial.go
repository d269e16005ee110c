package repository

import (
	"context"
	"time"

	"github.com/blablabl4/StreamAssist/internal/domain/model"
)

// TrialRepository persists per-phone trial issuance timestamps for the
// cooldown gate.
type TrialRepository interface {
	// Find returns nil, domain.ErrNotFound when the phone never had a trial.
	Find(ctx context.Context, phone string) (*model.TrialGrant, error)
	// MarkIssued overwrites the last-trial timestamp. Callers must invoke
	// this only after a provisioning attempt is known to have succeeded.
	MarkIssued(ctx context.Context, phone string, at time.Time) error
}
