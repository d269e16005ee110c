package postgres

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/blablabl4/StreamAssist/internal/domain"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/repository"
)

var _ repository.AuditRepository = (*auditRepo)(nil)

// auditRepo is an append-only audit trail. Event ids are ULIDs so the table
// sorts chronologically on the primary key.
type auditRepo struct{ pool *pgxpool.Pool }

func NewAuditRepo(pool *pgxpool.Pool) *auditRepo {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Append(ctx context.Context, ev repository.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO audit_events (id, event, transaction_id, phone_masked, detail, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	if _, err := execSQL(ctx, r.pool, nil, q, ev.ID, ev.Event, ev.TransactionID, ev.PhoneMasked, ev.Detail, ev.CreatedAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
