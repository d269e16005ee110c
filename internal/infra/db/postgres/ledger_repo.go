package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/blablabl4/StreamAssist/internal/domain"
	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/repository"
)

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

// ledgerRepo backs the idempotency ledger with a payment_ledger table.
// Status transitions are enforced inside conditional UPDATEs so the
// monotonicity guarantee holds under concurrent writers without a
// long-lived transaction.
type ledgerRepo struct{ pool *pgxpool.Pool }

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

func (r *ledgerRepo) Get(ctx context.Context, txID string) (*model.LedgerRecord, error) {
	const q = `SELECT transaction_id, owner, plan, package_id, status, saved_at FROM payment_ledger WHERE transaction_id=$1;`
	row, err := pickRow(ctx, r.pool, nil, q, txID)
	if err != nil {
		return nil, err
	}
	rec := &model.LedgerRecord{}
	if err := row.Scan(&rec.TransactionID, &rec.Owner, &rec.Plan, &rec.PackageID, &rec.Status, &rec.SavedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return rec, nil
}

func (r *ledgerRepo) Upsert(ctx context.Context, txID string, patch model.LedgerPatch) error {
	if txID == "" {
		return domain.ErrInvalidArgument
	}
	status := string(patch.Status)
	if patch.Status == "" {
		status = string(model.LedgerPending) // used only on first insert
	}

	const ins = `
INSERT INTO payment_ledger (transaction_id, owner, plan, package_id, status, saved_at)
VALUES ($1, COALESCE($2,''), COALESCE($3,''), COALESCE($4,0), $5, NOW())
ON CONFLICT (transaction_id) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, nil, ins, txID, patch.Owner, patch.Plan, patch.PackageID, status)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Record exists: merge, letting status move only forward.
	const upd = `
UPDATE payment_ledger
   SET owner      = COALESCE($2, owner),
       plan       = COALESCE($3, plan),
       package_id = COALESCE($4, package_id),
       status     = CASE WHEN $5 = '' THEN status ELSE $5 END,
       saved_at   = NOW()
 WHERE transaction_id = $1
   AND ($5 = '' OR
        (CASE status WHEN 'pending' THEN 1 WHEN 'paid' THEN 2 WHEN 'processed' THEN 3 ELSE 0 END)
     <= (CASE $5     WHEN 'pending' THEN 1 WHEN 'paid' THEN 2 WHEN 'processed' THEN 3 ELSE 0 END));`
	tag, err = execSQL(ctx, r.pool, nil, upd, txID, patch.Owner, patch.Plan, patch.PackageID, string(patch.Status))
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 && patch.Status != "" {
		return domain.ErrStaleWrite
	}
	return nil
}

func (r *ledgerRepo) TryMarkProcessed(ctx context.Context, txID, ownerPhone string) (bool, error) {
	const q = `
UPDATE payment_ledger
   SET status='processed', saved_at=NOW()
 WHERE transaction_id=$1 AND owner=$2 AND status='paid';`
	tag, err := execSQL(ctx, r.pool, nil, q, txID, ownerPhone)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() >= 1, nil
}

func (r *ledgerRepo) ListPendingOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]*model.LedgerRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT transaction_id, owner, plan, package_id, status, saved_at FROM payment_ledger WHERE status='pending' AND saved_at < $1 ORDER BY saved_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, nil, q, olderThan, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.LedgerRecord
	for rows.Next() {
		rec := new(model.LedgerRecord)
		if err := rows.Scan(&rec.TransactionID, &rec.Owner, &rec.Plan, &rec.PackageID, &rec.Status, &rec.SavedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, rec)
	}
	return out, nil
}
