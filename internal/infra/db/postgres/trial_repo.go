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

var _ repository.TrialRepository = (*trialRepo)(nil)

type trialRepo struct{ pool *pgxpool.Pool }

func NewTrialRepo(pool *pgxpool.Pool) *trialRepo {
	return &trialRepo{pool: pool}
}

func (r *trialRepo) Find(ctx context.Context, phone string) (*model.TrialGrant, error) {
	const q = `SELECT phone, last_trial_at FROM trial_grants WHERE phone=$1;`
	row, err := pickRow(ctx, r.pool, nil, q, phone)
	if err != nil {
		return nil, err
	}
	g := &model.TrialGrant{}
	if err := row.Scan(&g.Phone, &g.LastTrialAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return g, nil
}

func (r *trialRepo) MarkIssued(ctx context.Context, phone string, at time.Time) error {
	const q = `
INSERT INTO trial_grants (phone, last_trial_at) VALUES ($1, $2)
ON CONFLICT (phone) DO UPDATE SET last_trial_at=$2;`
	if _, err := execSQL(ctx, r.pool, nil, q, phone, at); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
