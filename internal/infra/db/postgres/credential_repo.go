package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/blablabl4/StreamAssist/internal/domain"
	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/repository"
)

var _ repository.CredentialRepository = (*credentialRepo)(nil)

type credentialRepo struct{ pool *pgxpool.Pool }

func NewCredentialRepo(pool *pgxpool.Pool) *credentialRepo {
	return &credentialRepo{pool: pool}
}

func (r *credentialRepo) Save(ctx context.Context, phone string, creds model.Credentials, class model.AccountClass) error {
	const q = `
INSERT INTO credentials (phone, account_class, username, password, expires_at, access_links, saved_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (phone, account_class) DO UPDATE SET
  username=$3, password=$4, expires_at=$5, access_links=$6, saved_at=NOW();`
	if _, err := execSQL(ctx, r.pool, nil, q, phone, string(class), creds.Username, creds.Password, creds.ExpiresAt, creds.AccessLinks); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *credentialRepo) FindByPhone(ctx context.Context, phone string) ([]*model.StoredCredentials, error) {
	const q = `SELECT phone, account_class, username, password, expires_at, access_links, saved_at FROM credentials WHERE phone=$1 ORDER BY saved_at DESC;`
	rows, err := queryRows(ctx, r.pool, nil, q, phone)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.StoredCredentials
	for rows.Next() {
		sc := new(model.StoredCredentials)
		var class string
		if err := rows.Scan(&sc.Phone, &class, &sc.Creds.Username, &sc.Creds.Password, &sc.Creds.ExpiresAt, &sc.Creds.AccessLinks, &sc.SavedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		sc.Class = model.AccountClass(class)
		out = append(out, sc)
	}
	return out, nil
}
