package repository

import (
	"context"

	"github.com/blablabl4/StreamAssist/internal/domain/model"
)

// CredentialRepository stores generated account credentials per phone and
// account class so the bot can replay them on request.
type CredentialRepository interface {
	Save(ctx context.Context, phone string, creds model.Credentials, class model.AccountClass) error
	// FindByPhone returns all stored credential sets for the phone, newest
	// first. An empty slice with nil error means none stored.
	FindByPhone(ctx context.Context, phone string) ([]*model.StoredCredentials, error)
}
