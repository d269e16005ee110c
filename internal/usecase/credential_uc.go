package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/repository"
)

// Compile-time check
var _ CredentialUseCase = (*credentialUC)(nil)

type CredentialUseCase interface {
	// List returns every stored credential set for the phone, newest first.
	List(ctx context.Context, phone string) ([]*model.StoredCredentials, error)
	// Latest returns the newest stored set, or nil when none exists.
	Latest(ctx context.Context, phone string) (*model.StoredCredentials, error)
}

type credentialUC struct {
	credentials repository.CredentialRepository
	log         *zerolog.Logger
}

func NewCredentialUseCase(credentials repository.CredentialRepository, logger *zerolog.Logger) *credentialUC {
	l := logger.With().Str("component", "CredentialUC").Logger()
	return &credentialUC{credentials: credentials, log: &l}
}

func (u *credentialUC) List(ctx context.Context, phone string) ([]*model.StoredCredentials, error) {
	return u.credentials.FindByPhone(ctx, phone)
}

func (u *credentialUC) Latest(ctx context.Context, phone string) (*model.StoredCredentials, error) {
	all, err := u.credentials.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}
