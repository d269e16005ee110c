package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/blablabl4/StreamAssist/internal/domain"
	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/adapter"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/repository"
	"github.com/blablabl4/StreamAssist/internal/infra/logging"
	"github.com/blablabl4/StreamAssist/internal/infra/metrics"
)

// Compile-time check
var _ TrialUseCase = (*trialUC)(nil)

// Eligibility is the answer to "can this phone get a free trial now?".
type Eligibility struct {
	Eligible      bool
	RemainingDays int // days left on the cooldown when not eligible
}

type TrialUseCase interface {
	// CheckEligible applies the cooldown gate without side effects.
	CheckEligible(ctx context.Context, phone string, now time.Time) (Eligibility, error)
	// Issue provisions a trial account and starts the cooldown. The
	// cooldown is consumed only when provisioning succeeded, so a panel
	// outage never burns a user's trial.
	Issue(ctx context.Context, phone string, now time.Time) (*model.Credentials, error)
}

type trialUC struct {
	trials      repository.TrialRepository
	credentials repository.CredentialRepository
	audit       repository.AuditRepository
	provisioner adapter.ProvisioningGateway

	cooldownDays   int
	defaultPackage int
	log            *zerolog.Logger
}

func NewTrialUseCase(
	trials repository.TrialRepository,
	credentials repository.CredentialRepository,
	audit repository.AuditRepository,
	provisioner adapter.ProvisioningGateway,
	cooldownDays, defaultPackage int,
	logger *zerolog.Logger,
) *trialUC {
	l := logger.With().Str("component", "TrialUC").Logger()
	return &trialUC{
		trials:         trials,
		credentials:    credentials,
		audit:          audit,
		provisioner:    provisioner,
		cooldownDays:   cooldownDays,
		defaultPackage: defaultPackage,
		log:            &l,
	}
}

func (u *trialUC) CheckEligible(ctx context.Context, phone string, now time.Time) (Eligibility, error) {
	grant, err := u.trials.Find(ctx, phone)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Eligibility{Eligible: true}, nil
		}
		return Eligibility{}, err
	}
	elapsed := int(now.Sub(grant.LastTrialAt).Hours() / 24)
	if elapsed >= u.cooldownDays {
		return Eligibility{Eligible: true}, nil
	}
	return Eligibility{Eligible: false, RemainingDays: u.cooldownDays - elapsed}, nil
}

func (u *trialUC) Issue(ctx context.Context, phone string, now time.Time) (*model.Credentials, error) {
	elig, err := u.CheckEligible(ctx, phone, now)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, fmt.Errorf("%w: %d days remaining", domain.ErrCooldownActive, elig.RemainingDays)
	}

	creds, err := u.provisioner.Provision(ctx, adapter.ProvisionRequest{
		Class:     model.AccountTrial,
		PackageID: u.defaultPackage,
		Phone:     phone,
		Note:      "free trial",
	})
	if err != nil {
		metrics.IncProvisioning(string(model.AccountTrial), "error")
		u.appendAudit(ctx, repository.AuditProvisioningError, phone, err.Error())
		return nil, fmt.Errorf("provision trial: %w", err)
	}

	// Start the cooldown only now that the account exists.
	if err := u.trials.MarkIssued(ctx, phone, now); err != nil {
		u.log.Error().Err(err).Str("phone", logging.MaskPhone(phone)).Msg("recording trial issuance failed")
		return nil, fmt.Errorf("record trial: %w", err)
	}
	if err := u.credentials.Save(ctx, phone, *creds, model.AccountTrial); err != nil {
		u.log.Error().Err(err).Str("phone", logging.MaskPhone(phone)).Msg("saving trial credentials failed")
	}

	metrics.IncProvisioning(string(model.AccountTrial), "ok")
	u.appendAudit(ctx, repository.AuditAccountCreated, phone, fmt.Sprintf("class=trial username=%s", creds.Username))
	u.log.Info().Str("phone", logging.MaskPhone(phone)).Msg("trial issued")
	return creds, nil
}

func (u *trialUC) appendAudit(ctx context.Context, event, phone, detail string) {
	ev := repository.AuditEvent{
		Event:       event,
		PhoneMasked: logging.MaskPhone(phone),
		Detail:      detail,
		CreatedAt:   time.Now(),
	}
	if err := u.audit.Append(ctx, ev); err != nil {
		u.log.Warn().Err(err).Str("event", event).Msg("audit append failed")
	}
}
