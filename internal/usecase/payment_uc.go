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
var _ PaymentUseCase = (*paymentUC)(nil)

// ConfirmOutcome classifies what happened to an "I paid" claim or a
// settlement notification.
type ConfirmOutcome int

const (
	// OutcomeProvisioned: payment confirmed and an account was created by
	// this exact call.
	OutcomeProvisioned ConfirmOutcome = iota
	// OutcomeNotConfirmed: the gateway did not confirm settlement inside
	// the check window.
	OutcomeNotConfirmed
	// OutcomeAlreadyProcessed: the transaction was already provisioned;
	// the claim is a duplicate.
	OutcomeAlreadyProcessed
	// OutcomeWrongOwner: the transaction belongs to a different phone.
	OutcomeWrongOwner
	// OutcomeProvisionFailed: settlement confirmed and this call won the
	// processing slot, but the panel failed to create the account. Needs
	// operator follow-up; the ledger stays processed to block retries from
	// double-creating.
	OutcomeProvisionFailed
)

// ConfirmResult is the full outcome of a confirmation attempt.
type ConfirmResult struct {
	Outcome ConfirmOutcome
	Phone   string
	Plan    model.Plan
	Creds   *model.Credentials
	Check   model.PollResult
}

type PaymentUseCase interface {
	// InitiateCharge creates a PIX invoice for the plan and records the
	// transaction as pending in the ledger.
	InitiateCharge(ctx context.Context, phone string, plan model.Plan, packageID int) (*model.Charge, error)
	// AttachTransaction binds an externally supplied transaction id to a
	// phone so it can be confirmed and reconciled.
	AttachTransaction(ctx context.Context, phone, txID string) (*model.LedgerRecord, error)
	// ConfirmAndProvision handles a user's "I paid" claim: burst-checks the
	// gateway, and on confirmation provisions exactly one account for the
	// transaction.
	ConfirmAndProvision(ctx context.Context, phone, txID string) (*ConfirmResult, error)
	// FinalizeSettled handles out-of-band settlement signals (webhook,
	// reconciler). The signal is never trusted: the gateway is re-queried
	// before any ledger transition, falling back to the slow poll when the
	// first query does not confirm yet.
	FinalizeSettled(ctx context.Context, txID string) (*ConfirmResult, error)
}

type paymentUC struct {
	ledger      repository.LedgerRepository
	credentials repository.CredentialRepository
	audit       repository.AuditRepository
	gateway     adapter.PaymentGateway
	provisioner adapter.ProvisioningGateway
	checker     PaymentCheckUseCase

	defaultPackage int
	log            *zerolog.Logger
}

func NewPaymentUseCase(
	ledger repository.LedgerRepository,
	credentials repository.CredentialRepository,
	audit repository.AuditRepository,
	gateway adapter.PaymentGateway,
	provisioner adapter.ProvisioningGateway,
	checker PaymentCheckUseCase,
	defaultPackage int,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		ledger:         ledger,
		credentials:    credentials,
		audit:          audit,
		gateway:        gateway,
		provisioner:    provisioner,
		checker:        checker,
		defaultPackage: defaultPackage,
		log:            &l,
	}
}

func (u *paymentUC) InitiateCharge(ctx context.Context, phone string, plan model.Plan, packageID int) (*model.Charge, error) {
	if packageID <= 0 {
		packageID = u.defaultPackage
	}
	charge, err := u.gateway.CreateCharge(ctx, phone, plan)
	if err != nil {
		metrics.IncCharge(plan.ID, "error")
		return nil, fmt.Errorf("create charge: %w", err)
	}

	err = u.ledger.Upsert(ctx, charge.TransactionID, model.LedgerPatch{
		Owner:     model.StrPtr(phone),
		Plan:      model.StrPtr(plan.ID),
		PackageID: model.IntPtr(packageID),
	})
	if err != nil {
		// The invoice exists at the gateway but we lost the idempotency
		// record; surface the failure instead of handing the user a charge
		// we cannot reconcile.
		metrics.IncCharge(plan.ID, "error")
		return nil, fmt.Errorf("record pending transaction: %w", err)
	}

	metrics.IncCharge(plan.ID, "ok")
	u.appendAudit(ctx, repository.AuditChargeCreated, charge.TransactionID, phone,
		fmt.Sprintf("plan=%s amount_cents=%d", plan.ID, plan.PriceCents))
	u.log.Info().Str("tx_id", charge.TransactionID).Str("plan", plan.ID).
		Str("phone", logging.MaskPhone(phone)).Msg("charge created")
	return charge, nil
}

func (u *paymentUC) AttachTransaction(ctx context.Context, phone, txID string) (*model.LedgerRecord, error) {
	if txID == "" {
		return nil, domain.ErrInvalidArgument
	}
	rec, err := u.ledger.Get(ctx, txID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if rec != nil && rec.Owner != "" && rec.Owner != phone {
		u.appendAudit(ctx, repository.AuditDuplicateBlocked, txID, phone, "attach rejected: owner mismatch")
		return nil, domain.ErrWrongOwner
	}
	if err := u.ledger.Upsert(ctx, txID, model.LedgerPatch{Owner: model.StrPtr(phone)}); err != nil {
		return nil, err
	}
	return u.ledger.Get(ctx, txID)
}

func (u *paymentUC) ConfirmAndProvision(ctx context.Context, phone, txID string) (*ConfirmResult, error) {
	rec, err := u.ledger.Get(ctx, txID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoPendingTransaction
		}
		return nil, err
	}
	if rec.Owner != "" && rec.Owner != phone {
		u.appendAudit(ctx, repository.AuditDuplicateBlocked, txID, phone, "confirm rejected: owner mismatch")
		metrics.IncDuplicateClaim()
		return &ConfirmResult{Outcome: OutcomeWrongOwner, Phone: phone}, nil
	}
	if rec.Status == model.LedgerProcessed {
		u.appendAudit(ctx, repository.AuditDuplicateBlocked, txID, phone, "confirm rejected: already processed")
		metrics.IncDuplicateClaim()
		return &ConfirmResult{Outcome: OutcomeAlreadyProcessed, Phone: phone}, nil
	}

	u.appendAudit(ctx, repository.AuditPaymentCheckStarted, txID, phone, "mode=burst")
	check := u.checker.BurstCheck(ctx, txID)
	u.appendAudit(ctx, repository.AuditPaymentCheckResult, txID, phone,
		fmt.Sprintf("mode=burst paid=%t attempts=%d status=%s", check.Paid, check.Attempts, check.LastStatus))
	if !check.Paid {
		return &ConfirmResult{Outcome: OutcomeNotConfirmed, Phone: phone, Check: check}, nil
	}

	return u.settle(ctx, rec, phone, check)
}

func (u *paymentUC) FinalizeSettled(ctx context.Context, txID string) (*ConfirmResult, error) {
	rec, err := u.ledger.Get(ctx, txID)
	if err != nil {
		return nil, err
	}
	if rec.Status == model.LedgerProcessed {
		return &ConfirmResult{Outcome: OutcomeAlreadyProcessed, Phone: rec.Owner}, nil
	}
	if rec.Owner == "" {
		// Nobody to provision for yet; the owner attaches later via the
		// transaction-id command and the claim path takes over.
		return &ConfirmResult{Outcome: OutcomeNotConfirmed, Phone: ""}, nil
	}

	// The notification itself proves nothing. One direct query decides the
	// fast path; when the gateway's status lags behind its own callback,
	// the slow poll keeps asking before giving up on the settlement.
	q := u.gateway.QueryStatus(ctx, txID)
	check := model.PollResult{Paid: q.Confirmed, Attempts: 1, LastStatus: q.SettledStatus, LastErr: q.Err}
	if !q.Confirmed {
		poll := u.checker.SlowPoll(ctx, txID)
		check = model.PollResult{
			Paid:       poll.Paid,
			Attempts:   check.Attempts + poll.Attempts,
			LastStatus: poll.LastStatus,
			LastErr:    poll.LastErr,
		}
	}
	u.appendAudit(ctx, repository.AuditPaymentCheckResult, txID, rec.Owner,
		fmt.Sprintf("mode=finalize paid=%t attempts=%d status=%s", check.Paid, check.Attempts, check.LastStatus))
	if !check.Paid {
		return &ConfirmResult{Outcome: OutcomeNotConfirmed, Phone: rec.Owner, Check: check}, nil
	}

	return u.settle(ctx, rec, rec.Owner, check)
}

// settle records the confirmed payment and, for the single winner of the
// paid -> processed transition, creates the account.
func (u *paymentUC) settle(ctx context.Context, rec *model.LedgerRecord, phone string, check model.PollResult) (*ConfirmResult, error) {
	plan, _ := model.PlanByID(rec.Plan)

	if err := u.ledger.Upsert(ctx, rec.TransactionID, model.LedgerPatch{
		Owner:  model.StrPtr(phone),
		Status: model.LedgerPaid,
	}); err != nil {
		if errors.Is(err, domain.ErrStaleWrite) {
			// A concurrent settle already moved the record past paid.
			metrics.IncStaleWrite()
			u.appendAudit(ctx, repository.AuditStaleWriteRejected, rec.TransactionID, phone, "paid write superseded")
		} else {
			return nil, fmt.Errorf("mark paid: %w", err)
		}
	}

	won, err := u.ledger.TryMarkProcessed(ctx, rec.TransactionID, phone)
	if err != nil {
		return nil, fmt.Errorf("mark processed: %w", err)
	}
	if !won {
		u.appendAudit(ctx, repository.AuditDuplicateBlocked, rec.TransactionID, phone, "processing slot already taken")
		metrics.IncDuplicateClaim()
		return &ConfirmResult{Outcome: OutcomeAlreadyProcessed, Phone: phone, Plan: plan, Check: check}, nil
	}

	packageID := rec.PackageID
	if packageID <= 0 {
		packageID = u.defaultPackage
	}
	creds, err := u.provisioner.Provision(ctx, adapter.ProvisionRequest{
		Class:     model.AccountOfficial,
		PackageID: packageID,
		Phone:     phone,
		Note:      fmt.Sprintf("plan=%s tx=%s", rec.Plan, rec.TransactionID),
	})
	if err != nil {
		metrics.IncProvisioning(string(model.AccountOfficial), "error")
		u.appendAudit(ctx, repository.AuditProvisioningError, rec.TransactionID, phone, err.Error())
		u.log.Error().Err(err).Str("tx_id", rec.TransactionID).
			Str("phone", logging.MaskPhone(phone)).Msg("panel provisioning failed after processing slot won")
		return &ConfirmResult{Outcome: OutcomeProvisionFailed, Phone: phone, Plan: plan, Check: check}, nil
	}

	if err := u.credentials.Save(ctx, phone, *creds, model.AccountOfficial); err != nil {
		// The account exists; losing the stored copy only breaks replay.
		u.log.Error().Err(err).Str("tx_id", rec.TransactionID).Msg("saving credentials failed")
	}
	metrics.IncProvisioning(string(model.AccountOfficial), "ok")
	u.appendAudit(ctx, repository.AuditAccountCreated, rec.TransactionID, phone,
		fmt.Sprintf("class=official plan=%s username=%s", rec.Plan, creds.Username))
	u.log.Info().Str("tx_id", rec.TransactionID).Str("plan", rec.Plan).
		Str("phone", logging.MaskPhone(phone)).Msg("account provisioned")

	return &ConfirmResult{Outcome: OutcomeProvisioned, Phone: phone, Plan: plan, Creds: creds, Check: check}, nil
}

func (u *paymentUC) appendAudit(ctx context.Context, event, txID, phone, detail string) {
	ev := repository.AuditEvent{
		Event:         event,
		TransactionID: txID,
		PhoneMasked:   logging.MaskPhone(phone),
		Detail:        detail,
		CreatedAt:     time.Now(),
	}
	if err := u.audit.Append(ctx, ev); err != nil {
		u.log.Warn().Err(err).Str("event", event).Msg("audit append failed")
	}
}
