package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/blablabl4/StreamAssist/internal/domain"
	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/adapter"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/repository"
	"github.com/blablabl4/StreamAssist/internal/infra/i18n"
	"github.com/blablabl4/StreamAssist/internal/infra/logging"
	"github.com/blablabl4/StreamAssist/internal/infra/metrics"
	"github.com/blablabl4/StreamAssist/internal/usecase"
)

// Orchestrator is the dialog state machine. It consumes one inbound message
// at a time (the dispatcher serializes per phone), consults the stores and
// usecases, and emits outbound messages through the transport.
type Orchestrator struct {
	states      repository.ConversationStateRepository
	payments    usecase.PaymentUseCase
	trials      usecase.TrialUseCase
	credentials usecase.CredentialUseCase
	transport   adapter.MessageTransport
	tr          *i18n.Translator

	cooldownDays   int
	defaultPackage int
	log            *zerolog.Logger
}

func NewOrchestrator(
	states repository.ConversationStateRepository,
	payments usecase.PaymentUseCase,
	trials usecase.TrialUseCase,
	credentials usecase.CredentialUseCase,
	transport adapter.MessageTransport,
	tr *i18n.Translator,
	cooldownDays, defaultPackage int,
	logger *zerolog.Logger,
) *Orchestrator {
	l := logger.With().Str("component", "Orchestrator").Logger()
	return &Orchestrator{
		states:         states,
		payments:       payments,
		trials:         trials,
		credentials:    credentials,
		transport:      transport,
		tr:             tr,
		cooldownDays:   cooldownDays,
		defaultPackage: defaultPackage,
		log:            &l,
	}
}

// HandleMessage is the single entry point per inbound message. Any panic or
// error inside a transition handler is caught here: the user gets a generic
// apology and the stores keep whatever was durably written before the fault.
func (o *Orchestrator) HandleMessage(ctx context.Context, phone, text string) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Str("phone", logging.MaskPhone(phone)).Msg("handler panic")
			_ = o.transport.Send(ctx, phone, o.tr.T("generic_error"))
		}
	}()

	if err := o.handle(ctx, phone, text); err != nil {
		o.log.Error().Err(err).Str("phone", logging.MaskPhone(phone)).
			Str("text", text).Msg("handler failed")
		_ = o.transport.Send(ctx, phone, o.tr.T("generic_error"))
	}
}

func (o *Orchestrator) handle(ctx context.Context, phone, text string) error {
	// Synonym mapping is deferred until after the payment-confirmation
	// branch so that only an explicit 1/2/sim/nao answers a pending
	// charge; "planos" or "status" with a charge open still mean the menu
	// sections they name.
	cmd := normalize(text)

	state, err := o.states.Get(ctx, phone)
	firstContact := false
	if errors.Is(err, domain.ErrNotFound) {
		state = &model.ConversationState{Step: model.StepMenu}
		firstContact = true
	} else if err != nil {
		return err
	}

	if firstContact {
		// Persist an initial state so the greeting goes out once, even if
		// the handler below never writes.
		if _, err := o.states.Set(ctx, phone, model.StatePatch{Step: model.StepMenu}); err != nil {
			return err
		}
		if err := o.transport.Send(ctx, phone, o.tr.T("welcome")); err != nil {
			return err
		}
	}

	// Global reset wins over everything.
	if cmd == "0" || cmd == "menu" {
		metrics.IncCommand("menu")
		if _, err := o.states.Set(ctx, phone, model.StatePatch{
			Step:         model.StepMenu,
			SelectedPlan: model.StrPtr(""),
			TutorialKey:  model.StrPtr(""),
		}); err != nil {
			return err
		}
		return o.transport.Send(ctx, phone, o.tr.T("menu"))
	}

	// Explicit transaction attachment: "TXID <value>". The id keeps the
	// sender's casing.
	if strings.HasPrefix(cmd, "txid") {
		parts := strings.Fields(strings.TrimSpace(text))
		id := ""
		if len(parts) >= 2 {
			id = parts[1]
		}
		return o.handleAttachTx(ctx, phone, id)
	}

	// With a charge pending, 1/2 act as payment yes/no before anything else.
	if state.PendingTxID != "" && state.Step == model.StepMenu {
		switch cmd {
		case "1", "sim":
			return o.handleConfirmPayment(ctx, phone, state)
		case "2", "nao":
			metrics.IncCommand("payment_not_yet")
			return o.transport.Send(ctx, phone, o.tr.T("payment_not_yet_ok"))
		}
	}
	if mapped, ok := textSynonyms[cmd]; ok {
		cmd = mapped
	}

	switch state.Step {
	case model.StepChoosingPlan:
		return o.handlePlanChoice(ctx, phone, cmd, false)
	case model.StepRenewingPlan:
		return o.handlePlanChoice(ctx, phone, cmd, true)
	case model.StepChoosingGuide:
		return o.handleTutorialChoice(ctx, phone, cmd)
	case model.StepChoosingSetup:
		return o.handleInstallChoice(ctx, phone, cmd, state)
	default:
		return o.handleMenu(ctx, phone, cmd)
	}
}

func (o *Orchestrator) handleMenu(ctx context.Context, phone, cmd string) error {
	// Plan names work as shortcuts straight from the menu.
	if digit, ok := planSynonyms[cmd]; ok {
		return o.handleCreateCharge(ctx, phone, digit)
	}

	switch cmd {
	case "1":
		metrics.IncCommand("plans")
		if _, err := o.states.Set(ctx, phone, model.StatePatch{Step: model.StepChoosingPlan}); err != nil {
			return err
		}
		return o.transport.Send(ctx, phone, o.tr.T("plans", o.cooldownDays))
	case "2":
		metrics.IncCommand("status")
		return o.handleStatus(ctx, phone)
	case "3":
		metrics.IncCommand("credentials")
		return o.handleCredentials(ctx, phone)
	case "4":
		metrics.IncCommand("renew")
		if _, err := o.states.Set(ctx, phone, model.StatePatch{Step: model.StepRenewingPlan}); err != nil {
			return err
		}
		return o.transport.Send(ctx, phone, o.tr.T("plans_renew"))
	case "5":
		metrics.IncCommand("tutorials")
		if _, err := o.states.Set(ctx, phone, model.StatePatch{Step: model.StepChoosingGuide}); err != nil {
			return err
		}
		return o.transport.Send(ctx, phone, o.tr.T("tutorials_menu"))
	case "6":
		metrics.IncCommand("trial")
		return o.handleTrial(ctx, phone)
	}

	metrics.IncCommand("unknown")
	return o.transport.Send(ctx, phone, o.tr.T("unknown_command"))
}

func (o *Orchestrator) handlePlanChoice(ctx context.Context, phone, cmd string, renewing bool) error {
	if digit, ok := planSynonyms[cmd]; ok {
		cmd = digit
	}
	if cmd == "1" && !renewing {
		metrics.IncCommand("trial")
		return o.handleTrial(ctx, phone)
	}
	if _, ok := model.DefaultPlans[cmd]; ok {
		return o.handleCreateCharge(ctx, phone, cmd)
	}
	// Invalid choice re-prompts inside the chooser; state stays put.
	return o.transport.Send(ctx, phone, o.tr.T("plan_invalid"))
}

func (o *Orchestrator) handleCreateCharge(ctx context.Context, phone, planDigit string) error {
	plan := model.DefaultPlans[planDigit]
	metrics.IncCommand("buy_" + plan.ID)

	if err := o.transport.Send(ctx, phone, o.tr.T("charge_generating")); err != nil {
		return err
	}
	charge, err := o.payments.InitiateCharge(ctx, phone, plan, o.defaultPackage)
	if err != nil {
		o.log.Error().Err(err).Str("plan", plan.ID).Str("phone", logging.MaskPhone(phone)).Msg("charge creation failed")
		return o.transport.Send(ctx, phone, o.tr.T("charge_failed"))
	}

	// The pending transaction id must be durable before the user is told to
	// pay, otherwise a crash here would orphan the charge.
	if _, err := o.states.Set(ctx, phone, model.StatePatch{
		Step:         model.StepMenu,
		PendingTxID:  model.StrPtr(charge.TransactionID),
		SelectedPlan: model.StrPtr(plan.ID),
	}); err != nil {
		return err
	}

	details := o.tr.T("charge_details",
		strings.ToUpper(plan.Name),
		formatPrice(charge.AmountCents),
		charge.DueAt.Format("02/01/2006 15:04"),
		charge.QRCodeText,
		charge.QRCodeLink,
	)
	if err := o.transport.Send(ctx, phone, details); err != nil {
		return err
	}
	return o.transport.Send(ctx, phone, o.tr.T("ask_payment_confirmation"))
}

func (o *Orchestrator) handleConfirmPayment(ctx context.Context, phone string, state *model.ConversationState) error {
	metrics.IncCommand("payment_confirm")

	res, err := o.payments.ConfirmAndProvision(ctx, phone, state.PendingTxID)
	if err != nil {
		if errors.Is(err, domain.ErrNoPendingTransaction) {
			return o.transport.Send(ctx, phone, o.tr.T("no_pending_tx"))
		}
		return err
	}

	switch res.Outcome {
	case usecase.OutcomeProvisioned:
		if _, err := o.states.Set(ctx, phone, model.StatePatch{PendingTxID: model.StrPtr("")}); err != nil {
			o.log.Error().Err(err).Msg("clearing pending tx failed")
		}
		if err := o.transport.Send(ctx, phone, o.tr.T("payment_confirmed_processing")); err != nil {
			return err
		}
		return o.transport.Send(ctx, phone, o.formatCredentials(res.Creds))
	case usecase.OutcomeAlreadyProcessed:
		if _, err := o.states.Set(ctx, phone, model.StatePatch{PendingTxID: model.StrPtr("")}); err != nil {
			o.log.Error().Err(err).Msg("clearing pending tx failed")
		}
		return o.transport.Send(ctx, phone, o.tr.T("payment_already_processed"))
	case usecase.OutcomeWrongOwner:
		return o.transport.Send(ctx, phone, o.tr.T("payment_wrong_owner"))
	case usecase.OutcomeProvisionFailed:
		if _, err := o.states.Set(ctx, phone, model.StatePatch{PendingTxID: model.StrPtr("")}); err != nil {
			o.log.Error().Err(err).Msg("clearing pending tx failed")
		}
		return o.transport.Send(ctx, phone, o.tr.T("provision_failed"))
	default:
		return o.transport.Send(ctx, phone, o.tr.T("payment_not_confirmed"))
	}
}

func (o *Orchestrator) handleAttachTx(ctx context.Context, phone, txID string) error {
	metrics.IncCommand("attach_tx")
	if txID == "" {
		return o.transport.Send(ctx, phone, o.tr.T("txid_invalid"))
	}
	rec, err := o.payments.AttachTransaction(ctx, phone, txID)
	if err != nil {
		if errors.Is(err, domain.ErrWrongOwner) {
			return o.transport.Send(ctx, phone, o.tr.T("payment_wrong_owner"))
		}
		if errors.Is(err, domain.ErrInvalidArgument) {
			return o.transport.Send(ctx, phone, o.tr.T("txid_invalid"))
		}
		return err
	}
	if _, err := o.states.Set(ctx, phone, model.StatePatch{
		Step:        model.StepMenu,
		PendingTxID: model.StrPtr(rec.TransactionID),
	}); err != nil {
		return err
	}
	return o.transport.Send(ctx, phone, o.tr.T("txid_attached", rec.TransactionID))
}

func (o *Orchestrator) handleTrial(ctx context.Context, phone string) error {
	now := time.Now()
	elig, err := o.trials.CheckEligible(ctx, phone, now)
	if err != nil {
		return err
	}
	if !elig.Eligible {
		return o.transport.Send(ctx, phone, o.tr.T("trial_not_allowed", elig.RemainingDays))
	}

	if err := o.transport.Send(ctx, phone, o.tr.T("trial_creating")); err != nil {
		return err
	}
	creds, err := o.trials.Issue(ctx, phone, now)
	if err != nil {
		if errors.Is(err, domain.ErrCooldownActive) {
			// Lost a race with a concurrent trial request.
			return o.transport.Send(ctx, phone, o.tr.T("trial_not_allowed", o.cooldownDays))
		}
		o.log.Error().Err(err).Str("phone", logging.MaskPhone(phone)).Msg("trial issuance failed")
		return o.transport.Send(ctx, phone, o.tr.T("trial_failed"))
	}
	if _, err := o.states.Set(ctx, phone, model.StatePatch{Step: model.StepMenu}); err != nil {
		o.log.Error().Err(err).Msg("resetting step after trial failed")
	}
	return o.transport.Send(ctx, phone, o.formatCredentials(creds))
}

func (o *Orchestrator) handleTutorialChoice(ctx context.Context, phone, cmd string) error {
	entry, ok := tutorials[cmd]
	if !ok {
		// Invalid tutorial numbers reset to menu so nobody gets stuck here.
		if _, err := o.states.Set(ctx, phone, model.StatePatch{Step: model.StepMenu}); err != nil {
			return err
		}
		return o.transport.Send(ctx, phone, o.tr.T("tutorial_invalid"))
	}
	if _, err := o.states.Set(ctx, phone, model.StatePatch{
		Step:        model.StepChoosingSetup,
		TutorialKey: model.StrPtr(entry.Key),
	}); err != nil {
		return err
	}
	return o.transport.Send(ctx, phone, o.tr.T("install_options", strings.ToUpper(entry.Name), entry.App))
}

func (o *Orchestrator) handleInstallChoice(ctx context.Context, phone, cmd string, state *model.ConversationState) error {
	entry, ok := tutorialByKey(state.TutorialKey)
	if !ok {
		if _, err := o.states.Set(ctx, phone, model.StatePatch{Step: model.StepMenu}); err != nil {
			return err
		}
		return o.transport.Send(ctx, phone, o.tr.T("tutorials_menu"))
	}

	// Every branch returns to the menu.
	if _, err := o.states.Set(ctx, phone, model.StatePatch{
		Step:        model.StepMenu,
		TutorialKey: model.StrPtr(""),
	}); err != nil {
		return err
	}
	switch cmd {
	case "1":
		return o.transport.Send(ctx, phone, o.tr.T("tutorial_free", entry.Name, entry.App, entry.Video))
	case "2":
		return o.transport.Send(ctx, phone, o.tr.T("tutorial_paid", entry.Name))
	default:
		return o.transport.Send(ctx, phone, o.tr.T("install_invalid"))
	}
}

func (o *Orchestrator) handleStatus(ctx context.Context, phone string) error {
	all, err := o.credentials.List(ctx, phone)
	if err != nil {
		return err
	}
	now := time.Now()
	var b strings.Builder
	for _, sc := range all {
		if sc.Creds.ExpiresAt.Before(now) {
			continue
		}
		days := int(sc.Creds.ExpiresAt.Sub(now).Hours() / 24)
		b.WriteString(o.tr.T("status_entry",
			accountLabel(sc.Class), days, sc.Creds.ExpiresAt.Format("02/01/2006"), "ATIVA"))
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return o.transport.Send(ctx, phone, o.tr.T("status_none"))
	}
	return o.transport.Send(ctx, phone, o.tr.T("status_header")+"\n"+b.String())
}

func (o *Orchestrator) handleCredentials(ctx context.Context, phone string) error {
	all, err := o.credentials.List(ctx, phone)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return o.transport.Send(ctx, phone, o.tr.T("credentials_none"))
	}
	var b strings.Builder
	b.WriteString(o.tr.T("credentials_header"))
	b.WriteString("\n")
	for _, sc := range all {
		b.WriteString(o.tr.T("credentials_entry",
			accountLabel(sc.Class), sc.Creds.Username, sc.Creds.Password,
			sc.Creds.ExpiresAt.Format("02/01/2006")))
		b.WriteString("\n")
	}
	return o.transport.Send(ctx, phone, b.String())
}

func (o *Orchestrator) formatCredentials(creds *model.Credentials) string {
	var links strings.Builder
	for i, l := range creds.AccessLinks {
		if i >= 3 {
			fmt.Fprintf(&links, "... e mais %d links", len(creds.AccessLinks)-3)
			break
		}
		fmt.Fprintf(&links, "%d. %s\n", i+1, l)
	}
	return o.tr.T("credentials_created",
		creds.Username, creds.Password,
		creds.ExpiresAt.Format("02/01/2006"),
		strings.TrimRight(links.String(), "\n"),
	)
}

// NotifyProvisioned is the out-of-band delivery path: the webhook or the
// reconciler settled a charge and the owner needs their credentials.
func (o *Orchestrator) NotifyProvisioned(ctx context.Context, phone string, creds *model.Credentials) {
	if creds == nil || phone == "" {
		return
	}
	if _, err := o.states.Set(ctx, phone, model.StatePatch{PendingTxID: model.StrPtr("")}); err != nil {
		o.log.Error().Err(err).Msg("clearing pending tx failed")
	}
	if err := o.transport.Send(ctx, phone, o.tr.T("payment_confirmed_processing")); err != nil {
		o.log.Error().Err(err).Str("phone", logging.MaskPhone(phone)).Msg("notify failed")
		return
	}
	_ = o.transport.Send(ctx, phone, o.formatCredentials(creds))
}

func accountLabel(class model.AccountClass) string {
	if class == model.AccountTrial {
		return "TESTE"
	}
	return "OFICIAL"
}

// formatPrice renders cents as Brazilian currency digits, e.g. 3500 -> 35,00.
func formatPrice(cents int64) string {
	return fmt.Sprintf("%d,%02d", cents/100, cents%100)
}
