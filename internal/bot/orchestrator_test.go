package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/blablabl4/StreamAssist/internal/domain"
	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/repository"
	"github.com/blablabl4/StreamAssist/internal/infra/i18n"
	"github.com/blablabl4/StreamAssist/internal/usecase"
)

// memStates is a map-backed conversation state store for tests.
type memStates struct {
	mu    sync.Mutex
	store map[string]*model.ConversationState
}

var _ repository.ConversationStateRepository = (*memStates)(nil)

func newMemStates() *memStates {
	return &memStates{store: make(map[string]*model.ConversationState)}
}

func (m *memStates) Get(ctx context.Context, phone string) (*model.ConversationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[phone]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStates) Set(ctx context.Context, phone string, patch model.StatePatch) (*model.ConversationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[phone]
	if !ok {
		s = &model.ConversationState{Step: model.StepMenu}
		m.store[phone] = s
	}
	patch.Apply(s, time.Now())
	cp := *s
	return &cp, nil
}

func (m *memStates) Clear(ctx context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, phone)
	return nil
}

// recordingTransport captures every outbound message.
type recordingTransport struct {
	mu   sync.Mutex
	sent []string
}

func (t *recordingTransport) Send(ctx context.Context, phone, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, text)
	return nil
}

func (t *recordingTransport) last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sent) == 0 {
		return ""
	}
	return t.sent[len(t.sent)-1]
}

// stubPayments implements usecase.PaymentUseCase with function hooks.
type stubPayments struct {
	initiateFunc func(ctx context.Context, phone string, plan model.Plan, packageID int) (*model.Charge, error)
	confirmFunc  func(ctx context.Context, phone, txID string) (*usecase.ConfirmResult, error)
	attachFunc   func(ctx context.Context, phone, txID string) (*model.LedgerRecord, error)
}

var _ usecase.PaymentUseCase = (*stubPayments)(nil)

func (s *stubPayments) InitiateCharge(ctx context.Context, phone string, plan model.Plan, packageID int) (*model.Charge, error) {
	if s.initiateFunc != nil {
		return s.initiateFunc(ctx, phone, plan, packageID)
	}
	return &model.Charge{
		TransactionID: "TX-1",
		Plan:          plan.ID,
		AmountCents:   plan.PriceCents,
		DueAt:         time.Now().Add(24 * time.Hour),
		QRCodeLink:    "https://example.com/qr.png",
		QRCodeText:    "00020126pix",
	}, nil
}

func (s *stubPayments) AttachTransaction(ctx context.Context, phone, txID string) (*model.LedgerRecord, error) {
	if s.attachFunc != nil {
		return s.attachFunc(ctx, phone, txID)
	}
	return &model.LedgerRecord{TransactionID: txID, Owner: phone, Status: model.LedgerPending}, nil
}

func (s *stubPayments) ConfirmAndProvision(ctx context.Context, phone, txID string) (*usecase.ConfirmResult, error) {
	if s.confirmFunc != nil {
		return s.confirmFunc(ctx, phone, txID)
	}
	return &usecase.ConfirmResult{Outcome: usecase.OutcomeNotConfirmed, Phone: phone}, nil
}

func (s *stubPayments) FinalizeSettled(ctx context.Context, txID string) (*usecase.ConfirmResult, error) {
	return &usecase.ConfirmResult{Outcome: usecase.OutcomeNotConfirmed}, nil
}

// stubTrials implements usecase.TrialUseCase.
type stubTrials struct {
	eligibility usecase.Eligibility
	issueErr    error
	issued      int
}

var _ usecase.TrialUseCase = (*stubTrials)(nil)

func (s *stubTrials) CheckEligible(ctx context.Context, phone string, now time.Time) (usecase.Eligibility, error) {
	return s.eligibility, nil
}

func (s *stubTrials) Issue(ctx context.Context, phone string, now time.Time) (*model.Credentials, error) {
	if s.issueErr != nil {
		return nil, s.issueErr
	}
	s.issued++
	return &model.Credentials{Username: "trial1", Password: "pw", ExpiresAt: now.Add(72 * time.Hour)}, nil
}

// stubCreds implements usecase.CredentialUseCase.
type stubCreds struct {
	stored []*model.StoredCredentials
}

var _ usecase.CredentialUseCase = (*stubCreds)(nil)

func (s *stubCreds) List(ctx context.Context, phone string) ([]*model.StoredCredentials, error) {
	return s.stored, nil
}

func (s *stubCreds) Latest(ctx context.Context, phone string) (*model.StoredCredentials, error) {
	if len(s.stored) == 0 {
		return nil, nil
	}
	return s.stored[0], nil
}

type orchestratorTestDeps struct {
	states    *memStates
	payments  *stubPayments
	trials    *stubTrials
	creds     *stubCreds
	transport *recordingTransport
	orch      *Orchestrator
}

func newOrchestratorDeps(t *testing.T) *orchestratorTestDeps {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "pt-BR")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	deps := &orchestratorTestDeps{
		states:    newMemStates(),
		payments:  &stubPayments{},
		trials:    &stubTrials{eligibility: usecase.Eligibility{Eligible: true}},
		creds:     &stubCreds{},
		transport: &recordingTransport{},
	}
	logger := zerolog.Nop()
	deps.orch = NewOrchestrator(deps.states, deps.payments, deps.trials, deps.creds,
		deps.transport, tr, 60, 2, &logger)
	return deps
}

func (d *orchestratorTestDeps) step(t *testing.T, phone string) model.Step {
	t.Helper()
	s, err := d.states.Get(context.Background(), phone)
	if err != nil {
		return model.StepMenu
	}
	return s.Step
}

func TestOrchestrator_Reset(t *testing.T) {
	ctx := context.Background()
	const phone = "5511999990000"

	steps := []model.Step{
		model.StepMenu, model.StepChoosingPlan, model.StepRenewingPlan,
		model.StepChoosingGuide, model.StepChoosingSetup,
	}
	for _, st := range steps {
		t.Run("resets from "+string(st), func(t *testing.T) {
			// --- Arrange ---
			deps := newOrchestratorDeps(t)
			_, _ = deps.states.Set(ctx, phone, model.StatePatch{Step: st, TutorialKey: model.StrPtr("samsung")})

			// --- Act ---
			deps.orch.HandleMessage(ctx, phone, "0")

			// --- Assert ---
			if got := deps.step(t, phone); got != model.StepMenu {
				t.Errorf("step = %s, want menu", got)
			}
			if !strings.Contains(deps.transport.last(), "BEM-VINDO") {
				t.Error("expected the menu message")
			}
		})
	}

	t.Run("reset clears step-transient fields but keeps the pending tx", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)
		_, _ = deps.states.Set(ctx, phone, model.StatePatch{
			Step:         model.StepChoosingGuide,
			PendingTxID:  model.StrPtr("TX-9"),
			SelectedPlan: model.StrPtr("monthly"),
			TutorialKey:  model.StrPtr("lg"),
		})

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "menu")

		// --- Assert ---
		s, _ := deps.states.Get(ctx, phone)
		if s.TutorialKey != "" || s.SelectedPlan != "" {
			t.Errorf("transient fields not cleared: %+v", s)
		}
		if s.PendingTxID != "TX-9" {
			t.Errorf("pending tx = %q, must survive a menu reset", s.PendingTxID)
		}
	})
}

func TestOrchestrator_PlanPurchase(t *testing.T) {
	ctx := context.Background()
	const phone = "5511999990000"

	t.Run("plan selection creates a charge and records the pending tx", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)
		deps.orch.HandleMessage(ctx, phone, "1") // open plan chooser
		if got := deps.step(t, phone); got != model.StepChoosingPlan {
			t.Fatalf("step = %s, want choosing_plan", got)
		}

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "2") // monthly

		// --- Assert ---
		s, _ := deps.states.Get(ctx, phone)
		if s.PendingTxID != "TX-1" {
			t.Errorf("pending tx = %q, want TX-1", s.PendingTxID)
		}
		if s.Step != model.StepMenu {
			t.Errorf("step = %s, want menu after charging", s.Step)
		}
		if !strings.Contains(deps.transport.last(), "CONFIRMAÇÃO DE PAGAMENTO") {
			t.Error("expected the payment confirmation prompt")
		}
	})

	t.Run("plan name works as a shortcut from the menu", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)
		var chargedPlan string
		deps.payments.initiateFunc = func(ctx context.Context, phone string, plan model.Plan, packageID int) (*model.Charge, error) {
			chargedPlan = plan.ID
			return &model.Charge{TransactionID: "TX-2", Plan: plan.ID, AmountCents: plan.PriceCents, DueAt: time.Now()}, nil
		}

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "Trimestral")

		// --- Assert ---
		if chargedPlan != "quarterly" {
			t.Errorf("charged plan = %q, want quarterly", chargedPlan)
		}
	})

	t.Run("invalid plan choice re-prompts without leaving the chooser", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)
		deps.orch.HandleMessage(ctx, phone, "1")

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "9")

		// --- Assert ---
		if got := deps.step(t, phone); got != model.StepChoosingPlan {
			t.Errorf("step = %s, want choosing_plan", got)
		}
		if !strings.Contains(deps.transport.last(), "Opção inválida") {
			t.Error("expected the invalid-plan re-prompt")
		}
	})
}

func TestOrchestrator_PaymentConfirmation(t *testing.T) {
	ctx := context.Background()
	const phone = "5511999990000"

	t.Run("confirmed payment delivers credentials and clears the pending tx", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)
		_, _ = deps.states.Set(ctx, phone, model.StatePatch{PendingTxID: model.StrPtr("TX-1")})
		deps.payments.confirmFunc = func(ctx context.Context, p, txID string) (*usecase.ConfirmResult, error) {
			return &usecase.ConfirmResult{
				Outcome: usecase.OutcomeProvisioned,
				Phone:   p,
				Creds:   &model.Credentials{Username: "u1", Password: "p1", ExpiresAt: time.Now().Add(720 * time.Hour)},
			}, nil
		}

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "1")

		// --- Assert ---
		s, _ := deps.states.Get(ctx, phone)
		if s.PendingTxID != "" {
			t.Errorf("pending tx = %q, want cleared", s.PendingTxID)
		}
		if !strings.Contains(deps.transport.last(), "CONTA IPTV CRIADA") {
			t.Error("expected the credentials message")
		}
	})

	t.Run("unconfirmed payment keeps the pending tx for retry", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)
		_, _ = deps.states.Set(ctx, phone, model.StatePatch{PendingTxID: model.StrPtr("TX-1")})

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "1")

		// --- Assert ---
		s, _ := deps.states.Get(ctx, phone)
		if s.PendingTxID != "TX-1" {
			t.Errorf("pending tx = %q, want retained", s.PendingTxID)
		}
		if !strings.Contains(deps.transport.last(), "não consta pagamento") {
			t.Error("expected the not-yet-confirmed message")
		}
	})

	t.Run("1 without a pending tx opens the plan chooser", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "1")

		// --- Assert ---
		if got := deps.step(t, phone); got != model.StepChoosingPlan {
			t.Errorf("step = %s, want choosing_plan", got)
		}
	})

	t.Run("menu words with a pending tx do not answer the payment prompt", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)
		deps.payments.confirmFunc = func(ctx context.Context, phone, txID string) (*usecase.ConfirmResult, error) {
			t.Error("payment check must not run for a menu synonym")
			return &usecase.ConfirmResult{Outcome: usecase.OutcomeNotConfirmed}, nil
		}
		_, _ = deps.states.Set(ctx, phone, model.StatePatch{PendingTxID: model.StrPtr("TX-1")})

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "planos")

		// --- Assert ---
		if got := deps.step(t, phone); got != model.StepChoosingPlan {
			t.Errorf("step = %s, want choosing_plan", got)
		}
		s, _ := deps.states.Get(ctx, phone)
		if s.PendingTxID != "TX-1" {
			t.Errorf("pending tx = %q, want retained", s.PendingTxID)
		}
	})

	t.Run("2 with a pending tx is a friendly not-yet", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)
		_, _ = deps.states.Set(ctx, phone, model.StatePatch{PendingTxID: model.StrPtr("TX-1")})

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "2")

		// --- Assert ---
		if !strings.Contains(deps.transport.last(), "Assim que pagar") {
			t.Error("expected the not-yet acknowledgment")
		}
	})

	t.Run("TXID command attaches an external transaction", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "TXID abc123")

		// --- Assert ---
		s, _ := deps.states.Get(ctx, phone)
		if s.PendingTxID != "abc123" {
			t.Errorf("pending tx = %q, want abc123", s.PendingTxID)
		}
	})
}

func TestOrchestrator_Trial(t *testing.T) {
	ctx := context.Background()
	const phone = "5511999990000"

	t.Run("eligible user gets a trial", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "6")

		// --- Assert ---
		if deps.trials.issued != 1 {
			t.Errorf("issued = %d, want 1", deps.trials.issued)
		}
		if !strings.Contains(deps.transport.last(), "CONTA IPTV CRIADA") {
			t.Error("expected the credentials message")
		}
	})

	t.Run("cooldown shows remaining days without issuing", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)
		deps.trials.eligibility = usecase.Eligibility{Eligible: false, RemainingDays: 42}

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "teste")

		// --- Assert ---
		if deps.trials.issued != 0 {
			t.Errorf("issued = %d, want 0", deps.trials.issued)
		}
		if !strings.Contains(deps.transport.last(), "42 dias") {
			t.Errorf("expected remaining days in %q", deps.transport.last())
		}
	})
}

func TestOrchestrator_Tutorials(t *testing.T) {
	ctx := context.Background()
	const phone = "5511999990000"

	t.Run("valid selection moves to the install-option step", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)
		deps.orch.HandleMessage(ctx, phone, "5")

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "1") // Samsung

		// --- Assert ---
		if got := deps.step(t, phone); got != model.StepChoosingSetup {
			t.Errorf("step = %s, want choosing_install_option", got)
		}
		if !strings.Contains(deps.transport.last(), "SAMSUNG") {
			t.Error("expected the Samsung install options")
		}

		// Free-install choice delivers the tutorial and returns to menu.
		deps.orch.HandleMessage(ctx, phone, "1")
		if got := deps.step(t, phone); got != model.StepMenu {
			t.Errorf("step = %s, want menu after tutorial", got)
		}
		if !strings.Contains(deps.transport.last(), "TUTORIAL GRATUITO") {
			t.Error("expected the free tutorial message")
		}
	})

	t.Run("invalid tutorial number resets to menu", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)
		deps.orch.HandleMessage(ctx, phone, "tutoriais")

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "99")

		// --- Assert ---
		if got := deps.step(t, phone); got != model.StepMenu {
			t.Errorf("step = %s, want menu (no stuck states)", got)
		}
	})
}

func TestOrchestrator_CredentialsAndStatus(t *testing.T) {
	ctx := context.Background()
	const phone = "5511999990000"

	t.Run("credentials command replays stored sets", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)
		deps.creds.stored = []*model.StoredCredentials{{
			Phone: phone, Class: model.AccountOfficial,
			Creds: model.Credentials{Username: "u9", Password: "p9", ExpiresAt: time.Now().Add(240 * time.Hour)},
		}}

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "3")

		// --- Assert ---
		if !strings.Contains(deps.transport.last(), "u9") {
			t.Error("expected stored username in the reply")
		}
	})

	t.Run("status without active accounts points at the plans", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "status")

		// --- Assert ---
		if !strings.Contains(deps.transport.last(), "não possui assinaturas") {
			t.Error("expected the no-subscription message")
		}
	})

	t.Run("unknown command re-prompts with the menu hint", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "xyzzy")

		// --- Assert ---
		if !strings.Contains(deps.transport.last(), "Comando não reconhecido") {
			t.Error("expected the unknown-command message")
		}
	})

	t.Run("first contact greets once before answering", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrchestratorDeps(t)

		// --- Act ---
		deps.orch.HandleMessage(ctx, phone, "oi")
		deps.orch.HandleMessage(ctx, phone, "oi")

		// --- Assert ---
		deps.transport.mu.Lock()
		sent := append([]string(nil), deps.transport.sent...)
		deps.transport.mu.Unlock()
		if len(sent) != 3 {
			t.Fatalf("sent %d messages, want 3 (welcome + two replies)", len(sent))
		}
		if !strings.Contains(sent[0], "BEM-VINDO") {
			t.Errorf("first message should be the greeting, got %q", sent[0])
		}
		if !strings.Contains(sent[2], "Comando não reconhecido") {
			t.Errorf("second turn should answer without re-greeting, got %q", sent[2])
		}
	})
}

func TestMessageKeysMatchCatalog(t *testing.T) {
	// --- Arrange ---
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "pt-BR")
	if err != nil {
		t.Fatalf("catalog failed to load: %v", err)
	}

	// --- Act / Assert ---
	seen := map[string]bool{}
	for _, key := range MessageKeys() {
		if seen[key] {
			t.Errorf("key %q listed twice", key)
		}
		seen[key] = true
		if !tr.Has(key) {
			t.Errorf("catalog is missing %q; startup validation would refuse to boot", key)
		}
	}
}
