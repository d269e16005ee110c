package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/blablabl4/StreamAssist/internal/domain"
	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/adapter"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memLedgerRepo is an in-memory ledger honoring the monotonicity and CAS
// contract of the real Postgres repo.
type memLedgerRepo struct {
	mu    sync.Mutex
	store map[string]*model.LedgerRecord
}

var _ repository.LedgerRepository = (*memLedgerRepo)(nil)

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{store: make(map[string]*model.LedgerRecord)}
}

func (m *memLedgerRepo) Get(ctx context.Context, txID string) (*model.LedgerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.store[txID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memLedgerRepo) Upsert(ctx context.Context, txID string, patch model.LedgerPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.store[txID]
	if !ok {
		rec = &model.LedgerRecord{TransactionID: txID, Status: model.LedgerPending, SavedAt: time.Now()}
		m.store[txID] = rec
	}
	if patch.Status != "" {
		if patch.Status.Rank() < rec.Status.Rank() {
			return domain.ErrStaleWrite
		}
		rec.Status = patch.Status
	}
	if patch.Owner != nil {
		rec.Owner = *patch.Owner
	}
	if patch.Plan != nil {
		rec.Plan = *patch.Plan
	}
	if patch.PackageID != nil {
		rec.PackageID = *patch.PackageID
	}
	return nil
}

func (m *memLedgerRepo) TryMarkProcessed(ctx context.Context, txID, ownerPhone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.store[txID]
	if !ok {
		return false, nil
	}
	if rec.Status != model.LedgerPaid || rec.Owner != ownerPhone {
		return false, nil
	}
	rec.Status = model.LedgerProcessed
	return true, nil
}

func (m *memLedgerRepo) ListPendingOlderThan(ctx context.Context, olderThan time.Time, limit int) ([]*model.LedgerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.LedgerRecord
	for _, rec := range m.store {
		if rec.Status == model.LedgerPending && rec.SavedAt.Before(olderThan) {
			cp := *rec
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memTrialRepo struct {
	mu    sync.Mutex
	store map[string]time.Time
}

var _ repository.TrialRepository = (*memTrialRepo)(nil)

func newMemTrialRepo() *memTrialRepo {
	return &memTrialRepo{store: make(map[string]time.Time)}
}

func (m *memTrialRepo) Find(ctx context.Context, phone string) (*model.TrialGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.store[phone]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &model.TrialGrant{Phone: phone, LastTrialAt: at}, nil
}

func (m *memTrialRepo) MarkIssued(ctx context.Context, phone string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[phone] = at
	return nil
}

type memCredentialRepo struct {
	mu    sync.Mutex
	store map[string][]*model.StoredCredentials
}

var _ repository.CredentialRepository = (*memCredentialRepo)(nil)

func newMemCredentialRepo() *memCredentialRepo {
	return &memCredentialRepo{store: make(map[string][]*model.StoredCredentials)}
}

func (m *memCredentialRepo) Save(ctx context.Context, phone string, creds model.Credentials, class model.AccountClass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[phone] = append([]*model.StoredCredentials{{
		Phone: phone, Class: class, Creds: creds, SavedAt: time.Now(),
	}}, m.store[phone]...)
	return nil
}

func (m *memCredentialRepo) FindByPhone(ctx context.Context, phone string) ([]*model.StoredCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.StoredCredentials{}, m.store[phone]...), nil
}

type memAuditRepo struct {
	mu     sync.Mutex
	events []repository.AuditEvent
}

var _ repository.AuditRepository = (*memAuditRepo)(nil)

func newMemAuditRepo() *memAuditRepo { return &memAuditRepo{} }

func (m *memAuditRepo) Append(ctx context.Context, ev repository.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memAuditRepo) count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.Event == event {
			n++
		}
	}
	return n
}

// fakeGateway scripts QueryStatus responses per transaction and counts
// charge creations.
type fakeGateway struct {
	mu        sync.Mutex
	charges   int
	createErr error
	queue     map[string][]model.PaymentQueryResult
}

var _ adapter.PaymentGateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{queue: make(map[string][]model.PaymentQueryResult)}
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateCharge(ctx context.Context, phone string, plan model.Plan) (*model.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.charges++
	return &model.Charge{
		TransactionID: fmt.Sprintf("TX-%d", g.charges),
		OrderID:       fmt.Sprintf("ORDER-%d", g.charges),
		Plan:          plan.ID,
		AmountCents:   plan.PriceCents,
		DueAt:         time.Now().Add(24 * time.Hour),
		QRCodeLink:    "https://example.com/qr.png",
		QRCodeText:    "00020126pix-payload",
	}, nil
}

// enqueue schedules the next QueryStatus responses for txID. The last
// response repeats once the scripted ones run out.
func (g *fakeGateway) enqueue(txID string, results ...model.PaymentQueryResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queue[txID] = append(g.queue[txID], results...)
}

func (g *fakeGateway) QueryStatus(ctx context.Context, txID string) model.PaymentQueryResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	q := g.queue[txID]
	if len(q) == 0 {
		return model.PaymentQueryResult{SettledStatus: "pending"}
	}
	res := q[0]
	if len(q) > 1 {
		g.queue[txID] = q[1:]
	}
	return res
}

// fakeProvisioner counts calls and optionally fails.
type fakeProvisioner struct {
	mu    sync.Mutex
	calls int
	err   error
}

var _ adapter.ProvisioningGateway = (*fakeProvisioner)(nil)

func (p *fakeProvisioner) Provision(ctx context.Context, req adapter.ProvisionRequest) (*model.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.calls++
	return &model.Credentials{
		Username:    fmt.Sprintf("user%d", p.calls),
		Password:    "secret",
		ExpiresAt:   time.Now().Add(30 * 24 * time.Hour),
		AccessLinks: []string{"http://a.example", "http://b.example"},
	}, nil
}

func (p *fakeProvisioner) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var errGatewayDown = errors.New("gateway unreachable")
