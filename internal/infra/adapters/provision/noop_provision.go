package provision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blablabl4/StreamAssist/internal/domain/model"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/adapter"
)

var _ adapter.ProvisioningGateway = (*NoopProvisioner)(nil)

// NoopProvisioner hands out fake credentials for dev mode.
type NoopProvisioner struct {
	mu  sync.Mutex
	seq int64
}

func NewNoopProvisioner() *NoopProvisioner { return &NoopProvisioner{} }

func (p *NoopProvisioner) Provision(ctx context.Context, req adapter.ProvisionRequest) (*model.Credentials, error) {
	p.mu.Lock()
	p.seq++
	n := p.seq
	p.mu.Unlock()

	days := 3
	if req.Class == model.AccountOfficial {
		days = 30
	}
	return &model.Credentials{
		Username:    fmt.Sprintf("user%04d", n),
		Password:    fmt.Sprintf("pw%08d", n),
		ExpiresAt:   time.Now().AddDate(0, 0, days),
		AccessLinks: []string{"http://play.example.test/get.php"},
	}, nil
}
