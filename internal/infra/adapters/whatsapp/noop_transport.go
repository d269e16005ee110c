package whatsapp

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/blablabl4/StreamAssist/internal/domain/ports/adapter"
	"github.com/blablabl4/StreamAssist/internal/infra/logging"
)

var _ adapter.MessageTransport = (*NoopTransport)(nil)

// NoopTransport logs outbound messages instead of delivering them.
// Used in dev mode and in tests.
type NoopTransport struct {
	mu   sync.Mutex
	sent []string
	log  *zerolog.Logger
}

func NewNoopTransport(logger *zerolog.Logger) *NoopTransport {
	l := logger.With().Str("component", "NoopTransport").Logger()
	return &NoopTransport{log: &l}
}

func (t *NoopTransport) Send(_ context.Context, phone, text string) error {
	t.mu.Lock()
	t.sent = append(t.sent, text)
	t.mu.Unlock()
	t.log.Info().Str("phone", logging.MaskPhone(phone)).Int("len", len(text)).Msg("outbound message (noop)")
	return nil
}

// Sent returns a copy of every message passed to Send.
func (t *NoopTransport) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.sent))
	copy(out, t.sent)
	return out
}
