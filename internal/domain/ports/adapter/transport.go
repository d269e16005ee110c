package adapter

import "context"

// MessageTransport delivers outbound text to a user. The chat transport's
// own authentication and session handling live behind this boundary.
type MessageTransport interface {
	Send(ctx context.Context, phone, text string) error
}
