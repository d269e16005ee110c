package repository

import (
	"context"

	"github.com/blablabl4/StreamAssist/internal/domain/model"
)

// ConversationStateRepository is the port for the durable per-user dialog
// state. Implementations must propagate storage failures instead of
// silently dropping state: silent loss of PendingTxID re-enables double
// charging.
type ConversationStateRepository interface {
	// Get returns nil, domain.ErrNotFound when the user has no state yet.
	Get(ctx context.Context, phone string) (*model.ConversationState, error)
	// Set merges the patch into the stored state (creating it at StepMenu
	// when absent) and returns the merged result.
	Set(ctx context.Context, phone string, patch model.StatePatch) (*model.ConversationState, error)
	Clear(ctx context.Context, phone string) error
}
