package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid exec context")

	// Ledger errors
	ErrStaleWrite       = errors.New("ledger write would downgrade status")
	ErrAlreadyProcessed = errors.New("transaction already processed")
	ErrNotPaid          = errors.New("transaction not confirmed as paid")
	ErrWrongOwner       = errors.New("transaction belongs to another user")

	// Trial gate errors
	ErrCooldownActive = errors.New("trial cooldown still active")

	// Conversation errors
	ErrNoPendingTransaction = errors.New("no pending transaction for user")

	// Lock errors
	ErrLockNotAcquired = errors.New("could not acquire user lock")
)
