package interfaces

import (
	"context"

	"session-trader/internal/journal"
)

// ActionJournal records which intents were already submitted per session.
type ActionJournal interface {
	Reserve(ctx context.Context, rec journal.Record) error
	Complete(ctx context.Context, key, orderID string) error
	Fail(ctx context.Context, key string, cause error) error
}
