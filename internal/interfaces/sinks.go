package interfaces

import (
	"context"

	"llm-spot-trader/internal/types"
)

// Notifier is fire-and-forget: implementations swallow delivery failures.
type Notifier interface {
	Notify(ctx context.Context, title, body string, sev types.Severity)
}

// EventLog is an append-only audit trail.
type EventLog interface {
	Record(ctx context.Context, message, category string)
}

// PositionStore persists the ledger so it can be rehydrated at startup.
type PositionStore interface {
	Load(ctx context.Context) ([]types.Position, error)
	Save(ctx context.Context, positions []types.Position) error
}
