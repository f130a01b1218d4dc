package interfaces

import (
	"context"

	"llm-spot-trader/internal/types"
)

type Engine interface {
	Cycle(ctx context.Context) (*types.CycleResult, error)
	Status() types.Status
}
