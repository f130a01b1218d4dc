package engine

import (
	"context"

	"llm-spot-trader/internal/engine/engineobs"
	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/store"
)

// New builds the engine, restores stored positions and wraps it with
// observability. The returned runner drives the wrapped engine.
func New(ctx context.Context, cfg *store.Config, deps Deps) (interfaces.Engine, *Runner, error) {
	e := newEngine(cfg, deps)
	if err := e.Restore(ctx); err != nil {
		return nil, nil, err
	}
	eng := engineobs.Wrap(e, deps.Metrics)
	return eng, NewRunner(cfg, eng, deps), nil
}
