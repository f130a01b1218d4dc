package engineobs

import (
	"context"
	"time"

	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/metrics"
	"llm-spot-trader/internal/trace"
	"llm-spot-trader/internal/types"
)

type observableEngine struct {
	engine  interfaces.Engine
	metrics *metrics.Registry
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine, m *metrics.Registry) interfaces.Engine {
	return &observableEngine{
		engine:  eng,
		metrics: m,
	}
}

func (oe *observableEngine) Cycle(ctx context.Context) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Cycle")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting scan cycle")

	result, err := oe.engine.Cycle(ctx)
	elapsed := time.Since(start)
	if err != nil {
		oe.metrics.ObserveCycle(elapsed, "error")
		logger.ErrorWithErrSkip(ctx, 1, "Scan cycle failed", err,
			"duration_ms", elapsed.Milliseconds(),
		)
		return result, err
	}

	oe.metrics.ObserveCycle(elapsed, "ok")
	logger.InfoSkip(ctx, 1, "Scan cycle completed",
		"portfolio_value", result.PortfolioValue,
		"cash", result.Cash,
		"exits_evaluated", len(result.Exits),
		"candidates", result.Candidates,
		"entry", result.Entry != nil,
		"orders", ordersPlaced(result),
		"skip_reason", result.SkipReason,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

func (oe *observableEngine) Status() types.Status {
	return oe.engine.Status()
}

func ordersPlaced(r *types.CycleResult) int {
	n := 0
	for _, x := range r.Exits {
		if x.Order != nil {
			n++
		}
	}
	if r.Entry != nil {
		n++
	}
	return n
}
