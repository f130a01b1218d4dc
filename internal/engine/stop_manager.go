package engine

import (
	"llm-spot-trader/internal/store"
	"llm-spot-trader/internal/types"
)

// stopManager applies the fixed percentage exits and entry defaults.
type stopManager struct {
	stopLossPct   float64 // negative, e.g. -2
	takeProfitPct float64 // positive, e.g. 3
}

func newStopManager(cfg *store.Config) *stopManager {
	return &stopManager{
		stopLossPct:   cfg.Trading.StopLossPct,
		takeProfitPct: cfg.Trading.TakeProfitPct,
	}
}

// trigger checks the stop-loss before the take-profit.
func (sm *stopManager) trigger(gainPct float64) (types.ExitReason, bool) {
	if gainPct <= sm.stopLossPct {
		return types.ReasonStopLoss, true
	}
	if gainPct >= sm.takeProfitPct {
		return types.ReasonTakeProfit, true
	}
	return "", false
}

// levels returns the advisory stop and target, or the percentage defaults.
func (sm *stopManager) levels(price float64, sl, tp types.Opt) (float64, float64) {
	return sl.Or(price * (1 + sm.stopLossPct/100)), tp.Or(price * (1 + sm.takeProfitPct/100))
}
