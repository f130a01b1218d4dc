package engine

import (
	"github.com/shopspring/decimal"

	"llm-spot-trader/internal/store"
)

// riskManager gates entries and sizes them from free cash.
type riskManager struct {
	riskPct      float64
	maxPositions int
	minCash      float64
	minOrder     float64
	precision    func(symbol string) int
}

func newRiskManager(cfg *store.Config) *riskManager {
	return &riskManager{
		riskPct:      cfg.Trading.RiskPct,
		maxPositions: cfg.Trading.MaxPositions,
		minCash:      cfg.Trading.MinCashUSDT,
		minOrder:     cfg.Trading.MinOrderUSDT,
		precision:    cfg.QuantityPrecision,
	}
}

// canEnter reports whether a new position may be opened, and why not.
func (rm *riskManager) canEnter(open int, cash float64) (bool, string) {
	if open >= rm.maxPositions {
		return false, "max positions open"
	}
	if cash <= rm.minCash {
		return false, "insufficient cash"
	}
	return true, ""
}

// spend is the quote amount put at risk on one entry.
func (rm *riskManager) spend(cash float64) (float64, bool) {
	s := cash * rm.riskPct / 100
	return s, s >= rm.minOrder
}

func (rm *riskManager) quantity(symbol string, spend, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return roundQty(spend/price, rm.precision(symbol))
}

// roundQty rounds half away from zero to places decimals.
func roundQty(q float64, places int) float64 {
	v, _ := decimal.NewFromFloat(q).Round(int32(places)).Float64()
	return v
}
