package types

import "time"

// Position is an open holding. EntryPrice never changes after open.
type Position struct {
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	OpenedAt   time.Time `json:"opened_at"`
}

// GainPct is the percentage move from entry to price.
func (p Position) GainPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

type ExitReason string

const (
	ReasonStopLoss   ExitReason = "stop-loss"
	ReasonTakeProfit ExitReason = "take-profit"
	ReasonAdvisory   ExitReason = "advisory"
	ReasonPartial    ExitReason = "partial"
	ReasonRaiseStop  ExitReason = "raise-stop"
)

// ExitOutcome records what the exit evaluation did to one position.
type ExitOutcome struct {
	Symbol   string       `json:"symbol"`
	Price    float64      `json:"price"`
	GainPct  float64      `json:"gain_pct"`
	Reason   ExitReason   `json:"reason,omitempty"`
	Decision ExitDecision `json:"decision"`
	SoldQty  float64      `json:"sold_qty,omitempty"`
	Closed   bool         `json:"closed"`
	Order    *OrderResp   `json:"order,omitempty"`
	Err      string       `json:"error,omitempty"`
}

// EntryOutcome records a completed entry.
type EntryOutcome struct {
	Symbol   string        `json:"symbol"`
	Score    int           `json:"score"`
	Decision EntryDecision `json:"decision"`
	Position Position      `json:"position"`
	Order    OrderResp     `json:"order"`
}

// CycleResult summarises one pass of the scan loop.
type CycleResult struct {
	StartedAt      time.Time     `json:"started_at"`
	Cash           float64       `json:"cash"`
	PortfolioValue float64       `json:"portfolio_value"`
	Exits          []ExitOutcome `json:"exits"`
	Candidates     int           `json:"candidates"`
	Entry          *EntryOutcome `json:"entry,omitempty"`
	SkipReason     string        `json:"skip_reason,omitempty"`
}

// Status is a read-only copy of engine state for presentation.
type Status struct {
	Running        bool              `json:"running"`
	Mode           string            `json:"mode"`
	StartBalance   Opt               `json:"start_balance"`
	Cash           float64           `json:"cash"`
	PortfolioValue float64           `json:"portfolio_value"`
	DailyPnL       float64           `json:"daily_pnl"`
	DailyPnLPct    float64           `json:"daily_pnl_pct"`
	LastTrade      string            `json:"last_trade,omitempty"`
	LastTradeAt    time.Time         `json:"last_trade_at"`
	BestPosition   string            `json:"best_position,omitempty"`
	BestGainPct    Opt               `json:"best_gain_pct"`
	Positions      []Position        `json:"positions"`
	Samples        []PortfolioSample `json:"samples"`
	Markers        []ChartMarker     `json:"markers"`
	Cycles         int64             `json:"cycles"`
	LastCycleAt    time.Time         `json:"last_cycle_at"`
	LastError      string            `json:"last_error,omitempty"`
}
