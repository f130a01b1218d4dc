package types

type EntryAction string

const (
	EntryBuy   EntryAction = "BUY"
	EntryHold  EntryAction = "HOLD"
	EntryNoBuy EntryAction = "NO_BUY"
)

type ExitAction string

const (
	ExitSell        ExitAction = "SELL"
	ExitHold        ExitAction = "HOLD"
	ExitPartialSell ExitAction = "PARTIAL_SELL"
	ExitRaiseStop   ExitAction = "RAISE_STOP"
)

// EntryDecision is the parsed advisory answer for a candidate symbol.
type EntryDecision struct {
	Action        EntryAction `json:"action"`
	Confidence    int         `json:"confidence"`
	StopLoss      Opt         `json:"stop_loss"`
	TakeProfit    Opt         `json:"take_profit"`
	RiskReward    string      `json:"risk_reward,omitempty"`
	EntryStrategy string      `json:"entry_strategy,omitempty"`
	Rationale     string      `json:"rationale,omitempty"`
	Alternative   string      `json:"alternative,omitempty"`
}

// ExitDecision is the parsed advisory answer for an open position.
type ExitDecision struct {
	Action          ExitAction `json:"action"`
	Confidence      int        `json:"confidence"`
	NewStopLoss     Opt        `json:"new_stop_loss"`
	NewTakeProfit   Opt        `json:"new_take_profit"`
	PartialPct      int        `json:"partial_pct"`
	HasPartialPct   bool       `json:"has_partial_pct"`
	Rationale       string     `json:"rationale,omitempty"`
	RiskAnalysis    string     `json:"risk_analysis,omitempty"`
	AlternativePlan string     `json:"alternative_plan,omitempty"`
}

// PartialFraction returns pct/100 when the partial percentage is actionable.
func (d ExitDecision) PartialFraction() (float64, bool) {
	if !d.HasPartialPct || d.PartialPct <= 0 || d.PartialPct >= 100 {
		return 0, false
	}
	return float64(d.PartialPct) / 100, true
}
