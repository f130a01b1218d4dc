package analysis

import (
	"sort"

	"llm-spot-trader/internal/types"
)

// Score applies the additive entry rubric to a snapshot. The total is a
// relative ranking signal and is not clamped.
func Score(s types.Snapshot) int {
	score := 10 * s.SignalCount(types.SignalBuy)

	h := s.Frame(types.TF1h)
	if rsi, ok := h.RSI.Get(); ok {
		switch {
		case rsi > 40 && rsi < 60:
			score += 20
		case rsi > 30 && rsi < 70:
			score += 10
		case rsi < 30:
			score += 15
		}
	}
	if hist, ok := h.MACDHist.Get(); ok && hist > 0 {
		score += 10
	}
	if s.GoldenCross {
		score += 10
	}
	if adx, ok := s.ADX.Get(); ok && adx > 25 {
		score += 10
	}
	if s.Momentum.IsBullish() {
		score += 10
	}
	switch s.Volatility {
	case types.VolatilityHigh:
		score -= 5
	case types.VolatilityLow:
		score += 5
	}
	return score
}

// Rank scores snaps and orders them best first. Equal scores keep their
// input order.
func Rank(snaps []types.Snapshot) []types.ScoredCandidate {
	out := make([]types.ScoredCandidate, len(snaps))
	for i, s := range snaps {
		out[i] = types.ScoredCandidate{Symbol: s.Symbol, Score: Score(s), Snapshot: s}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
