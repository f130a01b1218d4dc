package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"llm-spot-trader/internal/types"
)

func TestEntryRoundTrip(t *testing.T) {
	decisions := []types.EntryDecision{
		ParseEntry(fullEntry),
		{Action: types.EntryNoBuy, Confidence: 3, Rationale: "Trend zayıf."},
		{Action: types.EntryHold},
		{Action: types.EntryBuy, Confidence: 10, StopLoss: types.Some(0.0815), TakeProfit: types.Some(0.09)},
	}
	for _, d := range decisions {
		text := FormatEntry(d)
		assert.Equal(t, d, ParseEntry(text), text)
		assert.Equal(t, text, FormatEntry(ParseEntry(text)))
	}
}

func TestExitRoundTrip(t *testing.T) {
	decisions := []types.ExitDecision{
		ParseExit("KARAR: KISMİ_SAT\nGÜVEN: 8\nKISMİ_ORAN: %50"),
		{Action: types.ExitRaiseStop, Confidence: 7, NewStopLoss: types.Some(2950.25), NewTakeProfit: types.Some(3300)},
		{Action: types.ExitSell, Confidence: 9, Rationale: "Hedefe ulaşıldı.", RiskAnalysis: "Düşük.", AlternativePlan: "Yok."},
		{Action: types.ExitHold},
	}
	for _, d := range decisions {
		text := FormatExit(d)
		assert.Equal(t, d, ParseExit(text), text)
	}
}

func TestFormatEntryLayout(t *testing.T) {
	text := FormatEntry(types.EntryDecision{
		Action:     types.EntryBuy,
		Confidence: 8,
		StopLoss:   types.Some(95000),
		RiskReward: "1:3",
	})
	assert.Equal(t, "KARAR: AL\nGÜVEN: 8\nSTOP_LOSS: 95000\nRISK_REWARD: 1:3", text)
}
