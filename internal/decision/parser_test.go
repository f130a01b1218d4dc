package decision

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"llm-spot-trader/internal/types"
)

const fullEntry = `KARAR: AL
GÜVEN: 8
STOP_LOSS: $95,250.50
TAKE_PROFIT: 101,000
RISK_REWARD: 1:2.5
GİRİŞ_STRATEJİSİ: Pullback bekle, 0.618 seviyesinde gir
GEREKÇE: RSI 55 ile nötr bölgede.
MACD histogramı pozitif ve 4 zaman diliminde AL sinyali var.
ALTERNATİF_SENARYO: 94,000 altında kapanışta pozisyonu kapat.`

func TestParseEntryFull(t *testing.T) {
	d := ParseEntry(fullEntry)

	assert.Equal(t, types.EntryBuy, d.Action)
	assert.Equal(t, 8, d.Confidence)
	assert.Equal(t, types.Some(95250.50), d.StopLoss)
	assert.Equal(t, types.Some(101000), d.TakeProfit)
	assert.Equal(t, "1:2.5", d.RiskReward)
	assert.Equal(t, "Pullback bekle, 0.618 seviyesinde gir", d.EntryStrategy)
	assert.Equal(t, "RSI 55 ile nötr bölgede.\nMACD histogramı pozitif ve 4 zaman diliminde AL sinyali var.", d.Rationale)
	assert.Equal(t, "94,000 altında kapanışta pozisyonu kapat.", d.Alternative)
}

func TestParseEntryDecisionTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want types.EntryAction
	}{
		{"buy", "KARAR: AL", types.EntryBuy},
		{"lowercase", "karar: al", types.EntryBuy},
		{"hold", "KARAR: BEKLE", types.EntryHold},
		{"no-buy is not read as buy", "KARAR: ALMA", types.EntryNoBuy},
		{"bracketed", "KARAR: [AL]", types.EntryBuy},
		{"bold", "KARAR: **ALMA**", types.EntryNoBuy},
		{"earliest listed token wins", "KARAR: BEKLE\nKARAR: AL", types.EntryBuy},
		{"no decision line", "Piyasa belirsiz, izlemeye devam.", types.EntryHold},
		{"empty", "", types.EntryHold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEntry(tt.text).Action)
		})
	}
}

func TestParseEntryWithoutDecisionHasNoOrderFields(t *testing.T) {
	d := ParseEntry("I think the market looks fine today.")
	assert.Equal(t, types.EntryHold, d.Action)
	assert.Equal(t, 0, d.Confidence)
	assert.False(t, d.StopLoss.Valid)
	assert.False(t, d.TakeProfit.Valid)
}

func TestParseConfidenceClamp(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"GÜVEN: 7", 7},
		{"GÜVEN: 57", 10},
		{"GÜVEN: -3", 0},
		{"GÜVEN: 0", 0},
		{"güven: 9/10", 9},
		{"GUVEN: 6", 6},
		{"GÜVEN: 99999999999999999999999", 10},
		{"GÜVEN: yüksek", 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			c := ParseEntry(tt.text).Confidence
			assert.Equal(t, tt.want, c)
			assert.GreaterOrEqual(t, c, 0)
			assert.LessOrEqual(t, c, 10)
		})
	}
}

func TestParsePriceAbsentWhenUnparsable(t *testing.T) {
	d := ParseEntry("KARAR: AL\nSTOP_LOSS: [fiyat $]\nTAKE_PROFIT: 1.2.3")
	assert.False(t, d.StopLoss.Valid)
	assert.False(t, d.TakeProfit.Valid)
}

func TestParseFreeTextCaps(t *testing.T) {
	long := strings.Repeat("ş", 400)
	d := ParseEntry("GEREKÇE: " + long + "\nGİRİŞ_STRATEJİSİ: " + long + "\nALTERNATİF_SENARYO: " + long)
	assert.Equal(t, 300, len([]rune(d.Rationale)))
	assert.Equal(t, 150, len([]rune(d.EntryStrategy)))
	assert.Equal(t, 200, len([]rune(d.Alternative)))
}

func TestParseExitPartial(t *testing.T) {
	d := ParseExit("KARAR: KISMİ_SAT\nGÜVEN: 8\nKISMİ_ORAN: %50")

	assert.Equal(t, types.ExitPartialSell, d.Action)
	assert.Equal(t, 8, d.Confidence)
	assert.True(t, d.HasPartialPct)
	assert.Equal(t, 50, d.PartialPct)

	frac, ok := d.PartialFraction()
	assert.True(t, ok)
	assert.Equal(t, 0.5, frac)
}

func TestParseExitDecisionTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want types.ExitAction
	}{
		{"sell", "KARAR: SAT", types.ExitSell},
		{"partial with space", "KARAR: KISMI SAT", types.ExitPartialSell},
		{"partial dotless", "karar: kısmi_sat", types.ExitPartialSell},
		{"raise stop", "KARAR: SL_GÜNCELLE", types.ExitRaiseStop},
		{"raise stop ascii", "KARAR: SL GUNCELLE", types.ExitRaiseStop},
		{"hold", "KARAR: BEKLE", types.ExitHold},
		{"unknown word", "KARAR: SATIŞ", types.ExitHold},
		{"empty", "", types.ExitHold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseExit(tt.text).Action)
		})
	}
}

func TestParseExitFull(t *testing.T) {
	d := ParseExit(`KARAR: SL_GÜNCELLE
GÜVEN: 6
YENİ_SL: 98,500
YENİ_TP: 105000
KISMİ_ORAN: [kısmi satış öneriyorsan]
GEREKÇE: Momentum korunuyor.
RİSK_ANALİZİ: Direnç yakın.
ALTERNATİF_PLAN: SL tetiklenirse çık.`)

	assert.Equal(t, types.ExitRaiseStop, d.Action)
	assert.Equal(t, 6, d.Confidence)
	assert.Equal(t, types.Some(98500), d.NewStopLoss)
	assert.Equal(t, types.Some(105000), d.NewTakeProfit)
	assert.False(t, d.HasPartialPct)
	assert.Equal(t, "Momentum korunuyor.", d.Rationale)
	assert.Equal(t, "Direnç yakın.", d.RiskAnalysis)
	assert.Equal(t, "SL tetiklenirse çık.", d.AlternativePlan)
}

func TestPartialFractionBounds(t *testing.T) {
	for _, pct := range []int{0, 100, 150} {
		_, ok := types.ExitDecision{HasPartialPct: true, PartialPct: pct}.PartialFraction()
		assert.False(t, ok, "pct %d", pct)
	}
}
