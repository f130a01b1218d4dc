package decision

import (
	"strconv"
	"strings"

	"llm-spot-trader/internal/types"
)

var entryKeywords = map[types.EntryAction]string{
	types.EntryBuy:   "AL",
	types.EntryHold:  "BEKLE",
	types.EntryNoBuy: "ALMA",
}

var exitKeywords = map[types.ExitAction]string{
	types.ExitSell:        "SAT",
	types.ExitPartialSell: "KISMİ_SAT",
	types.ExitRaiseStop:   "SL_GÜNCELLE",
	types.ExitHold:        "BEKLE",
}

// FormatEntry renders d in the labelled response format. ParseEntry of the
// result returns d again; absent prices and empty texts are omitted.
func FormatEntry(d types.EntryDecision) string {
	var b strings.Builder
	kw, ok := entryKeywords[d.Action]
	if !ok {
		kw = entryKeywords[types.EntryHold]
	}
	line(&b, "KARAR", kw)
	line(&b, "GÜVEN", strconv.Itoa(clamp(d.Confidence, 0, 10)))
	price(&b, "STOP_LOSS", d.StopLoss)
	price(&b, "TAKE_PROFIT", d.TakeProfit)
	if d.RiskReward != "" {
		line(&b, "RISK_REWARD", d.RiskReward)
	}
	text(&b, "GİRİŞ_STRATEJİSİ", d.EntryStrategy, maxStrategy)
	text(&b, "GEREKÇE", d.Rationale, maxRationale)
	text(&b, "ALTERNATİF_SENARYO", d.Alternative, maxAlternative)
	return strings.TrimRight(b.String(), "\n")
}

// FormatExit renders d in the labelled response format. ParseExit of the
// result returns d again.
func FormatExit(d types.ExitDecision) string {
	var b strings.Builder
	kw, ok := exitKeywords[d.Action]
	if !ok {
		kw = exitKeywords[types.ExitHold]
	}
	line(&b, "KARAR", kw)
	line(&b, "GÜVEN", strconv.Itoa(clamp(d.Confidence, 0, 10)))
	price(&b, "YENİ_SL", d.NewStopLoss)
	price(&b, "YENİ_TP", d.NewTakeProfit)
	if d.HasPartialPct && d.PartialPct >= 0 {
		line(&b, "KISMİ_ORAN", "%"+strconv.Itoa(d.PartialPct))
	}
	text(&b, "GEREKÇE", d.Rationale, maxRationale)
	text(&b, "RİSK_ANALİZİ", d.RiskAnalysis, maxRiskNote)
	text(&b, "ALTERNATİF_PLAN", d.AlternativePlan, maxAlternative)
	return strings.TrimRight(b.String(), "\n")
}

func line(b *strings.Builder, label, value string) {
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

func price(b *strings.Builder, label string, v types.Opt) {
	if f, ok := v.Get(); ok && f >= 0 {
		line(b, label, strconv.FormatFloat(f, 'f', -1, 64))
	}
}

func text(b *strings.Builder, label, v string, limit int) {
	v = truncate(strings.TrimSpace(v), limit)
	if v != "" {
		line(b, label, v)
	}
}
