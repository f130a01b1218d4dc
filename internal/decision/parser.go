// Package decision turns the advisory model's labelled free text into typed
// entry and exit decisions. Parsing never fails: anything it cannot
// recognise is left at the decision's default.
package decision

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"llm-spot-trader/internal/types"
)

// dottedI covers the capital İ and its ASCII and dotless spellings, which
// Go's case folding does not relate to each other.
const dottedI = `[İIiı]`

// Field caps, in runes.
const (
	maxStrategy    = 150
	maxRationale   = 300
	maxAlternative = 200
	maxRiskNote    = 200
)

type token[A any] struct {
	action  A
	pattern *regexp.Regexp
}

// decisionToken matches KARAR: followed by tok as a whole word. Brackets,
// quotes and bold markers between the colon and the token are skipped.
func decisionToken[A any](action A, tok string) token[A] {
	return token[A]{
		action:  action,
		pattern: regexp.MustCompile(`(?i)KARAR\s*:[\s\[*"']*` + tok + `(?:[^\p{L}\p{N}_]|$)`),
	}
}

// Order is the tie-break: the first listed token that matches wins.
var entryTokens = []token[types.EntryAction]{
	decisionToken(types.EntryBuy, `AL`),
	decisionToken(types.EntryHold, `BEKLE`),
	decisionToken(types.EntryNoBuy, `ALMA`),
}

var exitTokens = []token[types.ExitAction]{
	decisionToken(types.ExitSell, `SAT`),
	decisionToken(types.ExitPartialSell, `K`+dottedI+`SM`+dottedI+`[_ ]?SAT`),
	decisionToken(types.ExitRaiseStop, `SL[_ ]?G[ÜU]NCELLE`),
	decisionToken(types.ExitHold, `BEKLE`),
}

func numberAfter(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + label + `\s*:\s*\$?\s*([\d.,]+)`)
}

func textAfter(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + label + `[ \t]*:[ \t]*`)
}

var (
	confidenceRe = regexp.MustCompile(`(?i)G[ÜU]VEN\s*:\s*(\d+)`)

	stopLossRe   = numberAfter(`STOP[_ ]?LOSS`)
	takeProfitRe = numberAfter(`TAKE[_ ]?PROFIT`)
	newStopRe    = numberAfter(`YEN` + dottedI + `[_ ]?SL`)
	newTakeRe    = numberAfter(`YEN` + dottedI + `[_ ]?TP`)

	riskRewardRe = regexp.MustCompile(`(?i)R` + dottedI + `SK[_ ]?REWARD\s*:\s*1\s*:\s*([\d.]+)`)
	partialPctRe = regexp.MustCompile(`(?i)K` + dottedI + `SM` + dottedI + `[_ ]?ORAN\s*:\s*%?\s*(\d+)`)

	strategyRe     = textAfter(`G` + dottedI + `R` + dottedI + `[ŞS][_ ]?STRATEJ` + dottedI + `S` + dottedI)
	rationaleRe    = textAfter(`GEREK[ÇC]E`)
	scenarioRe     = textAfter(`ALTERNAT` + dottedI + `F[_ ]?SENARYO`)
	riskAnalysisRe = textAfter(`R` + dottedI + `SK[_ ]?ANAL` + dottedI + `Z` + dottedI)
	altPlanRe      = textAfter(`ALTERNAT` + dottedI + `F[_ ]?PLAN`)

	// A free-text field ends at the next line that starts with an all-caps
	// label such as "GEREKÇE:" or "RISK_REWARD:".
	labelLineRe = regexp.MustCompile(`\n[A-ZĞÜŞÖÇİ]+(?:[_ ]?[A-ZĞÜŞÖÇİ]+)?\s*:`)
)

// ParseEntry parses an entry advisory. Empty or unrecognised text yields a
// hold with confidence 0.
func ParseEntry(text string) types.EntryDecision {
	out := types.EntryDecision{Action: types.EntryHold}
	text = normalize(text)
	if text == "" {
		return out
	}

	for _, t := range entryTokens {
		if t.pattern.MatchString(text) {
			out.Action = t.action
			break
		}
	}
	out.Confidence = parseConfidence(text)
	out.StopLoss = parsePrice(stopLossRe, text)
	out.TakeProfit = parsePrice(takeProfitRe, text)
	if m := riskRewardRe.FindStringSubmatch(text); m != nil {
		out.RiskReward = "1:" + m[1]
	}
	out.EntryStrategy = freeText(strategyRe, text, maxStrategy)
	out.Rationale = freeText(rationaleRe, text, maxRationale)
	out.Alternative = freeText(scenarioRe, text, maxAlternative)
	return out
}

// ParseExit parses an exit advisory. Empty or unrecognised text yields a
// hold with confidence 0.
func ParseExit(text string) types.ExitDecision {
	out := types.ExitDecision{Action: types.ExitHold}
	text = normalize(text)
	if text == "" {
		return out
	}

	for _, t := range exitTokens {
		if t.pattern.MatchString(text) {
			out.Action = t.action
			break
		}
	}
	out.Confidence = parseConfidence(text)
	out.NewStopLoss = parsePrice(newStopRe, text)
	out.NewTakeProfit = parsePrice(newTakeRe, text)
	if m := partialPctRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			out.PartialPct = n
			out.HasPartialPct = true
		}
	}
	out.Rationale = freeText(rationaleRe, text, maxRationale)
	out.RiskAnalysis = freeText(riskAnalysisRe, text, maxRiskNote)
	out.AlternativePlan = freeText(altPlanRe, text, maxAlternative)
	return out
}

func normalize(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
}

func parseConfidence(text string) int {
	m := confidenceRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 10
		}
		return 0
	}
	return clamp(n, 0, 10)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func parsePrice(re *regexp.Regexp, text string) types.Opt {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return types.None()
	}
	raw := strings.ReplaceAll(m[1], ",", "")
	raw = strings.TrimRight(raw, ".")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return types.None()
	}
	return types.Some(v)
}

func freeText(re *regexp.Regexp, text string, limit int) string {
	loc := re.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if end := labelLineRe.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return truncate(strings.TrimSpace(rest), limit)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit]))
}
