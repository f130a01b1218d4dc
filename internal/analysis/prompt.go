package analysis

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"llm-spot-trader/internal/types"
)

const rule = "==========================================================="

// PromptContext is the portfolio state quoted in the entry prompt.
type PromptContext struct {
	Cash          float64
	OpenPositions int
	MaxPositions  int
	RiskPct       float64
}

// EntryPrompt asks whether to open a position in snap's symbol now. The
// reply format section must stay in sync with decision.ParseEntry.
func EntryPrompt(snap types.Snapshot, pc PromptContext) string {
	var b strings.Builder
	price := snap.Price.Or(0)
	h := snap.Frame(types.TF1h)

	b.WriteString("You are a crypto trader and technical analyst with 15 years of experience. ")
	b.WriteString("Combine all of the data below into ONE final decision.\n\n")

	section(&b, "MARKET")
	fmt.Fprintf(&b, "Symbol: %s\n", snap.Symbol)
	fmt.Fprintf(&b, "Price: %s\n", usd(price))
	fmt.Fprintf(&b, "24h change: %.2f%%\n", snap.Change24hPct)
	fmt.Fprintf(&b, "24h volume: %.0f (base) | Quote: $%.0f\n", snap.Volume24h, snap.QuoteVolume24h)
	fmt.Fprintf(&b, "Volatility: %s\n\n", upper(string(snap.Volatility)))

	section(&b, "MULTI-TIMEFRAME TECHNICALS")
	f15 := snap.Frame(types.TF15m)
	fmt.Fprintf(&b, "15m: Signal %s | RSI %s | MACD Hist %s | Stoch %s\n", f15.Signal, f15.RSI, f15.MACDHist, f15.Stoch)
	fmt.Fprintf(&b, "1h:  Signal %s | RSI %s%s | MACD Hist %s%s | Stoch %s | BB %s%s | ATR %s | ADX %s%s\n",
		h.Signal, h.RSI, rsiNote(snap), h.MACDHist, histNote(h.MACDHist),
		h.Stoch, snap.BBPosition, bbNote(snap.BBPosition), snap.ATR, snap.ADX, adxNote(snap.ADX))
	f4 := snap.Frame(types.TF4h)
	fmt.Fprintf(&b, "4h:  Signal %s | RSI %s | MACD Hist %s\n", f4.Signal, f4.RSI, f4.MACDHist)
	fmt.Fprintf(&b, "1d:  Signal %s\n\n", snap.Frame(types.TF1d).Signal)
	fmt.Fprintf(&b, "Moving averages: EMA9 %s | EMA21 %s | EMA50 %s | EMA200 %s | SMA50 %s | SMA200 %s\n",
		snap.EMA9, snap.EMA21, snap.EMA50, snap.EMA200, snap.SMA50, snap.SMA200)
	if snap.GoldenCross {
		b.WriteString("GOLDEN CROSS (EMA50 > EMA200): bullish\n")
	}
	if snap.DeathCross {
		b.WriteString("DEATH CROSS (EMA50 < EMA200): bearish\n")
	}
	b.WriteString("\n")

	section(&b, "VOLUME AND LIQUIDITY")
	fmt.Fprintf(&b, "- 24h volume (base): %.0f\n", snap.Volume24h)
	fmt.Fprintf(&b, "- 24h turnover (USDT): $%.0f\n", snap.QuoteVolume24h)
	fmt.Fprintf(&b, "- Price vs volume: 24h change %.2f%%\n", snap.Change24hPct)
	b.WriteString("TASK: Is volume healthy? Is the move volume-backed? Is there liquidity risk?\n\n")

	section(&b, "SUPPORT/RESISTANCE AND FIBONACCI")
	labels := []string{"0", "23.6", "38.2", "50", "61.8", "78.6", "100"}
	parts := make([]string, 0, len(labels))
	for i, lvl := range snap.Fib.Ladder() {
		parts = append(parts, fmt.Sprintf("%%%s: %s", labels[i], optUSD(lvl)))
	}
	fmt.Fprintf(&b, "Fibonacci (24h high/low): %s\n", strings.Join(parts, " | "))
	fmt.Fprintf(&b, "Pivot: %s\n\n", optUSD(snap.Pivot))
	fmt.Fprintf(&b, "Support: S1 %s (%.2f%% below) | S2 %s\n", optUSD(snap.Support1), snap.DistanceToSupport, optUSD(snap.Support2))
	fmt.Fprintf(&b, "Resistance: R1 %s (%.2f%% above) | R2 %s\n", optUSD(snap.Resistance1), snap.DistanceToResistance, optUSD(snap.Resistance2))
	b.WriteString("TASK: Which Fibonacci level is price closest to? Where are the strong levels? Suggest entry and exit points.\n\n")

	section(&b, "RISK MANAGEMENT")
	fmt.Fprintf(&b, "- Free balance (USDT): %s\n", usd(pc.Cash))
	fmt.Fprintf(&b, "- Open positions: %d / %d\n", pc.OpenPositions, pc.MaxPositions)
	fmt.Fprintf(&b, "- Risk per position: %g%% -> about %s USDT\n", pc.RiskPct, usd(pc.Cash*pc.RiskPct/100))
	fmt.Fprintf(&b, "- Volatility: %s\n", upper(string(snap.Volatility)))
	b.WriteString("TASK: Would this position exceed portfolio risk? Risk/reward must be at least 1:2. Never risk 10%+ of capital on one position.\n\n")

	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "TREND & MOMENTUM: %s | %s\n", upper(string(snap.Trend)), upper(string(snap.Momentum)))
	b.WriteString(rule + "\n\n")

	b.WriteString("Combine technicals, volume, levels and risk. Should this asset be bought NOW?\n\n")
	b.WriteString(`RESPONSE FORMAT (use exactly these labels):
KARAR: [AL / BEKLE / ALMA]
GÜVEN: [1-10]
STOP_LOSS: [price $]
TAKE_PROFIT: [price $]
RISK_REWARD: [e.g. 1:3]
GİRİŞ_STRATEJİSİ: [enter now / wait for pullback / enter at a Fibonacci level]
GEREKÇE: [3-5 sentences. Which indicators support the decision? What are the risks?]
ALTERNATİF_SENARYO: [plan B if price does not move as expected]

IMPORTANT: When in doubt answer BEKLE. Only recommend AL on clear opportunities. Keep global macro risk in mind.
`)
	return b.String()
}

// ExitPrompt asks what to do with an open position. The reply format
// section must stay in sync with decision.ParseExit.
func ExitPrompt(pos types.Position, snap types.Snapshot, now time.Time) string {
	var b strings.Builder
	price := snap.Price.Or(0)
	h := snap.Frame(types.TF1h)

	gainPct := pos.GainPct(price)
	gainUSD := pos.Quantity * (price - pos.EntryPrice)

	b.WriteString("You are a crypto trader and risk manager with 15 years of experience. ")
	b.WriteString("Recommend an EXIT strategy for the open position below.\n\n")

	section(&b, "POSITION")
	fmt.Fprintf(&b, "Symbol: %s\n", pos.Symbol)
	fmt.Fprintf(&b, "Entry: %s | Current: %s\n", usd(pos.EntryPrice), usd(price))
	fmt.Fprintf(&b, "P&L: %+.2f%% (%s)\n", gainPct, signedUSD(gainUSD))
	fmt.Fprintf(&b, "Quantity: %g | Opened: %s (%s ago)\n",
		pos.Quantity, pos.OpenedAt.UTC().Format("2006-01-02 15:04"), held(now.Sub(pos.OpenedAt)))
	fmt.Fprintf(&b, "Target TP: %s (%+.1f%% away) | Target SL: %s (%+.1f%% away)\n\n",
		usd(pos.TakeProfit), distance(pos.TakeProfit, price), usd(pos.StopLoss), distance(pos.StopLoss, price))

	section(&b, "CURRENT MARKET AND TECHNICALS")
	fmt.Fprintf(&b, "Timeframes: 15m %s | 1h %s | 4h %s | 1d %s\n",
		snap.Frame(types.TF15m).Signal, h.Signal, snap.Frame(types.TF4h).Signal, snap.Frame(types.TF1d).Signal)
	fmt.Fprintf(&b, "RSI 1h: %s%s | MACD Hist 1h: %s%s | Stoch: %s | ADX: %s | BB: %s\n",
		h.RSI, rsiNote(snap), h.MACDHist, histNote(h.MACDHist), h.Stoch, snap.ADX, snap.BBPosition)
	fmt.Fprintf(&b, "TREND: %s | MOMENTUM: %s | Volatility: %s\n\n",
		upper(string(snap.Trend)), upper(string(snap.Momentum)), upper(string(snap.Volatility)))
	fmt.Fprintf(&b, "Levels: R1 %s | S1 %s\n", optUSD(snap.Resistance1), optUSD(snap.Support1))
	fmt.Fprintf(&b, "24h volume: %.0f (base) | $%.0f USDT. Is volume healthy? Is there liquidity risk?\n\n",
		snap.Volume24h, snap.QuoteVolume24h)

	section(&b, "RISK REVIEW")
	b.WriteString("1. SAT: take profit and exit now\n")
	b.WriteString("2. BEKLE: hold for more upside\n")
	b.WriteString("3. KISMİ_SAT: sell part, trail the rest\n")
	b.WriteString("4. SL_GÜNCELLE: raise the stop loss (trailing)\n")
	b.WriteString("What is the risk of holding? Is momentum fading? Do not close winners too early, but do not be greedy.\n\n")

	b.WriteString(`RESPONSE FORMAT:
KARAR: [SAT / BEKLE / KISMİ_SAT / SL_GÜNCELLE]
GÜVEN: [1-10]
YENİ_SL: [price, if updating]
YENİ_TP: [price, if updating]
KISMİ_ORAN: [for a partial sell, e.g. %50 or %75]
GEREKÇE: [3-5 sentences]
RİSK_ANALİZİ: [risk of holding, chance of a bottom]
ALTERNATİF_PLAN: [what to do if price drops unexpectedly]
`)
	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString(rule + "\n")
	b.WriteString(title + "\n")
	b.WriteString(rule + "\n")
}

func upper(s string) string {
	if s == "" {
		return "—"
	}
	return strings.ToUpper(s)
}

func usd(v float64) string {
	if math.Abs(v) >= 1 {
		return "$" + decimal.NewFromFloat(v).StringFixed(2)
	}
	return "$" + decimal.NewFromFloat(roundPrice(v)).String()
}

func signedUSD(v float64) string {
	if v < 0 {
		return "-" + usd(-v)
	}
	return "+" + usd(v)
}

func optUSD(o types.Opt) string {
	if v, ok := o.Get(); ok {
		return usd(v)
	}
	return "—"
}

func distance(target, price float64) float64 {
	if price == 0 || target == 0 {
		return 0
	}
	return (target - price) / price * 100
}

func held(d time.Duration) string {
	hours := int(d.Hours())
	if hours < 48 {
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d days", hours/24)
}

func rsiNote(s types.Snapshot) string {
	switch {
	case s.Overbought:
		return " OVERBOUGHT"
	case s.Oversold:
		return " OVERSOLD"
	}
	return ""
}

func histNote(hist types.Opt) string {
	v, ok := hist.Get()
	if !ok {
		return ""
	}
	if v > 0 {
		return " positive"
	}
	return " negative"
}

func bbNote(pos types.Opt) string {
	v, ok := pos.Get()
	switch {
	case !ok:
		return ""
	case v > 0.8:
		return " (near upper band)"
	case v < 0.2:
		return " (near lower band)"
	}
	return ""
}

func adxNote(adx types.Opt) string {
	if v, ok := adx.Get(); ok && v > 25 {
		return " strong trend"
	}
	return ""
}
