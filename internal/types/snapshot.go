package types

import "time"

type Timeframe string

const (
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Timeframes lists the frames a snapshot aggregates, shortest first.
var Timeframes = []Timeframe{TF15m, TF1h, TF4h, TF1d}

type Signal string

const (
	SignalBuy     Signal = "BUY"
	SignalSell    Signal = "SELL"
	SignalHold    Signal = "HOLD"
	SignalUnknown Signal = "UNKNOWN"
)

type Volatility string

const (
	VolatilityLow    Volatility = "low"
	VolatilityNormal Volatility = "normal"
	VolatilityHigh   Volatility = "high"
)

type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

type Momentum string

const (
	MomentumStrongBullish Momentum = "strong-bullish"
	MomentumBullish       Momentum = "bullish"
	MomentumStrongBearish Momentum = "strong-bearish"
	MomentumBearish       Momentum = "bearish"
	MomentumNeutral       Momentum = "neutral"
)

// IsBullish reports whether m is bullish or strong-bullish.
func (m Momentum) IsBullish() bool {
	return m == MomentumBullish || m == MomentumStrongBullish
}

// IndicatorSet is what a market data provider reports for one timeframe.
// Every numeric field is optional; providers fill what they can.
type IndicatorSet struct {
	Recommendation Signal `json:"recommendation"`

	Close      Opt `json:"close"`
	RSI        Opt `json:"rsi"`
	MACD       Opt `json:"macd"`
	MACDSignal Opt `json:"macd_signal"`
	StochK     Opt `json:"stoch_k"`
	BBUpper    Opt `json:"bb_upper"`
	BBMiddle   Opt `json:"bb_middle"`
	BBLower    Opt `json:"bb_lower"`
	ATR        Opt `json:"atr"`
	ADX        Opt `json:"adx"`
	EMA9       Opt `json:"ema9"`
	EMA21      Opt `json:"ema21"`
	EMA50      Opt `json:"ema50"`
	EMA200     Opt `json:"ema200"`
	SMA50      Opt `json:"sma50"`
	SMA200     Opt `json:"sma200"`
}

// FrameSignal is the per-timeframe slice of a snapshot.
type FrameSignal struct {
	Signal   Signal `json:"signal"`
	RSI      Opt    `json:"rsi"`
	MACD     Opt    `json:"macd"`
	MACDHist Opt    `json:"macd_hist"`
	Stoch    Opt    `json:"stoch"`
}

// FibLevels is the retracement ladder between the 24h high (L0) and low (L100).
type FibLevels struct {
	L0   Opt `json:"fib_0"`
	L236 Opt `json:"fib_236"`
	L382 Opt `json:"fib_382"`
	L50  Opt `json:"fib_50"`
	L618 Opt `json:"fib_618"`
	L786 Opt `json:"fib_786"`
	L100 Opt `json:"fib_100"`
}

// Ladder returns the levels from L0 to L100.
func (f FibLevels) Ladder() []Opt {
	return []Opt{f.L0, f.L236, f.L382, f.L50, f.L618, f.L786, f.L100}
}

// Snapshot is the computed technical picture of one symbol at one moment.
// It is built fresh for every request and never mutated afterwards.
type Snapshot struct {
	Symbol  string    `json:"symbol"`
	BuiltAt time.Time `json:"built_at"`

	Price          Opt        `json:"price"`
	Change24hPct   float64    `json:"change_24h_pct"`
	Volume24h      float64    `json:"volume_24h"`
	QuoteVolume24h float64    `json:"quote_volume_24h"`
	Volatility     Volatility `json:"volatility"`

	Frames map[Timeframe]FrameSignal `json:"frames"`

	BBPosition Opt `json:"bb_position"`
	ATR        Opt `json:"atr"`
	ADX        Opt `json:"adx"`
	EMA9       Opt `json:"ema9"`
	EMA21      Opt `json:"ema21"`
	EMA50      Opt `json:"ema50"`
	EMA200     Opt `json:"ema200"`
	SMA50      Opt `json:"sma50"`
	SMA200     Opt `json:"sma200"`

	GoldenCross bool `json:"golden_cross"`
	DeathCross  bool `json:"death_cross"`

	Support1             Opt     `json:"support_1"`
	Support2             Opt     `json:"support_2"`
	Resistance1          Opt     `json:"resistance_1"`
	Resistance2          Opt     `json:"resistance_2"`
	DistanceToSupport    float64 `json:"distance_to_support"`
	DistanceToResistance float64 `json:"distance_to_resistance"`

	Fib   FibLevels `json:"fib"`
	Pivot Opt       `json:"pivot"`

	Trend      Trend    `json:"trend"`
	Momentum   Momentum `json:"momentum"`
	Overbought bool     `json:"overbought"`
	Oversold   bool     `json:"oversold"`
}

// Frame returns the frame for tf, or an unknown frame when missing.
func (s Snapshot) Frame(tf Timeframe) FrameSignal {
	if f, ok := s.Frames[tf]; ok {
		return f
	}
	return FrameSignal{Signal: SignalUnknown}
}

// SignalCount counts timeframes whose signal equals sig.
func (s Snapshot) SignalCount(sig Signal) int {
	n := 0
	for _, tf := range Timeframes {
		if s.Frame(tf).Signal == sig {
			n++
		}
	}
	return n
}

type ScoredCandidate struct {
	Symbol   string   `json:"symbol"`
	Score    int      `json:"score"`
	Snapshot Snapshot `json:"snapshot"`
}
