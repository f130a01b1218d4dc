package binance

import (
	"math"

	"llm-spot-trader/internal/store"
	"llm-spot-trader/internal/ta"
	"llm-spot-trader/internal/types"
)

// Params are the indicator periods applied to every timeframe.
type Params struct {
	RSIPeriod   int
	MACDFast    int
	MACDSlow    int
	MACDSignal  int
	StochPeriod int
	StochSmooth int
	BBWindow    int
	BBStdDev    float64
	ATRPeriod   int
	ADXPeriod   int
}

func ParamsFromConfig(cfg *store.Config) Params {
	ic := cfg.Indicators
	return Params{
		RSIPeriod:   ic.RSIPeriod,
		MACDFast:    ic.MACDFast,
		MACDSlow:    ic.MACDSlow,
		MACDSignal:  ic.MACDSignal,
		StochPeriod: ic.StochPeriod,
		StochSmooth: ic.StochSmooth,
		BBWindow:    ic.BBWindow,
		BBStdDev:    ic.BBStdDev,
		ATRPeriod:   ic.ATRPeriod,
		ADXPeriod:   ic.ADXPeriod,
	}
}

// Compute derives an indicator set from candles, oldest first. Indicators
// that need more history than is available are left absent.
func Compute(candles []types.Candle, p Params) types.IndicatorSet {
	var set types.IndicatorSet
	set.Recommendation = types.SignalUnknown
	if len(candles) == 0 {
		return set
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i], highs[i], lows[i] = c.Close, c.High, c.Low
	}

	set.Close = opt(closes[len(closes)-1])
	set.RSI = opt(ta.RSI(closes, p.RSIPeriod))
	m, sig, _ := ta.MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	set.MACD, set.MACDSignal = opt(m), opt(sig)
	set.StochK = opt(ta.StochK(highs, lows, closes, p.StochPeriod, p.StochSmooth))
	mid, up, lo := ta.Bollinger(closes, p.BBWindow, p.BBStdDev)
	set.BBMiddle, set.BBUpper, set.BBLower = opt(mid), opt(up), opt(lo)
	set.ATR = opt(ta.ATR(highs, lows, closes, p.ATRPeriod))
	set.ADX = opt(ta.ADX(highs, lows, closes, p.ADXPeriod))
	set.EMA9 = opt(ta.EMA(closes, 9))
	set.EMA21 = opt(ta.EMA(closes, 21))
	set.EMA50 = opt(ta.EMA(closes, 50))
	set.EMA200 = opt(ta.EMA(closes, 200))
	set.SMA50 = opt(ta.SMA(closes, 50))
	set.SMA200 = opt(ta.SMA(closes, 200))

	set.Recommendation = Recommend(set)
	return set
}

// Recommend votes the moving averages and oscillators of set into a single
// signal. Each group scores (buy-sell)/votes in [-1, 1]; the mean of the
// groups above 0.1 is a buy and below -0.1 a sell.
func Recommend(set types.IndicatorSet) types.Signal {
	price, ok := set.Close.Get()
	if !ok {
		return types.SignalUnknown
	}

	var maVote, maN int
	for _, ma := range []types.Opt{set.EMA9, set.EMA21, set.EMA50, set.EMA200, set.SMA50, set.SMA200} {
		if v, ok := ma.Get(); ok {
			maN++
			maVote += cmp(price, v)
		}
	}

	var oscVote, oscN int
	if rsi, ok := set.RSI.Get(); ok {
		oscN++
		switch {
		case rsi < 30:
			oscVote++
		case rsi > 70:
			oscVote--
		}
	}
	m, okM := set.MACD.Get()
	s, okS := set.MACDSignal.Get()
	if okM && okS {
		oscN++
		oscVote += cmp(m, s)
	}
	if k, ok := set.StochK.Get(); ok {
		oscN++
		switch {
		case k < 20:
			oscVote++
		case k > 80:
			oscVote--
		}
	}

	var groups []float64
	if maN > 0 {
		groups = append(groups, float64(maVote)/float64(maN))
	}
	if oscN > 0 {
		groups = append(groups, float64(oscVote)/float64(oscN))
	}
	if len(groups) == 0 {
		return types.SignalUnknown
	}
	total := 0.0
	for _, g := range groups {
		total += g
	}
	switch avg := total / float64(len(groups)); {
	case avg > 0.1:
		return types.SignalBuy
	case avg < -0.1:
		return types.SignalSell
	default:
		return types.SignalHold
	}
}

func cmp(a, b float64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

func opt(v float64) types.Opt {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return types.None()
	}
	return types.Some(v)
}
