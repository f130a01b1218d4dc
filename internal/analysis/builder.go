// Package analysis turns raw market data into per-symbol snapshots, ranks
// them as entry candidates and renders the advisory prompts.
package analysis

import (
	"context"
	"math"
	"time"

	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/types"
)

// Builder assembles snapshots from a market data provider. Build never
// fails: anything the provider cannot supply is left absent.
type Builder struct {
	md  interfaces.MarketData
	now func() time.Time
}

func NewBuilder(md interfaces.MarketData) *Builder {
	return &Builder{md: md, now: time.Now}
}

// Build fetches price, 24h stats and per-timeframe indicators for symbol and
// derives the flat snapshot from them.
func (b *Builder) Build(ctx context.Context, symbol string) types.Snapshot {
	snap := types.Snapshot{
		Symbol:     symbol,
		BuiltAt:    b.now().UTC(),
		Volatility: types.VolatilityNormal,
		Trend:      types.TrendNeutral,
		Momentum:   types.MomentumNeutral,
		Frames:     make(map[types.Timeframe]types.FrameSignal, len(types.Timeframes)),
	}
	for _, tf := range types.Timeframes {
		snap.Frames[tf] = types.FrameSignal{Signal: types.SignalUnknown}
	}

	price, err := b.md.CurrentPrice(ctx, symbol)
	if err != nil {
		logger.Warn(ctx, "Price unavailable", "symbol", symbol, "error", err.Error())
	} else if price > 0 {
		snap.Price = types.Some(price)
	}

	stats, err := b.md.DailyStats(ctx, symbol)
	if err != nil {
		logger.Warn(ctx, "24h stats unavailable", "symbol", symbol, "error", err.Error())
	} else {
		snap.Change24hPct = stats.ChangePct
		snap.Volume24h = stats.Volume
		snap.QuoteVolume24h = stats.QuoteVolume
		applyRange(&snap, stats.High, stats.Low)
	}

	p, ok := snap.Price.Get()
	if !ok {
		return snap
	}

	for _, tf := range types.Timeframes {
		ind, err := b.md.Indicators(ctx, symbol, tf)
		if err != nil {
			logger.Debug(ctx, "Indicators unavailable", "symbol", symbol, "timeframe", string(tf), "error", err.Error())
			continue
		}
		snap.Frames[tf] = frameFrom(ind)
		if tf == types.TF1h {
			applyHourly(&snap, ind, p)
		}
	}

	classify(&snap)
	applyLevels(&snap, p)

	if atr, ok := snap.ATR.Get(); ok {
		switch pct := atr / p * 100; {
		case pct > 3:
			snap.Volatility = types.VolatilityHigh
		case pct < 1:
			snap.Volatility = types.VolatilityLow
		}
	}

	logger.Debug(ctx, "Snapshot built",
		"symbol", symbol,
		"price", p,
		"trend", string(snap.Trend),
		"momentum", string(snap.Momentum),
		"volatility", string(snap.Volatility),
		"buy_signals", snap.SignalCount(types.SignalBuy),
	)
	return snap
}

// Survey builds a snapshot per symbol, in order. It stops early only when
// ctx is cancelled.
func (b *Builder) Survey(ctx context.Context, symbols []string) []types.Snapshot {
	out := make([]types.Snapshot, 0, len(symbols))
	for _, s := range symbols {
		if ctx.Err() != nil {
			break
		}
		out = append(out, b.Build(ctx, s))
	}
	return out
}

// applyRange sets the Fibonacci ladder and pivot from the 24h range.
func applyRange(snap *types.Snapshot, high, low float64) {
	if high <= 0 || low <= 0 {
		return
	}
	if high > low {
		snap.Fib = Fibonacci(high, low)
	}
	if p, ok := snap.Price.Get(); ok {
		snap.Pivot = types.Some(roundPrice((high + low + p) / 3))
	} else {
		snap.Pivot = types.Some(roundPrice((high + low) / 2))
	}
}

// Fibonacci returns the retracement ladder from high down to low.
func Fibonacci(high, low float64) types.FibLevels {
	diff := high - low
	at := func(r float64) types.Opt { return types.Some(roundPrice(high - r*diff)) }
	return types.FibLevels{
		L0:   types.Some(roundPrice(high)),
		L236: at(0.236),
		L382: at(0.382),
		L50:  at(0.5),
		L618: at(0.618),
		L786: at(0.786),
		L100: types.Some(roundPrice(low)),
	}
}

func frameFrom(ind types.IndicatorSet) types.FrameSignal {
	f := types.FrameSignal{Signal: ind.Recommendation}
	if f.Signal == "" {
		f.Signal = types.SignalUnknown
	}
	if v, ok := ind.RSI.Get(); ok {
		f.RSI = types.Some(round(v, 1))
	}
	if v, ok := ind.MACD.Get(); ok {
		m := round(v, 4)
		f.MACD = types.Some(m)
		if sig, ok := ind.MACDSignal.Get(); ok {
			f.MACDHist = types.Some(round(m-sig, 4))
		}
	}
	if v, ok := ind.StochK.Get(); ok {
		f.Stoch = types.Some(round(v, 1))
	}
	return f
}

// applyHourly copies the 1h-only fields into the snapshot.
func applyHourly(snap *types.Snapshot, ind types.IndicatorSet, price float64) {
	if rsi, ok := ind.RSI.Get(); ok {
		rsi = round(rsi, 1)
		snap.Overbought = rsi > 70
		snap.Oversold = rsi < 30
	}
	up, okU := ind.BBUpper.Get()
	lo, okL := ind.BBLower.Get()
	if okU && okL && up > lo {
		snap.BBPosition = types.Some(round((price-lo)/(up-lo), 2))
	}
	snap.ATR = ind.ATR
	if v, ok := ind.ADX.Get(); ok {
		snap.ADX = types.Some(round(v, 1))
	}
	snap.EMA9, snap.EMA21 = ind.EMA9, ind.EMA21
	snap.EMA50, snap.EMA200 = ind.EMA50, ind.EMA200
	snap.SMA50, snap.SMA200 = ind.SMA50, ind.SMA200

	e50, ok50 := snap.EMA50.Get()
	e200, ok200 := snap.EMA200.Get()
	if ok50 && ok200 && e50 > 0 && e200 > 0 {
		snap.GoldenCross = e50 > e200
		snap.DeathCross = e50 < e200
	}
}

// classify derives the aggregate trend and the 1h momentum.
func classify(snap *types.Snapshot) {
	switch {
	case snap.SignalCount(types.SignalBuy) >= 3:
		snap.Trend = types.TrendBullish
	case snap.SignalCount(types.SignalSell) >= 3:
		snap.Trend = types.TrendBearish
	}

	h := snap.Frame(types.TF1h)
	rsi, okR := h.RSI.Get()
	hist, okH := h.MACDHist.Get()
	if !okR || !okH {
		return
	}
	switch {
	case rsi > 60 && hist > 0:
		snap.Momentum = types.MomentumStrongBullish
	case rsi > 50 && hist > 0:
		snap.Momentum = types.MomentumBullish
	case rsi < 40 && hist < 0:
		snap.Momentum = types.MomentumStrongBearish
	case rsi < 50 && hist < 0:
		snap.Momentum = types.MomentumBearish
	}
}

// applyLevels sets the fixed-offset support and resistance levels.
func applyLevels(snap *types.Snapshot, p float64) {
	s1, s2 := roundPrice(p*0.98), roundPrice(p*0.95)
	r1, r2 := roundPrice(p*1.02), roundPrice(p*1.05)
	snap.Support1, snap.Support2 = types.Some(s1), types.Some(s2)
	snap.Resistance1, snap.Resistance2 = types.Some(r1), types.Some(r2)
	snap.DistanceToResistance = round((r1-p)/p*100, 2)
	snap.DistanceToSupport = round((p-s1)/p*100, 2)
}

func round(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}

// roundPrice rounds to cents from one dollar up and to six places below.
func roundPrice(v float64) float64 {
	if math.Abs(v) >= 1 {
		return round(v, 2)
	}
	return round(v, 6)
}
