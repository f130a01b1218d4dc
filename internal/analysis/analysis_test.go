package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-spot-trader/internal/decision"
	"llm-spot-trader/internal/types"
)

var errDown = errors.New("upstream down")

type fakeMarket struct {
	price      float64
	priceErr   error
	stats      types.DailyStats
	statsErr   error
	frames     map[types.Timeframe]types.IndicatorSet
	frameCalls int
}

func (f *fakeMarket) CurrentPrice(context.Context, string) (float64, error) {
	return f.price, f.priceErr
}

func (f *fakeMarket) DailyStats(context.Context, string) (types.DailyStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeMarket) Indicators(_ context.Context, _ string, tf types.Timeframe) (types.IndicatorSet, error) {
	f.frameCalls++
	ind, ok := f.frames[tf]
	if !ok {
		return types.IndicatorSet{}, errDown
	}
	return ind, nil
}

func bullishMarket() *fakeMarket {
	buy := types.IndicatorSet{Recommendation: types.SignalBuy}
	return &fakeMarket{
		price: 100,
		stats: types.DailyStats{LastPrice: 100, High: 110, Low: 90, ChangePct: 2.5, Volume: 1000, QuoteVolume: 100000},
		frames: map[types.Timeframe]types.IndicatorSet{
			types.TF15m: buy,
			types.TF1h: {
				Recommendation: types.SignalBuy,
				RSI:            types.Some(55.04),
				MACD:           types.Some(0.0123),
				MACDSignal:     types.Some(0.0103),
				StochK:         types.Some(64.26),
				BBUpper:        types.Some(105),
				BBLower:        types.Some(95),
				ATR:            types.Some(2),
				ADX:            types.Some(30.04),
				EMA50:          types.Some(98),
				EMA200:         types.Some(92),
			},
			types.TF4h: buy,
			types.TF1d: buy,
		},
	}
}

func TestBuildBullishSnapshot(t *testing.T) {
	b := NewBuilder(bullishMarket())
	s := b.Build(context.Background(), "BTCUSDT")

	assert.Equal(t, types.Some(100), s.Price)
	assert.Equal(t, 4, s.SignalCount(types.SignalBuy))
	assert.Equal(t, types.TrendBullish, s.Trend)
	assert.Equal(t, types.MomentumBullish, s.Momentum)
	assert.Equal(t, types.VolatilityNormal, s.Volatility)
	assert.True(t, s.GoldenCross)
	assert.False(t, s.DeathCross)
	assert.Equal(t, types.Some(0.5), s.BBPosition)
	assert.Equal(t, types.Some(30.0), s.ADX)

	h := s.Frame(types.TF1h)
	assert.Equal(t, types.Some(55.0), h.RSI)
	assert.Equal(t, types.Some(0.002), h.MACDHist)
	assert.Equal(t, types.Some(64.3), h.Stoch)

	assert.Equal(t, types.Some(98), s.Support1)
	assert.Equal(t, types.Some(95), s.Support2)
	assert.Equal(t, types.Some(102), s.Resistance1)
	assert.Equal(t, types.Some(105), s.Resistance2)
	assert.Equal(t, 2.0, s.DistanceToSupport)
	assert.Equal(t, 2.0, s.DistanceToResistance)

	assert.Equal(t, types.Some(100), s.Pivot)
	assert.Equal(t, types.Some(110), s.Fib.L0)
	assert.Equal(t, types.Some(100), s.Fib.L50)
	assert.Equal(t, types.Some(90), s.Fib.L100)
}

func TestScoreExample(t *testing.T) {
	s := NewBuilder(bullishMarket()).Build(context.Background(), "BTCUSDT")
	// 40 signals + 20 RSI band + 10 MACD + 10 golden + 10 ADX + 10 momentum
	assert.Equal(t, 100, Score(s))
}

func TestBuildWithoutPriceSkipsIndicators(t *testing.T) {
	m := bullishMarket()
	m.priceErr = errDown
	s := NewBuilder(m).Build(context.Background(), "ETHUSDT")

	assert.False(t, s.Price.Valid)
	assert.Equal(t, 0, m.frameCalls)
	assert.Equal(t, types.SignalUnknown, s.Frame(types.TF1h).Signal)
	assert.Equal(t, types.TrendNeutral, s.Trend)
	assert.Equal(t, types.MomentumNeutral, s.Momentum)
	assert.False(t, s.Support1.Valid)
	// Pivot falls back to the range midpoint.
	assert.Equal(t, types.Some(100), s.Pivot)
	assert.True(t, s.Fib.L0.Valid)
}

func TestBuildAllUpstreamDown(t *testing.T) {
	m := &fakeMarket{priceErr: errDown, statsErr: errDown}
	s := NewBuilder(m).Build(context.Background(), "SOLUSDT")

	assert.Equal(t, "SOLUSDT", s.Symbol)
	assert.False(t, s.Price.Valid)
	assert.False(t, s.Pivot.Valid)
	for _, lvl := range s.Fib.Ladder() {
		assert.False(t, lvl.Valid)
	}
	assert.Equal(t, types.VolatilityNormal, s.Volatility)
	assert.Equal(t, 0, Score(s))
}

func TestBuildFlatRangeHasNoFib(t *testing.T) {
	m := bullishMarket()
	m.stats.High, m.stats.Low = 100, 100
	s := NewBuilder(m).Build(context.Background(), "BTCUSDT")
	for _, lvl := range s.Fib.Ladder() {
		assert.False(t, lvl.Valid)
	}
	assert.True(t, s.Pivot.Valid)
}

func TestVolatilityBuckets(t *testing.T) {
	tests := []struct {
		atr  float64
		want types.Volatility
	}{
		{4, types.VolatilityHigh},
		{0.5, types.VolatilityLow},
		{2, types.VolatilityNormal},
	}
	for _, tt := range tests {
		m := bullishMarket()
		ind := m.frames[types.TF1h]
		ind.ATR = types.Some(tt.atr)
		m.frames[types.TF1h] = ind
		s := NewBuilder(m).Build(context.Background(), "BTCUSDT")
		assert.Equal(t, tt.want, s.Volatility, "atr %v", tt.atr)
	}
}

func TestMomentumClassification(t *testing.T) {
	tests := []struct {
		rsi, macd float64
		want      types.Momentum
	}{
		{65, 1, types.MomentumStrongBullish},
		{55, 1, types.MomentumBullish},
		{35, -1, types.MomentumStrongBearish},
		{45, -1, types.MomentumBearish},
		{55, -1, types.MomentumNeutral},
		{45, 1, types.MomentumNeutral},
	}
	for _, tt := range tests {
		m := bullishMarket()
		m.frames[types.TF1h] = types.IndicatorSet{
			Recommendation: types.SignalHold,
			RSI:            types.Some(tt.rsi),
			MACD:           types.Some(tt.macd),
			MACDSignal:     types.Some(0),
		}
		s := NewBuilder(m).Build(context.Background(), "BTCUSDT")
		assert.Equal(t, tt.want, s.Momentum, "rsi %v macd %v", tt.rsi, tt.macd)
	}
}

func TestOverboughtOversold(t *testing.T) {
	m := bullishMarket()
	ind := m.frames[types.TF1h]
	ind.RSI = types.Some(75)
	m.frames[types.TF1h] = ind
	s := NewBuilder(m).Build(context.Background(), "BTCUSDT")
	assert.True(t, s.Overbought)
	assert.False(t, s.Oversold)

	ind.RSI = types.Some(25)
	m.frames[types.TF1h] = ind
	s = NewBuilder(m).Build(context.Background(), "BTCUSDT")
	assert.True(t, s.Oversold)
}

func TestFibonacciMonotonic(t *testing.T) {
	ranges := [][2]float64{{110, 90}, {0.0912, 0.0801}, {67250.5, 64890.1}}
	for _, r := range ranges {
		ladder := Fibonacci(r[0], r[1]).Ladder()
		require.Len(t, ladder, 7)
		for i := 1; i < len(ladder); i++ {
			assert.LessOrEqual(t, ladder[i].Value, ladder[i-1].Value, "range %v level %d", r, i)
		}
		assert.Equal(t, r[0], ladder[0].Value)
		assert.Equal(t, r[1], ladder[6].Value)
	}
}

func TestSubDollarLevelsKeepPrecision(t *testing.T) {
	m := bullishMarket()
	m.price = 0.0815
	m.stats.High, m.stats.Low = 0.09, 0.08
	s := NewBuilder(m).Build(context.Background(), "DOGEUSDT")
	assert.Equal(t, types.Some(0.07987), s.Support1)
	assert.Equal(t, types.Some(0.08313), s.Resistance1)
	assert.NotEqual(t, s.Support1, s.Support2)
}

func TestRankStable(t *testing.T) {
	snaps := []types.Snapshot{
		{Symbol: "A"},
		{Symbol: "B", GoldenCross: true},
		{Symbol: "C"},
		{Symbol: "D", GoldenCross: true},
		{Symbol: "E", Volatility: types.VolatilityHigh},
	}
	ranked := Rank(snaps)
	var order []string
	for _, c := range ranked {
		order = append(order, c.Symbol)
	}
	assert.Equal(t, []string{"B", "D", "A", "C", "E"}, order)
	assert.Equal(t, 10, ranked[0].Score)
	assert.Equal(t, -5, ranked[4].Score)
}

func TestScoreRSIBands(t *testing.T) {
	tests := []struct {
		rsi  float64
		want int
	}{
		{50, 20},
		{35, 10},
		{65, 10},
		{25, 15},
		{75, 0},
		{30, 0},
		{70, 0},
	}
	for _, tt := range tests {
		s := types.Snapshot{Frames: map[types.Timeframe]types.FrameSignal{
			types.TF1h: {Signal: types.SignalHold, RSI: types.Some(tt.rsi)},
		}}
		assert.Equal(t, tt.want, Score(s), "rsi %v", tt.rsi)
	}
}

func TestSurveyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, NewBuilder(bullishMarket()).Survey(ctx, []string{"BTCUSDT", "ETHUSDT"}))

	out := NewBuilder(bullishMarket()).Survey(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.Len(t, out, 2)
	assert.Equal(t, "ETHUSDT", out[1].Symbol)
}

func TestEntryPromptCarriesResponseFormat(t *testing.T) {
	s := NewBuilder(bullishMarket()).Build(context.Background(), "BTCUSDT")
	p := EntryPrompt(s, PromptContext{Cash: 1000, OpenPositions: 1, MaxPositions: 3, RiskPct: 2})

	assert.Contains(t, p, "Symbol: BTCUSDT")
	assert.Contains(t, p, "Open positions: 1 / 3")
	assert.Contains(t, p, "about $20.00 USDT")
	assert.Contains(t, p, "GOLDEN CROSS")
	assert.Contains(t, p, "KARAR: [AL / BEKLE / ALMA]")
	assert.Contains(t, p, "ALTERNATİF_SENARYO:")

	// The format template itself must not parse as a decision.
	assert.Equal(t, types.EntryHold, decision.ParseEntry(strings.Split(p, "RESPONSE FORMAT")[0]).Action)
}

func TestExitPrompt(t *testing.T) {
	s := NewBuilder(bullishMarket()).Build(context.Background(), "BTCUSDT")
	opened := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pos := types.Position{Symbol: "BTCUSDT", Quantity: 0.5, EntryPrice: 90, StopLoss: 88.2, TakeProfit: 92.7, OpenedAt: opened}

	p := ExitPrompt(pos, s, opened.Add(72*time.Hour))
	assert.Contains(t, p, "P&L: +11.11% (+$5.00)")
	assert.Contains(t, p, "(3 days ago)")
	assert.Contains(t, p, "Target TP: $92.70 (-7.3% away)")
	assert.Contains(t, p, "KARAR: [SAT / BEKLE / KISMİ_SAT / SL_GÜNCELLE]")

	p = ExitPrompt(pos, s, opened.Add(5*time.Hour))
	assert.Contains(t, p, "(5 hours ago)")
}
