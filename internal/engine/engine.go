package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"llm-spot-trader/internal/analysis"
	"llm-spot-trader/internal/events"
	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/metrics"
	"llm-spot-trader/internal/store"
	"llm-spot-trader/internal/tradelog"
	"llm-spot-trader/internal/types"
)

// Deps are the collaborators of the engine. Broker and Advisor are required;
// the rest may be nil.
type Deps struct {
	Broker   interfaces.Broker
	Advisor  interfaces.Advisor
	Notifier interfaces.Notifier
	EventLog interfaces.EventLog
	Store    interfaces.PositionStore
	TradeLog *tradelog.FileLog
	Eod      interfaces.EodSummarizer
	Bus      *events.Bus
	Metrics  *metrics.Registry
}

// Engine runs one scan cycle at a time. Everything except the published
// status is owned by the goroutine calling Cycle.
type Engine struct {
	cfg     *store.Config
	deps    Deps
	builder *analysis.Builder
	exec    *orderExecutor
	risk    *riskManager
	stops   *stopManager
	ledger  *ledger
	hist    *history
	now     func() time.Time
	pause   func(ctx context.Context, d time.Duration) bool

	startBalance types.Opt
	day          time.Time
	lastTrade    string
	lastTradeAt  time.Time
	cycles       int64
	lastErr      string

	mu     sync.RWMutex
	status types.Status
}

func newEngine(cfg *store.Config, deps Deps) *Engine {
	e := &Engine{
		cfg:     cfg,
		deps:    deps,
		builder: analysis.NewBuilder(deps.Broker),
		exec:    newOrderExecutor(deps.Broker, deps.TradeLog),
		risk:    newRiskManager(cfg),
		stops:   newStopManager(cfg),
		ledger:  newLedger(cfg.Trading.MaxPositions),
		hist:    newHistory(cfg.History.SampleCap, cfg.History.SampleTrim, cfg.History.MarkerCap),
		now:     func() time.Time { return time.Now().UTC() },
		pause:   sleepCtx,
	}
	e.status = types.Status{Mode: cfg.Mode, Positions: []types.Position{}}
	return e
}

// Restore loads persisted positions into the ledger. Invalid or surplus
// entries are dropped with a warning.
func (e *Engine) Restore(ctx context.Context) error {
	if e.deps.Store == nil {
		return nil
	}
	positions, err := e.deps.Store.Load(ctx)
	if err != nil && len(positions) == 0 {
		return fmt.Errorf("restore positions: %w", err)
	}
	for _, p := range positions {
		if err := e.ledger.open(p); err != nil {
			logger.Warn(ctx, "Dropped stored position", "symbol", p.Symbol, "error", err.Error())
		}
	}
	logger.Info(ctx, "Positions restored", "count", e.ledger.len())
	e.publish(e.status.Cash, e.status.PortfolioValue, nil)
	return nil
}

// Cycle values the portfolio, evaluates every open position and looks for
// at most one new entry.
func (e *Engine) Cycle(ctx context.Context) (*types.CycleResult, error) {
	now := e.now()
	res := &types.CycleResult{StartedAt: now, Exits: []types.ExitOutcome{}}
	e.cycles++
	e.lastErr = ""
	e.summarizePending(ctx)

	cash, err := e.deps.Broker.Balance(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Balance unavailable", err)
		e.lastErr = "balance: " + err.Error()
		cash = 0
	}
	prices := e.prices(ctx)
	value := e.valuation(cash, prices)
	res.Cash, res.PortfolioValue = cash, value

	e.rollDay(now, value, err == nil)
	e.hist.addSample(now, value)
	e.deps.Bus.PublishPortfolioSample(value, cash, e.ledger.len())
	e.deps.Metrics.SetPortfolio(cash, value, e.ledger.len())

	for _, pos := range e.ledger.list() {
		if ctx.Err() != nil {
			break
		}
		price, ok := prices[pos.Symbol]
		if !ok {
			logger.Warn(ctx, "No price for open position, skipping", "symbol", pos.Symbol)
			continue
		}
		out, advised := e.evaluateExit(ctx, pos, price)
		res.Exits = append(res.Exits, out)
		if out.Order != nil {
			cash, _ = e.refreshCash(ctx, cash)
		}
		if advised && !e.pause(ctx, e.callGap()) {
			break
		}
	}

	if ctx.Err() == nil {
		e.tryEntry(ctx, cash, res)
	}

	e.publish(res.Cash, res.PortfolioValue, prices)
	return res, ctx.Err()
}

// Status returns a deep copy of the last published state.
func (e *Engine) Status() types.Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.status
	st.Positions = append([]types.Position(nil), e.status.Positions...)
	st.Samples = append([]types.PortfolioSample(nil), e.status.Samples...)
	st.Markers = append([]types.ChartMarker(nil), e.status.Markers...)
	return st
}

func (e *Engine) prices(ctx context.Context) map[string]float64 {
	out := make(map[string]float64, e.ledger.len())
	for _, p := range e.ledger.list() {
		price, err := e.deps.Broker.CurrentPrice(ctx, p.Symbol)
		if err != nil || price <= 0 {
			continue
		}
		out[p.Symbol] = price
	}
	return out
}

// valuation is cash plus every position that has a price.
func (e *Engine) valuation(cash float64, prices map[string]float64) float64 {
	v := cash
	for _, p := range e.ledger.list() {
		if price, ok := prices[p.Symbol]; ok {
			v += p.Quantity * price
		}
	}
	return v
}

func (e *Engine) refreshCash(ctx context.Context, prev float64) (float64, bool) {
	cash, err := e.deps.Broker.Balance(ctx)
	if err != nil {
		return prev, false
	}
	return cash, true
}

// rollDay pins the start balance on the first valued cycle of each UTC day.
func (e *Engine) rollDay(now time.Time, value float64, valued bool) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !day.Equal(e.day) {
		e.day = day
		e.startBalance = types.None()
	}
	if !e.startBalance.Valid && valued {
		e.startBalance = types.Some(value)
	}
}

func (e *Engine) summarizePending(ctx context.Context) {
	if e.deps.Eod == nil {
		return
	}
	day, pending := e.deps.Eod.PendingDay()
	if !pending {
		return
	}
	path, err := e.deps.Eod.SummarizeDay(day)
	if err != nil {
		logger.ErrorWithErr(ctx, "Daily summary failed", err, "day", day.Format("2006-01-02"))
		return
	}
	if path != "" {
		e.record(ctx, fmt.Sprintf("Daily summary for %s written to %s", day.Format("2006-01-02"), path), "system")
	}
	if e.deps.TradeLog != nil {
		if err := e.deps.TradeLog.CompressOlder(e.cfg.EventLog.RetentionDays); err != nil {
			logger.Warn(ctx, "Log compression failed", "error", err.Error())
		}
	}
}

// ask returns the advisory reply, or "" when the advisor fails.
func (e *Engine) ask(ctx context.Context, kind, symbol, prompt string) string {
	reply, err := e.deps.Advisor.Ask(ctx, prompt)
	if err != nil {
		logger.Warn(ctx, "Advisory unavailable, treating as hold", "kind", kind, "symbol", symbol, "error", err.Error())
		e.deps.Metrics.UpstreamError("advisor", kind)
		return ""
	}
	return reply
}

func (e *Engine) callGap() time.Duration {
	return time.Duration(e.cfg.Trading.PauseBetweenCallsMs) * time.Millisecond
}

func (e *Engine) persist(ctx context.Context) {
	if e.deps.Store == nil {
		return
	}
	if err := e.deps.Store.Save(ctx, e.ledger.list()); err != nil {
		logger.ErrorWithErr(ctx, "Failed to persist positions", err, "count", e.ledger.len())
	}
}

func (e *Engine) notify(ctx context.Context, title, body string, sev types.Severity) {
	if e.deps.Notifier != nil {
		e.deps.Notifier.Notify(ctx, title, body, sev)
	}
}

func (e *Engine) record(ctx context.Context, message, category string) {
	if e.deps.EventLog != nil {
		e.deps.EventLog.Record(ctx, message, category)
	}
	e.deps.Bus.PublishLog(category, message)
}

// fill marks a trade on the portfolio chart at the latest sampled value.
func (e *Engine) fill(side types.Side, symbol string) {
	now := e.now()
	e.lastTrade = string(side) + " " + symbol
	e.lastTradeAt = now
	e.hist.addMarker(now, e.hist.lastValue(), side)
}

// publish rebuilds the status copy read by Status.
func (e *Engine) publish(cash, value float64, prices map[string]float64) {
	st := types.Status{
		Mode:           e.cfg.Mode,
		StartBalance:   e.startBalance,
		Cash:           cash,
		PortfolioValue: value,
		LastTrade:      e.lastTrade,
		LastTradeAt:    e.lastTradeAt,
		Positions:      e.ledger.list(),
		Samples:        e.hist.copySamples(),
		Markers:        e.hist.copyMarkers(),
		Cycles:         e.cycles,
		LastError:      e.lastErr,
	}
	if e.cycles > 0 {
		st.LastCycleAt = e.now()
	}
	if sb, ok := e.startBalance.Get(); ok {
		st.DailyPnL = value - sb
		if sb > 0 {
			st.DailyPnLPct = st.DailyPnL / sb * 100
		}
	}
	for _, p := range st.Positions {
		price, ok := prices[p.Symbol]
		if !ok {
			continue
		}
		if g := p.GainPct(price); !st.BestGainPct.Valid || g > st.BestGainPct.Value {
			st.BestPosition, st.BestGainPct = p.Symbol, types.Some(g)
		}
	}

	e.mu.Lock()
	e.status = st
	e.mu.Unlock()
}

// entryContext feeds the portfolio state into the entry prompt.
func (e *Engine) entryContext(cash float64) analysis.PromptContext {
	return analysis.PromptContext{
		Cash:          cash,
		OpenPositions: e.ledger.len(),
		MaxPositions:  e.cfg.Trading.MaxPositions,
		RiskPct:       e.cfg.Trading.RiskPct,
	}
}

func (e *Engine) minConfidence() int {
	return e.cfg.Trading.MinConfidence
}
