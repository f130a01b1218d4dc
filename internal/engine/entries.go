package engine

import (
	"context"
	"fmt"
	"time"

	"llm-spot-trader/internal/analysis"
	"llm-spot-trader/internal/decision"
	"llm-spot-trader/internal/events"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/types"
)

// tryEntry ranks the universe and opens at most one new position.
func (e *Engine) tryEntry(ctx context.Context, cash float64, res *types.CycleResult) {
	if ok, why := e.risk.canEnter(e.ledger.len(), cash); !ok {
		res.SkipReason = why
		logger.Debug(ctx, "Entry scan skipped", "reason", why, "cash", cash, "open", e.ledger.len())
		return
	}

	ranked := analysis.Rank(e.builder.Survey(ctx, e.cfg.Universe))
	res.Candidates = len(ranked)
	limit := min(e.cfg.Trading.CandidateLimit, len(ranked))

	for _, c := range ranked[:limit] {
		if ctx.Err() != nil {
			return
		}
		if e.ledger.has(c.Symbol) {
			continue
		}
		price, ok := c.Snapshot.Price.Get()
		if !ok {
			continue
		}

		reply := e.ask(ctx, "entry", c.Symbol, analysis.EntryPrompt(c.Snapshot, e.entryContext(cash)))
		d := decision.ParseEntry(reply)
		e.deps.Metrics.ObserveAdvisory("entry", string(d.Action))
		e.exec.logDecision(ctx, c.Symbol, "entry", string(d.Action), d.Rationale, d.Confidence, price)

		if d.Action == types.EntryBuy && d.Confidence >= e.minConfidence() {
			spend, enough := e.risk.spend(cash)
			if !enough {
				res.SkipReason = "order below minimum"
				logger.Info(ctx, "Buy skipped, order below minimum", "symbol", c.Symbol, "spend", spend, "min", e.cfg.Trading.MinOrderUSDT)
				return
			}
			if out, ok := e.buy(ctx, c, price, spend, d); ok {
				res.Entry = out
				return
			}
		}
		if !e.pause(ctx, e.callGap()) {
			return
		}
	}
}

func (e *Engine) buy(ctx context.Context, c types.ScoredCandidate, price, spend float64, d types.EntryDecision) (*types.EntryOutcome, bool) {
	qty := e.risk.quantity(c.Symbol, spend, price)
	if qty <= 0 {
		logger.Info(ctx, "Buy quantity rounds to zero", "symbol", c.Symbol, "spend", spend, "price", price)
		return nil, false
	}

	resp, err := e.exec.place(ctx, types.SideBuy, c.Symbol, qty, price, string(types.ReasonAdvisory), d.Confidence)
	e.deps.Metrics.ObserveOrder(string(types.SideBuy), string(types.ReasonAdvisory), err)
	if err != nil {
		e.orderFailed(ctx, c.Symbol, types.SideBuy, err)
		return nil, false
	}

	sl, tp := e.stops.levels(price, d.StopLoss, d.TakeProfit)
	pos := types.Position{
		Symbol:     c.Symbol,
		Quantity:   qty,
		EntryPrice: price,
		StopLoss:   sl,
		TakeProfit: tp,
		OpenedAt:   e.now(),
	}
	if err := e.ledger.open(pos); err != nil {
		logger.ErrorWithErr(ctx, "Filled buy could not be tracked", err, "symbol", c.Symbol, "order_id", resp.OrderID)
		return nil, false
	}
	e.persist(ctx)
	e.fill(types.SideBuy, c.Symbol)

	e.notify(ctx, "BUY: "+c.Symbol,
		fmt.Sprintf("Qty: %g\nPrice: %g\nSpend: %.2f USDT\nStop-loss: %g\nTake-profit: %g\nConfidence: %d/10\nScore: %d\nReason: %s",
			qty, price, spend, sl, tp, d.Confidence, c.Score, d.Rationale),
		types.SeveritySuccess)
	e.record(ctx, fmt.Sprintf("bought %g %s at %g (score %d, confidence %d)", qty, c.Symbol, price, c.Score, d.Confidence), "trade")
	e.deps.Bus.PublishTradeOpened(c.Symbol, price, qty, sl, tp)

	return &types.EntryOutcome{Symbol: c.Symbol, Score: c.Score, Decision: d, Position: pos, Order: resp}, true
}

func eventPosition(p types.Position, price float64) events.Event {
	return events.Event{
		Type:      events.EventPositionUpdate,
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"symbol":        p.Symbol,
			"quantity":      p.Quantity,
			"entry_price":   p.EntryPrice,
			"current_price": price,
			"stop_loss":     p.StopLoss,
			"take_profit":   p.TakeProfit,
			"pnl_percent":   p.GainPct(price),
		},
	}
}
