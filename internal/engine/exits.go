package engine

import (
	"context"
	"fmt"

	"llm-spot-trader/internal/analysis"
	"llm-spot-trader/internal/decision"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/types"
)

// evaluateExit runs the exit rules for one position: stop-loss, then
// take-profit, then the advisory. advised reports whether the advisor was
// consulted.
func (e *Engine) evaluateExit(ctx context.Context, pos types.Position, price float64) (out types.ExitOutcome, advised bool) {
	gain := pos.GainPct(price)
	out = types.ExitOutcome{Symbol: pos.Symbol, Price: price, GainPct: gain, Decision: types.ExitDecision{Action: types.ExitHold}}

	if reason, hit := e.stops.trigger(gain); hit {
		logger.Risk(ctx, pos.Symbol, string(reason), "gain_pct", gain, "price", price, "entry_price", pos.EntryPrice)
		e.sellAll(ctx, pos, price, reason, 0, &out)
		return out, false
	}

	snap := e.builder.Build(ctx, pos.Symbol)
	reply := e.ask(ctx, "exit", pos.Symbol, analysis.ExitPrompt(pos, snap, e.now()))
	d := decision.ParseExit(reply)
	out.Decision = d
	e.deps.Metrics.ObserveAdvisory("exit", string(d.Action))
	e.exec.logDecision(ctx, pos.Symbol, "exit", string(d.Action), d.Rationale, d.Confidence, price)

	switch d.Action {
	case types.ExitSell:
		if d.Confidence >= e.minConfidence() {
			e.sellAll(ctx, pos, price, types.ReasonAdvisory, d.Confidence, &out)
		}
	case types.ExitRaiseStop:
		if sl, ok := d.NewStopLoss.Get(); ok {
			e.raiseStop(ctx, pos, sl, d.NewTakeProfit, &out)
		}
	case types.ExitPartialSell:
		if frac, ok := d.PartialFraction(); ok {
			e.sellPart(ctx, pos, price, frac, d, &out)
		}
	}
	return out, true
}

func (e *Engine) sellAll(ctx context.Context, pos types.Position, price float64, reason types.ExitReason, confidence int, out *types.ExitOutcome) {
	out.Reason = reason
	resp, err := e.exec.place(ctx, types.SideSell, pos.Symbol, pos.Quantity, price, string(reason), confidence)
	e.deps.Metrics.ObserveOrder(string(types.SideSell), string(reason), err)
	if err != nil {
		out.Err = err.Error()
		e.orderFailed(ctx, pos.Symbol, types.SideSell, err)
		return
	}

	e.ledger.close(pos.Symbol)
	e.persist(ctx)
	out.Order, out.SoldQty, out.Closed = &resp, pos.Quantity, true
	e.fill(types.SideSell, pos.Symbol)

	pnl := (price - pos.EntryPrice) * pos.Quantity
	title, sev := exitTitle(reason, pos.Symbol)
	body := fmt.Sprintf("Qty: %g\nEntry: %g\nExit: %g\nP&L: %+.2f USDT (%+.2f%%)", pos.Quantity, pos.EntryPrice, price, pnl, out.GainPct)
	e.notify(ctx, title, body, sev)
	e.record(ctx, fmt.Sprintf("%s: sold %g %s at %g (%+.2f%%)", reason, pos.Quantity, pos.Symbol, price, out.GainPct), "trade")
	e.deps.Bus.PublishTradeClosed(pos.Symbol, string(reason), pos.EntryPrice, price, pos.Quantity, out.GainPct)
}

func (e *Engine) sellPart(ctx context.Context, pos types.Position, price, frac float64, d types.ExitDecision, out *types.ExitOutcome) {
	qty := roundQty(pos.Quantity*frac, e.cfg.QuantityPrecision(pos.Symbol))
	if qty <= 0 {
		logger.Info(ctx, "Partial sell rounds to zero, skipped", "symbol", pos.Symbol, "pct", d.PartialPct, "qty", pos.Quantity)
		return
	}
	out.Reason = types.ReasonPartial
	resp, err := e.exec.place(ctx, types.SideSell, pos.Symbol, qty, price, string(types.ReasonPartial), d.Confidence)
	e.deps.Metrics.ObserveOrder(string(types.SideSell), string(types.ReasonPartial), err)
	if err != nil {
		out.Err = err.Error()
		e.orderFailed(ctx, pos.Symbol, types.SideSell, err)
		return
	}

	remaining, closed := e.ledger.reduce(pos.Symbol, qty)
	e.persist(ctx)
	out.Order, out.SoldQty, out.Closed = &resp, qty, closed
	e.fill(types.SideSell, pos.Symbol)

	e.notify(ctx, "PARTIAL SELL: "+pos.Symbol,
		fmt.Sprintf("Sold %d%%: %g at %g\nRemaining: %g\nReason: %s", d.PartialPct, qty, price, remaining, d.Rationale),
		types.SeverityWarning)
	e.record(ctx, fmt.Sprintf("partial: sold %g %s at %g, %g left", qty, pos.Symbol, price, remaining), "trade")
	if closed {
		e.deps.Bus.PublishTradeClosed(pos.Symbol, string(types.ReasonPartial), pos.EntryPrice, price, qty, out.GainPct)
	} else {
		e.publishPosition(pos.Symbol, price)
	}
}

func (e *Engine) raiseStop(ctx context.Context, pos types.Position, sl float64, tp types.Opt, out *types.ExitOutcome) {
	if !e.ledger.updateStops(pos.Symbol, sl, tp) {
		return
	}
	e.persist(ctx)
	out.Reason = types.ReasonRaiseStop
	updated, _ := e.ledger.get(pos.Symbol)

	logger.Info(ctx, "Stops updated",
		"symbol", pos.Symbol,
		"old_stop", pos.StopLoss,
		"new_stop", updated.StopLoss,
		"take_profit", updated.TakeProfit,
	)
	e.notify(ctx, "SL/TP UPDATED: "+pos.Symbol,
		fmt.Sprintf("Stop-loss: %g -> %g\nTake-profit: %g -> %g", pos.StopLoss, updated.StopLoss, pos.TakeProfit, updated.TakeProfit),
		types.SeverityInfo)
	e.record(ctx, fmt.Sprintf("raise-stop: %s SL %g TP %g", pos.Symbol, updated.StopLoss, updated.TakeProfit), "position")
	e.publishPosition(pos.Symbol, out.Price)
}

func (e *Engine) publishPosition(symbol string, price float64) {
	p, ok := e.ledger.get(symbol)
	if !ok {
		return
	}
	e.deps.Bus.Publish(eventPosition(p, price))
}

func (e *Engine) orderFailed(ctx context.Context, symbol string, side types.Side, err error) {
	e.lastErr = fmt.Sprintf("%s %s: %v", side, symbol, err)
	e.notify(ctx, "ORDER FAILED: "+symbol, fmt.Sprintf("%s order rejected: %v", side, err), types.SeverityError)
	e.record(ctx, fmt.Sprintf("%s %s failed: %v", side, symbol, err), "error")
}

func exitTitle(reason types.ExitReason, symbol string) (string, types.Severity) {
	switch reason {
	case types.ReasonStopLoss:
		return "STOP-LOSS: " + symbol, types.SeverityError
	case types.ReasonTakeProfit:
		return "TAKE-PROFIT: " + symbol, types.SeveritySuccess
	default:
		return "SELL (advisory): " + symbol, types.SeverityWarning
	}
}
