package engine

import (
	"context"

	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/tradelog"
	"llm-spot-trader/internal/types"
)

// orderExecutor places market orders and appends fills to the trade log.
type orderExecutor struct {
	exchange interfaces.Exchange
	log      *tradelog.FileLog
}

func newOrderExecutor(exchange interfaces.Exchange, log *tradelog.FileLog) *orderExecutor {
	return &orderExecutor{exchange: exchange, log: log}
}

func (oe *orderExecutor) place(ctx context.Context, side types.Side, symbol string, qty, price float64, reason string, confidence int) (types.OrderResp, error) {
	resp, err := oe.exchange.PlaceOrder(ctx, types.OrderReq{Symbol: symbol, Side: side, Qty: qty, Tag: reason})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place order", err,
			"symbol", symbol,
			"side", string(side),
			"qty", qty,
			"price", price,
			"reason", reason,
		)
		return types.OrderResp{}, err
	}

	logger.Trade(ctx, symbol, string(side), qty, price, resp.OrderID, "reason", reason, "status", resp.Status)
	if oe.log != nil {
		if err := oe.log.Append(tradelog.Entry{
			Symbol:     symbol,
			Side:       string(side),
			Qty:        qty,
			Price:      price,
			OrderID:    resp.OrderID,
			Reason:     reason,
			Confidence: confidence,
		}); err != nil {
			logger.ErrorWithErr(ctx, "Failed to append trade log", err, "symbol", symbol)
		}
	}
	return resp, nil
}

// logDecision records a parsed advisory whether or not it was acted on.
func (oe *orderExecutor) logDecision(ctx context.Context, symbol, kind, action, rationale string, confidence int, price float64) {
	logger.Decision(ctx, symbol, action, confidence, rationale, "kind", kind, "price", price)
	if oe.log == nil {
		return
	}
	_ = oe.log.AppendDecision(tradelog.DecisionEntry{
		Symbol:     symbol,
		Kind:       kind,
		Action:     action,
		Rationale:  rationale,
		Confidence: confidence,
		Price:      price,
	})
}
