package brokerobs

import (
	"context"

	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/metrics"
	"llm-spot-trader/internal/trace"
	"llm-spot-trader/internal/types"
)

// observableBroker wraps a Broker with observability (logging, tracing & metrics)
type observableBroker struct {
	broker  interfaces.Broker
	metrics *metrics.Registry
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware. m may be nil.
func Wrap(broker interfaces.Broker, m *metrics.Registry) interfaces.Broker {
	return &observableBroker{
		broker:  broker,
		metrics: m,
	}
}

// CurrentPrice returns the last traded price with observability
func (ob *observableBroker) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "broker.CurrentPrice")
	defer span.End()

	price, err := ob.broker.CurrentPrice(ctx, symbol)
	if err != nil {
		ob.metrics.UpstreamError("broker", "price")
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch price", err, "symbol", symbol)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "Price fetched", "symbol", symbol, "price", price)
	return price, nil
}

func (ob *observableBroker) DailyStats(ctx context.Context, symbol string) (types.DailyStats, error) {
	ctx, span := trace.StartSpan(ctx, "broker.DailyStats")
	defer span.End()

	stats, err := ob.broker.DailyStats(ctx, symbol)
	if err != nil {
		ob.metrics.UpstreamError("broker", "daily_stats")
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch 24h stats", err, "symbol", symbol)
		return types.DailyStats{}, err
	}

	logger.DebugSkip(ctx, 1, "24h stats fetched",
		"symbol", symbol,
		"high", stats.High,
		"low", stats.Low,
		"change_pct", stats.ChangePct,
	)
	return stats, nil
}

// Indicators fetches one timeframe's indicators with observability
func (ob *observableBroker) Indicators(ctx context.Context, symbol string, tf types.Timeframe) (types.IndicatorSet, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Indicators")
	defer span.End()

	set, err := ob.broker.Indicators(ctx, symbol, tf)
	if err != nil {
		ob.metrics.UpstreamError("broker", "indicators")
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch indicators", err, "symbol", symbol, "timeframe", string(tf))
		return types.IndicatorSet{}, err
	}

	logger.DebugSkip(ctx, 1, "Indicators fetched",
		"symbol", symbol,
		"timeframe", string(tf),
		"recommendation", string(set.Recommendation),
		"rsi", set.RSI.String(),
	)
	return set, nil
}

// PlaceOrder places an order with observability
func (ob *observableBroker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing order",
		"symbol", req.Symbol,
		"side", string(req.Side),
		"qty", req.Qty,
		"tag", req.Tag,
	)

	resp, err := ob.broker.PlaceOrder(ctx, req)
	ob.metrics.ObserveOrder(string(req.Side), req.Tag, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"symbol", req.Symbol,
			"side", string(req.Side),
			"qty", req.Qty,
		)
		return types.OrderResp{}, err
	}

	logger.InfoSkip(ctx, 1, "Order placed successfully",
		"symbol", req.Symbol,
		"order_id", resp.OrderID,
		"status", resp.Status,
	)
	return resp, nil
}

func (ob *observableBroker) Balance(ctx context.Context) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Balance")
	defer span.End()

	bal, err := ob.broker.Balance(ctx)
	if err != nil {
		ob.metrics.UpstreamError("broker", "balance")
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch balance", err)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "Balance fetched", "usdt", bal)
	return bal, nil
}
