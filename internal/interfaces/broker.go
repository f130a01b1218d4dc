package interfaces

import (
	"context"

	"llm-spot-trader/internal/types"
)

// MarketData supplies prices, 24h stats and per-timeframe indicators.
type MarketData interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	DailyStats(ctx context.Context, symbol string) (types.DailyStats, error)
	Indicators(ctx context.Context, symbol string, tf types.Timeframe) (types.IndicatorSet, error)
}

// Exchange places market orders and reports the quote-currency balance.
type Exchange interface {
	PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
	Balance(ctx context.Context) (float64, error)
}

type Broker interface {
	MarketData
	Exchange
}
