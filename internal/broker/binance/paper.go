package binance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/types"
)

var ErrInsufficientFunds = errors.New("paper: insufficient USDT balance")

// Paper fills market orders at the current price against a simulated USDT
// balance. Market data still comes from the real exchange.
type Paper struct {
	md interfaces.MarketData

	mu       sync.Mutex
	cash     float64
	holdings map[string]float64
	now      func() time.Time
}

var _ interfaces.Exchange = (*Paper)(nil)

func NewPaper(md interfaces.MarketData, balance float64) *Paper {
	return &Paper{md: md, cash: balance, holdings: map[string]float64{}, now: time.Now}
}

func (p *Paper) Balance(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash, nil
}

func (p *Paper) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if req.Qty <= 0 {
		return types.OrderResp{}, ErrInvalidQuantity
	}
	price, err := p.md.CurrentPrice(ctx, req.Symbol)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("paper fill price: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	notional := req.Qty * price
	switch req.Side {
	case types.SideBuy:
		if notional > p.cash {
			return types.OrderResp{}, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientFunds, notional, p.cash)
		}
		p.cash -= notional
		p.holdings[req.Symbol] += req.Qty
	case types.SideSell:
		// Positions restored from storage may predate this paper book.
		p.holdings[req.Symbol] = max(0, p.holdings[req.Symbol]-req.Qty)
		p.cash += notional
	default:
		return types.OrderResp{}, fmt.Errorf("paper: unknown side %q", req.Side)
	}

	resp := types.OrderResp{
		OrderID: fmt.Sprintf("SIM-%d", p.now().UnixNano()),
		Status:  "SIMULATED",
		Message: "dry-run",
		Filled:  req.Qty,
	}
	logger.Info(ctx, "Simulated order filled",
		"symbol", req.Symbol,
		"side", string(req.Side),
		"qty", req.Qty,
		"price", price,
		"order_id", resp.OrderID,
		"cash", p.cash,
	)
	return resp, nil
}

// Holding returns the simulated base-asset quantity held for symbol.
func (p *Paper) Holding(symbol string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holdings[symbol]
}
