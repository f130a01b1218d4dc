package binance

import (
	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/store"
)

var _ interfaces.Broker = (*Client)(nil)

type composite struct {
	interfaces.MarketData
	interfaces.Exchange
}

// NewBroker returns the live client in LIVE mode. In DRY_RUN it reads the
// same market data but fills orders on a Paper book.
func NewBroker(cfg *store.Config) interfaces.Broker {
	c := New(cfg)
	if cfg.Live() {
		return c
	}
	return composite{MarketData: c, Exchange: NewPaper(c, cfg.Exchange.PaperBalanceUSDT)}
}
