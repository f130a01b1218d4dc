package binance

import (
	"sync"
	"time"

	"llm-spot-trader/internal/types"
)

// klineTTL covers one scan cycle, where a held symbol is analysed for its
// exit and again in the entry survey.
const klineTTL = 30 * time.Second

// candleCache keeps the last kline fetch per symbol and interval.
type candleCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	buffers map[string]candleBuffer
}

type candleBuffer struct {
	candles   []types.Candle
	fetchedAt time.Time
}

func newCandleCache(ttl time.Duration) *candleCache {
	return &candleCache{ttl: ttl, buffers: make(map[string]candleBuffer)}
}

func cacheKey(symbol, interval string) string {
	return symbol + "|" + interval
}

// get returns the cached candles while they are younger than the TTL.
func (cc *candleCache) get(symbol, interval string, now time.Time) ([]types.Candle, bool) {
	if cc == nil || cc.ttl <= 0 {
		return nil, false
	}
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	buf, ok := cc.buffers[cacheKey(symbol, interval)]
	if !ok || now.Sub(buf.fetchedAt) >= cc.ttl {
		return nil, false
	}
	return buf.candles, true
}

func (cc *candleCache) put(symbol, interval string, candles []types.Candle, now time.Time) {
	if cc == nil || cc.ttl <= 0 || len(candles) == 0 {
		return
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.buffers[cacheKey(symbol, interval)] = candleBuffer{candles: candles, fetchedAt: now}
	for k, b := range cc.buffers {
		if now.Sub(b.fetchedAt) >= cc.ttl {
			delete(cc.buffers, k)
		}
	}
}
