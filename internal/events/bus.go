package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType represents different kinds of engine events
type EventType string

const (
	EventBotStarted      EventType = "BOT_STARTED"
	EventBotStopped      EventType = "BOT_STOPPED"
	EventCycleCompleted  EventType = "CYCLE_COMPLETED"
	EventPortfolioSample EventType = "PORTFOLIO_SAMPLE"
	EventTradeOpened     EventType = "TRADE_OPENED"
	EventTradeClosed     EventType = "TRADE_CLOSED"
	EventPositionUpdate  EventType = "POSITION_UPDATE"
	EventLog             EventType = "LOG"
	EventError           EventType = "ERROR"
)

// Event is an immutable notice from the worker to presentation layers.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	buffer  int
	dropped atomic.Int64
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe returns a receive channel and a cancel func that closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped counts deliveries skipped because a subscriber was full.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) PublishTradeOpened(symbol string, price, quantity, stopLoss, takeProfit float64) {
	b.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]any{
			"symbol":      symbol,
			"entry_price": price,
			"quantity":    quantity,
			"stop_loss":   stopLoss,
			"take_profit": takeProfit,
		},
	})
}

func (b *Bus) PublishTradeClosed(symbol, reason string, entryPrice, exitPrice, quantity, gainPct float64) {
	b.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]any{
			"symbol":      symbol,
			"reason":      reason,
			"entry_price": entryPrice,
			"exit_price":  exitPrice,
			"quantity":    quantity,
			"pnl_percent": gainPct,
		},
	})
}

func (b *Bus) PublishPortfolioSample(value, cash float64, open int) {
	b.Publish(Event{
		Type: EventPortfolioSample,
		Data: map[string]any{"value": value, "cash": cash, "open_positions": open},
	})
}

func (b *Bus) PublishLog(category, message string) {
	b.Publish(Event{Type: EventLog, Data: map[string]any{"category": category, "message": message}})
}

func (b *Bus) PublishError(source, message string, err error) {
	data := map[string]any{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	b.Publish(Event{Type: EventError, Data: data})
}
