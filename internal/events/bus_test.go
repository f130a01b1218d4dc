package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := NewBus(4)
	a, cancelA := b.Subscribe()
	c, cancelC := b.Subscribe()
	defer cancelA()
	defer cancelC()

	b.PublishTradeOpened("BTCUSDT", 67000, 0.001, 65660, 69010)

	for _, ch := range []<-chan Event{a, c} {
		ev := <-ch
		assert.Equal(t, EventTradeOpened, ev.Type)
		assert.Equal(t, "BTCUSDT", ev.Data["symbol"])
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBus(2)
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		b.PublishLog("system", "tick")
	}
	assert.Len(t, ch, 2)
	assert.Equal(t, int64(3), b.Dropped())
}

func TestCancelClosesChannel(t *testing.T) {
	b := NewBus(1)
	ch, cancel := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount())

	b.PublishError("engine", "cycle failed", nil)
	var nilBus *Bus
	assert.NotPanics(t, func() { nilBus.Publish(Event{Type: EventLog}) })
}
