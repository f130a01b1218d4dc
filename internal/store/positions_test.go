package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-spot-trader/internal/types"
)

const testKey = "test:positions"

func TestRedisPositionStoreSaveAndLoad(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisPositionStore(db, testKey, time.Second)

	opened := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	positions := []types.Position{{Symbol: "BTCUSDT", Quantity: 0.001, EntryPrice: 100000, StopLoss: 98000, TakeProfit: 103000, OpenedAt: opened}}
	payload := `[{"symbol":"BTCUSDT","quantity":0.001,"entry_price":100000,"stop_loss":98000,"take_profit":103000,"opened_at":"2026-01-02T03:04:00Z"}]`

	mock.ExpectSet(testKey, payload, 0).SetVal("OK")
	require.NoError(t, s.Save(context.Background(), positions))

	mock.ExpectGet(testKey).SetVal(payload)
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, positions, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPositionStoreMissingKey(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisPositionStore(db, testKey, time.Second)

	mock.ExpectGet(testKey).RedisNil()
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisPositionStoreFallsBackToMemory(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisPositionStore(db, testKey, time.Second)

	positions := []types.Position{{Symbol: "ETHUSDT", Quantity: 0.5, EntryPrice: 3000}}
	mock.Regexp().ExpectSet(testKey, `.*`, 0).SetErr(errors.New("connection refused"))
	err := s.Save(context.Background(), positions)
	require.Error(t, err)

	mock.ExpectGet(testKey).SetErr(errors.New("connection refused"))
	got, err := s.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, positions, got, "the last saved ledger is still returned")
}

func TestMemoryPositionStoreCopies(t *testing.T) {
	s := NewMemoryPositionStore()
	positions := []types.Position{{Symbol: "SOLUSDT", Quantity: 2}}
	require.NoError(t, s.Save(context.Background(), positions))

	positions[0].Quantity = 99
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, got[0].Quantity)
}
