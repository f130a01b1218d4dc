package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-spot-trader/internal/events"
	"llm-spot-trader/internal/metrics"
	"llm-spot-trader/internal/tradelog"
	"llm-spot-trader/internal/types"
)

type staticStatus types.Status

func (s staticStatus) Status() types.Status { return types.Status(s) }

type fakeEvents struct {
	events []tradelog.Event
	err    error
	limit  int
}

func (f *fakeEvents) Recent(_ context.Context, limit int) ([]tradelog.Event, error) {
	f.limit = limit
	return f.events, f.err
}

func sampleStatus() staticStatus {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return staticStatus{
		Running:        true,
		Mode:           "DRY_RUN",
		StartBalance:   types.Some(1000),
		Cash:           900,
		PortfolioValue: 1010,
		DailyPnL:       10,
		DailyPnLPct:    1,
		Positions:      []types.Position{{Symbol: "BTCUSDT", Quantity: 0.002, EntryPrice: 55000}},
		Samples:        []types.PortfolioSample{{Time: t0, Value: 1000}, {Time: t0.Add(time.Minute), Value: 1010}},
		Markers:        []types.ChartMarker{{Time: t0, Value: 1000, Side: types.SideBuy}},
	}
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestStatusEndpoints(t *testing.T) {
	s := NewServer(":0", sampleStatus(), Options{})
	h := s.Handler()

	rec, body := get(t, h, "/api/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, true, body["running"])
	assert.Equal(t, 1000.0, body["start_balance"])
	assert.Equal(t, 10.0, body["daily_pnl"])

	_, body = get(t, h, "/api/positions")
	assert.Equal(t, 1.0, body["count"])

	_, body = get(t, h, "/api/history")
	assert.Len(t, body["samples"], 2)
	assert.Len(t, body["markers"], 1)

	_, body = get(t, h, "/health")
	assert.Equal(t, "ok", body["status"])
}

func TestStatusRejectsWrites(t *testing.T) {
	s := NewServer(":0", sampleStatus(), Options{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEventsEndpoint(t *testing.T) {
	src := &fakeEvents{events: []tradelog.Event{{ID: 2, Category: "trade", Message: "bought"}}}
	h := NewServer(":0", sampleStatus(), Options{Events: src}).Handler()

	rec, body := get(t, h, "/api/events?limit=1000")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxEventLimit, src.limit)
	assert.Len(t, body["events"], 1)

	rec, _ = get(t, h, "/api/events?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	src.err = errors.New("connection refused")
	rec, _ = get(t, h, "/api/events")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, defaultEventLimit, src.limit)
}

func TestEventsEndpointWithoutStore(t *testing.T) {
	h := NewServer(":0", sampleStatus(), Options{}).Handler()
	rec, body := get(t, h, "/api/events")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "event store not configured", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.SetPortfolio(900, 1010, 1)
	h := NewServer(":0", sampleStatus(), Options{Metrics: m}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "spot_trader_portfolio_value_usdt 1010")
}

func TestWebsocketStreamsBusEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus(16)
	s := NewServer(":0", sampleStatus(), Options{Bus: bus})
	go s.Hub().Run(ctx)
	go s.Hub().Feed(ctx, bus)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.Hub().ClientCount() == 1 && bus.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	bus.PublishTradeOpened("ETHUSDT", 2000, 0.01, 1960, 2060)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev events.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, events.EventTradeOpened, ev.Type)
	assert.Equal(t, "ETHUSDT", ev.Data["symbol"])
}
