package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-spot-trader/internal/store"
	"llm-spot-trader/internal/types"
)

const (
	testKey    = "test-key"
	testSecret = "test-secret"
)

func testConfig(url string) *store.Config {
	cfg := store.Default()
	cfg.Exchange.BaseURL = url
	cfg.Credentials.BinanceKey = testKey
	cfg.Credentials.BinanceSecret = testSecret
	return cfg
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// verifySignature checks the HMAC over everything before &signature=.
func verifySignature(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, testKey, r.Header.Get("X-MBX-APIKEY"))
	raw := r.URL.RawQuery
	i := strings.LastIndex(raw, "&signature=")
	require.Positive(t, i, "signature missing from %q", raw)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(raw[:i]))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), raw[i+len("&signature="):])
	assert.NotEmpty(t, r.URL.Query().Get("timestamp"))
	assert.Equal(t, "5000", r.URL.Query().Get("recvWindow"))
}

func TestCurrentPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		writeJSON(w, http.StatusOK, `{"symbol":"BTCUSDT","price":"67000.50000000"}`)
	}))
	defer srv.Close()

	price, err := New(testConfig(srv.URL)).CurrentPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 67000.5, price)
}

func TestDailyStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"symbol":"ETHUSDT","lastPrice":"3000.1","highPrice":"3100","lowPrice":"2900.5",
			"priceChangePercent":"-1.25","volume":"12345.6","quoteVolume":"37000000.0"}`)
	}))
	defer srv.Close()

	stats, err := New(testConfig(srv.URL)).DailyStats(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, types.DailyStats{LastPrice: 3000.1, High: 3100, Low: 2900.5, ChangePct: -1.25, Volume: 12345.6, QuoteVolume: 37000000}, stats)
}

func TestIndicatorsFromKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "250", r.URL.Query().Get("limit"))
		var rows []string
		for i := 0; i < 250; i++ {
			c := 100 + float64(i%7) - 3
			rows = append(rows, fmt.Sprintf(`[%d,"%.2f","%.2f","%.2f","%.2f","10.0",%d,"1000.0",5,"1","1","0"]`,
				1700000000000+int64(i)*3600000, c, c+1, c-1, c, 1700000000000+int64(i)*3600000+3599999))
		}
		writeJSON(w, http.StatusOK, "["+strings.Join(rows, ",")+"]")
	}))
	defer srv.Close()

	set, err := New(testConfig(srv.URL)).Indicators(context.Background(), "BTCUSDT", types.TF1h)
	require.NoError(t, err)
	assert.True(t, set.Close.Valid)
	assert.True(t, set.RSI.Valid)
	assert.True(t, set.MACD.Valid)
	assert.True(t, set.MACDSignal.Valid)
	assert.True(t, set.ATR.Valid)
	assert.True(t, set.ADX.Valid)
	assert.True(t, set.EMA200.Valid)
	assert.True(t, set.SMA200.Valid)
	assert.NotEqual(t, types.SignalUnknown, set.Recommendation)
}

func TestComputeShortHistoryLeavesLongAveragesAbsent(t *testing.T) {
	candles := make([]types.Candle, 60)
	for i := range candles {
		c := 10 + float64(i)*0.1
		candles[i] = types.Candle{Open: c, High: c + 0.05, Low: c - 0.05, Close: c}
	}
	set := Compute(candles, ParamsFromConfig(store.Default()))
	assert.True(t, set.EMA50.Valid)
	assert.False(t, set.EMA200.Valid)
	assert.False(t, set.SMA200.Valid)
	assert.Equal(t, types.SignalUnknown, Compute(nil, Params{}).Recommendation)
}

func TestRecommend(t *testing.T) {
	bullish := types.IndicatorSet{
		Close: types.Some(110),
		EMA9:  types.Some(105), EMA21: types.Some(100), SMA50: types.Some(95),
		RSI: types.Some(55), MACD: types.Some(1), MACDSignal: types.Some(0.5), StochK: types.Some(50),
	}
	assert.Equal(t, types.SignalBuy, Recommend(bullish))

	bearish := types.IndicatorSet{
		Close: types.Some(90),
		EMA9:  types.Some(95), EMA21: types.Some(100),
		RSI: types.Some(75), MACD: types.Some(-1), MACDSignal: types.Some(0),
	}
	assert.Equal(t, types.SignalSell, Recommend(bearish))

	mixed := types.IndicatorSet{Close: types.Some(100), EMA9: types.Some(99), EMA21: types.Some(101)}
	assert.Equal(t, types.SignalHold, Recommend(mixed))

	assert.Equal(t, types.SignalUnknown, Recommend(types.IndicatorSet{RSI: types.Some(50)}))
}

func TestBalanceSigned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/account", r.URL.Path)
		verifySignature(t, r)
		writeJSON(w, http.StatusOK, `{"balances":[{"asset":"BTC","free":"0.1","locked":"0"},{"asset":"USDT","free":"100.5","locked":"4.5"}]}`)
	}))
	defer srv.Close()

	bal, err := New(testConfig(srv.URL)).Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 105.0, bal)
}

func TestPlaceOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		verifySignature(t, r)
		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "BUY", q.Get("side"))
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "0.00123", q.Get("quantity"))
		assert.Len(t, q.Get("newClientOrderId"), 32)
		writeJSON(w, http.StatusOK, `{"symbol":"BTCUSDT","orderId":12345,"clientOrderId":"abc","status":"FILLED","executedQty":"0.00123000","cummulativeQuoteQty":"82.41"}`)
	}))
	defer srv.Close()

	resp, err := New(testConfig(srv.URL)).PlaceOrder(context.Background(), types.OrderReq{Symbol: "BTCUSDT", Side: types.SideBuy, Qty: 0.00123})
	require.NoError(t, err)
	assert.Equal(t, "12345", resp.OrderID)
	assert.Equal(t, "FILLED", resp.Status)
	assert.Equal(t, 0.00123, resp.Filled)
}

func TestPlaceOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"code":-2010,"msg":"Account has insufficient balance for requested action."}`)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.PlaceOrder(context.Background(), types.OrderReq{Symbol: "BTCUSDT", Side: types.SideBuy, Qty: 1})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, -2010, apiErr.Code)

	_, err = c.PlaceOrder(context.Background(), types.OrderReq{Symbol: "BTCUSDT", Side: types.SideBuy, Qty: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestServerErrorTripsBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusInternalServerError, `{"code":-1000,"msg":"internal"}`)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	for i := 0; i < 7; i++ {
		_, err := c.CurrentPrice(context.Background(), "BTCUSDT")
		assert.Error(t, err)
	}
	assert.Equal(t, 5, calls)
}

func TestSignedCallsNeedCredentials(t *testing.T) {
	cfg := store.Default()
	cfg.Exchange.BaseURL = "http://127.0.0.1:1"
	c := New(cfg)

	_, err := c.Balance(context.Background())
	assert.ErrorIs(t, err, ErrNoCredentials)
	_, err = c.PlaceOrder(context.Background(), types.OrderReq{Symbol: "BTCUSDT", Side: types.SideSell, Qty: 1})
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestClientOrderID(t *testing.T) {
	a, b := ClientOrderID(), ClientOrderID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}
