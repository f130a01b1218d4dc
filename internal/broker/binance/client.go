// Package binance is the spot exchange client: public market data, locally
// computed indicators, signed account and order calls, and a paper exchange
// for dry runs.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"llm-spot-trader/internal/store"
	"llm-spot-trader/internal/types"
)

const quoteAsset = "USDT"

var (
	ErrNoCredentials   = errors.New("binance: api key and secret required")
	ErrInvalidQuantity = errors.New("binance: order quantity must be positive")
)

// APIError is a non-2xx reply from the exchange.
type APIError struct {
	Status int    `json:"-"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: http %d code %d: %s", e.Status, e.Code, e.Msg)
}

type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	apiKey     string
	apiSecret  string
	recvWindow int

	publicTimeout time.Duration
	signedTimeout time.Duration
	klineLimit    int
	params        Params
	candles       *candleCache

	now func() time.Time
}

func New(cfg *store.Config) *Client {
	ex := cfg.Exchange
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(ex.BaseURL, "/")).
			SetHeader("Accept", "application/json"),
		limiter: rate.NewLimiter(rate.Limit(ex.RequestsPerSecond), ex.Burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "binance",
			Interval: 60 * time.Second,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				// 4xx rejections do not count against the breaker.
				var apiErr *APIError
				return err == nil || (errors.As(err, &apiErr) && apiErr.Status < 500)
			},
		}),
		apiKey:        cfg.Credentials.BinanceKey,
		apiSecret:     cfg.Credentials.BinanceSecret,
		recvWindow:    ex.RecvWindowMs,
		publicTimeout: time.Duration(ex.PublicTimeoutSec) * time.Second,
		signedTimeout: time.Duration(ex.SignedTimeoutSec) * time.Second,
		klineLimit:    ex.KlineLimit,
		params:        ParamsFromConfig(cfg),
		candles:       newCandleCache(klineTTL),
		now:           time.Now,
	}
}

// call runs one rate-limited, breaker-guarded request with its own timeout.
func (c *Client) call(ctx context.Context, timeout time.Duration, fn func(*resty.Request) (*resty.Response, error)) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("binance: rate limiter: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := c.breaker.Execute(func() (any, error) {
		resp, err := fn(c.http.R().SetContext(ctx).SetError(&APIError{}))
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			apiErr, _ := resp.Error().(*APIError)
			if apiErr == nil || apiErr.Msg == "" {
				apiErr = &APIError{Msg: resp.String()}
			}
			apiErr.Status = resp.StatusCode()
			return nil, apiErr
		}
		return nil, nil
	})
	return err
}

// signed encodes params with timestamp, recvWindow and signature, in the
// order they are signed.
func (c *Client) signed(params url.Values) (string, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return "", ErrNoCredentials
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	if c.recvWindow > 0 {
		params.Set("recvWindow", strconv.Itoa(c.recvWindow))
	}
	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return query + "&signature=" + hex.EncodeToString(mac.Sum(nil)), nil
}

type tickerPrice struct {
	Price float64 `json:"price,string"`
}

type ticker24hr struct {
	LastPrice          float64 `json:"lastPrice,string"`
	HighPrice          float64 `json:"highPrice,string"`
	LowPrice           float64 `json:"lowPrice,string"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	Volume             float64 `json:"volume,string"`
	QuoteVolume        float64 `json:"quoteVolume,string"`
}

type account struct {
	Balances []struct {
		Asset  string  `json:"asset"`
		Free   float64 `json:"free,string"`
		Locked float64 `json:"locked,string"`
	} `json:"balances"`
}

type orderResponse struct {
	Symbol        string  `json:"symbol"`
	OrderID       int64   `json:"orderId"`
	ClientOrderID string  `json:"clientOrderId"`
	Status        string  `json:"status"`
	ExecutedQty   float64 `json:"executedQty,string"`
	QuoteQty      float64 `json:"cummulativeQuoteQty,string"`
}

func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	var out tickerPrice
	err := c.call(ctx, c.publicTimeout, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("symbol", symbol).SetResult(&out).Get("/api/v3/ticker/price")
	})
	if err != nil {
		return 0, fmt.Errorf("price %s: %w", symbol, err)
	}
	if out.Price <= 0 {
		return 0, fmt.Errorf("price %s: empty ticker", symbol)
	}
	return out.Price, nil
}

func (c *Client) DailyStats(ctx context.Context, symbol string) (types.DailyStats, error) {
	var out ticker24hr
	err := c.call(ctx, c.publicTimeout, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("symbol", symbol).SetResult(&out).Get("/api/v3/ticker/24hr")
	})
	if err != nil {
		return types.DailyStats{}, fmt.Errorf("24h ticker %s: %w", symbol, err)
	}
	return types.DailyStats{
		LastPrice:   out.LastPrice,
		High:        out.HighPrice,
		Low:         out.LowPrice,
		ChangePct:   out.PriceChangePercent,
		Volume:      out.Volume,
		QuoteVolume: out.QuoteVolume,
	}, nil
}

// Klines returns up to limit candles for interval, oldest first.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	var raw [][]any
	err := c.call(ctx, c.publicTimeout, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParams(map[string]string{
			"symbol":   symbol,
			"interval": interval,
			"limit":    strconv.Itoa(limit),
		}).SetResult(&raw).Get("/api/v3/klines")
	})
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}
	candles := make([]types.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		candles = append(candles, types.Candle{
			Ts:    int64(parseFloat(k[0])),
			Open:  parseFloat(k[1]),
			High:  parseFloat(k[2]),
			Low:   parseFloat(k[3]),
			Close: parseFloat(k[4]),
			Vol:   parseFloat(k[5]),
		})
	}
	return candles, nil
}

// Indicators computes the indicator set for tf from the latest klines.
func (c *Client) Indicators(ctx context.Context, symbol string, tf types.Timeframe) (types.IndicatorSet, error) {
	candles, ok := c.candles.get(symbol, string(tf), c.now())
	if !ok {
		var err error
		candles, err = c.Klines(ctx, symbol, string(tf), c.klineLimit)
		if err != nil {
			return types.IndicatorSet{}, err
		}
		if len(candles) == 0 {
			return types.IndicatorSet{}, fmt.Errorf("klines %s %s: no candles", symbol, tf)
		}
		c.candles.put(symbol, string(tf), candles, c.now())
	}
	return Compute(candles, c.params), nil
}

// Balance returns free plus locked USDT.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	query, err := c.signed(nil)
	if err != nil {
		return 0, err
	}
	var out account
	err = c.call(ctx, c.signedTimeout, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("X-MBX-APIKEY", c.apiKey).SetResult(&out).Get("/api/v3/account?" + query)
	})
	if err != nil {
		return 0, fmt.Errorf("account: %w", err)
	}
	for _, b := range out.Balances {
		if b.Asset == quoteAsset {
			return b.Free + b.Locked, nil
		}
	}
	return 0, nil
}

// PlaceOrder sends a MARKET order for req.Qty base units.
func (c *Client) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if req.Qty <= 0 {
		return types.OrderResp{}, ErrInvalidQuantity
	}
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", "MARKET")
	params.Set("quantity", decimal.NewFromFloat(req.Qty).String())
	params.Set("newClientOrderId", ClientOrderID())
	query, err := c.signed(params)
	if err != nil {
		return types.OrderResp{}, err
	}

	var out orderResponse
	err = c.call(ctx, c.signedTimeout, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("X-MBX-APIKEY", c.apiKey).SetResult(&out).Post("/api/v3/order?" + query)
	})
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("order %s %s: %w", req.Side, req.Symbol, err)
	}
	return types.OrderResp{
		OrderID: strconv.FormatInt(out.OrderID, 10),
		Status:  out.Status,
		Message: out.ClientOrderID,
		Filled:  out.ExecutedQty,
	}, nil
}

// ClientOrderID is a fresh idempotency key within the exchange's 36 char
// limit.
func ClientOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func parseFloat(v any) float64 {
	switch x := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	case float64:
		return x
	default:
		return 0
	}
}
