package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// Opt is a float that may be absent. The zero value is absent.
type Opt struct {
	Value float64
	Valid bool
}

func Some(v float64) Opt { return Opt{Value: v, Valid: true} }

func None() Opt { return Opt{} }

// Get returns the value and whether it is present.
func (o Opt) Get() (float64, bool) { return o.Value, o.Valid }

// Or returns the value, or def when absent.
func (o Opt) Or(def float64) float64 {
	if !o.Valid {
		return def
	}
	return o.Value
}

func (o Opt) String() string {
	if !o.Valid {
		return "—"
	}
	return strconv.FormatFloat(o.Value, 'f', -1, 64)
}

func (o Opt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Opt) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Opt{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

type Candle struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

// DailyStats is the rolling 24h ticker for a symbol.
type DailyStats struct {
	LastPrice   float64 `json:"last_price"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	ChangePct   float64 `json:"change_pct"`
	Volume      float64 `json:"volume"`
	QuoteVolume float64 `json:"quote_volume"`
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderReq struct {
	Symbol string
	Side   Side
	Qty    float64
	Tag    string
}

type OrderResp struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Message string  `json:"message,omitempty"`
	Filled  float64 `json:"filled,omitempty"`
}

// Severity doubles as the embed colour used by chat notifiers.
type Severity int

const (
	SeveritySuccess Severity = 3066993
	SeverityError   Severity = 15158332
	SeverityWarning Severity = 16776960
	SeverityInfo    Severity = 3447003
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

type PortfolioSample struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// ChartMarker flags a fill on the portfolio chart.
type ChartMarker struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Side  Side      `json:"side"`
}
