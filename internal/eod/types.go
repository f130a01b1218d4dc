package eod

// tradeLine is one fill as written by tradelog.FileLog.Append.
type tradeLine struct {
	Time       string
	Symbol     string
	Side       string // "BUY" or "SELL"
	Qty        float64
	Price      float64
	OrderID    string
	Reason     string // advisory, stop-loss, take-profit, partial
	Confidence int
}

// aggRow is the per-symbol aggregate of one day's fills.
type aggRow struct {
	Symbol      string
	BuyQty      float64
	BuyValue    float64 // sum of qty * price over buys
	SellQty     float64
	SellValue   float64
	RealizedPnL float64 // matched quantity times (sell avg - buy avg)
}
