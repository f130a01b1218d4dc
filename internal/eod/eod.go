package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"llm-spot-trader/internal/tradelog"
)

type eodSummarizer struct {
	log *tradelog.FileLog
	now func() time.Time
}

func (s *eodSummarizer) csvPath(t time.Time) string {
	return filepath.Join(s.log.Dir(), "eod", t.UTC().Format("2006-01-02")+".csv")
}

// SummarizeDay aggregates the fills of the UTC day containing t into a CSV.
// It returns "" with no error when there were no fills.
func (s *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	f, err := os.Open(s.log.TradeFile(t))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	aggs := map[string]*aggRow{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var tl tradeLine
		if err := json.Unmarshal(sc.Bytes(), &tl); err != nil {
			continue
		}
		row := aggs[tl.Symbol]
		if row == nil {
			row = &aggRow{Symbol: tl.Symbol}
			aggs[tl.Symbol] = row
		}
		switch tl.Side {
		case "BUY":
			row.BuyQty += tl.Qty
			row.BuyValue += tl.Qty * tl.Price
		case "SELL":
			row.SellQty += tl.Qty
			row.SellValue += tl.Qty * tl.Price
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(aggs) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := s.csvPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"symbol", "buy_qty", "buy_avg", "sell_qty", "sell_avg", "realized_pnl", "gross_buy_value", "gross_sell_value"}
	if err := w.Write(headers); err != nil {
		return "", err
	}
	var totalBuy, totalSell, totalPnL float64
	for _, k := range keys {
		r := aggs[k]
		var buyAvg, sellAvg float64
		if r.BuyQty > 0 {
			buyAvg = r.BuyValue / r.BuyQty
		}
		if r.SellQty > 0 {
			sellAvg = r.SellValue / r.SellQty
		}
		if matched := math.Min(r.BuyQty, r.SellQty); matched > 0 {
			r.RealizedPnL = matched * (sellAvg - buyAvg)
		}
		rec := []string{
			r.Symbol,
			qty(r.BuyQty), fmt.Sprintf("%.4f", buyAvg),
			qty(r.SellQty), fmt.Sprintf("%.4f", sellAvg),
			fmt.Sprintf("%.2f", r.RealizedPnL), fmt.Sprintf("%.2f", r.BuyValue), fmt.Sprintf("%.2f", r.SellValue),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		totalBuy += r.BuyValue
		totalSell += r.SellValue
		totalPnL += r.RealizedPnL
	}
	if err := w.Write([]string{"TOTAL", "", "", "", "", fmt.Sprintf("%.2f", totalPnL), fmt.Sprintf("%.2f", totalBuy), fmt.Sprintf("%.2f", totalSell)}); err != nil {
		return "", err
	}
	w.Flush()
	return outPath, w.Error()
}

func (s *eodSummarizer) SummarizeToday() (string, error) { return s.SummarizeDay(s.now()) }

// PendingDay reports the previous UTC day when it has fills but no summary
// yet, or only a summary older than its last fill (a shutdown snapshot).
func (s *eodSummarizer) PendingDay() (time.Time, bool) {
	now := s.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	trades, err := os.Stat(s.log.TradeFile(day))
	if err != nil {
		return day, false
	}
	summary, err := os.Stat(s.csvPath(day))
	if errors.Is(err, os.ErrNotExist) {
		return day, true
	}
	return day, err == nil && summary.ModTime().Before(trades.ModTime())
}

// qty renders a base-asset quantity without float noise.
func qty(v float64) string {
	return decimal.NewFromFloat(v).Round(8).String()
}
