package ta

import "math"

func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(n)
}

// RSI uses Wilder smoothing over the whole series, seeded with the first
// period's simple averages.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n))
}

func Bollinger(closes []float64, n int, k float64) (mid, up, low float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	up = mid + k*sd
	low = mid - k*sd
	return
}

func trueRanges(highs, lows, closes []float64) []float64 {
	trs := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		trs[i] = math.Max(tr1, math.Max(tr2, tr3))
	}
	return trs
}

func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) || period <= 0 {
		return math.NaN()
	}
	if len(closes) < period+1 {
		return math.NaN()
	}
	trs := trueRanges(highs, lows, closes)
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += trs[i]
	}
	return sum / float64(period)
}

// EMASeries returns the exponential moving average aligned with vals.
// Entries before the seed (index n-1) are NaN.
func EMASeries(vals []float64, n int) []float64 {
	out := make([]float64, len(vals))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(vals) < n || n <= 0 {
		return out
	}
	seed := 0.0
	for i := 0; i < n; i++ {
		seed += vals[i]
	}
	out[n-1] = seed / float64(n)
	k := 2.0 / float64(n+1)
	for i := n; i < len(vals); i++ {
		out[i] = vals[i]*k + out[i-1]*(1-k)
	}
	return out
}

func EMA(vals []float64, n int) float64 {
	s := EMASeries(vals, n)
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

// MACD returns the MACD line, its signal line and the histogram.
func MACD(closes []float64, fast, slow, signal int) (macd, sig, hist float64) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal-1 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	f := EMASeries(closes, fast)
	s := EMASeries(closes, slow)
	line := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		line = append(line, f[i]-s[i])
	}
	macd = line[len(line)-1]
	sig = EMA(line, signal)
	hist = macd - sig
	return
}

// StochK is the smoothed %K oscillator.
func StochK(highs, lows, closes []float64, period, smooth int) float64 {
	if period <= 0 || smooth <= 0 || len(closes) < period+smooth-1 {
		return math.NaN()
	}
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return math.NaN()
	}
	raw := make([]float64, 0, smooth)
	for end := len(closes) - smooth + 1; end <= len(closes); end++ {
		hh, ll := highs[end-period], lows[end-period]
		for i := end - period; i < end; i++ {
			hh = math.Max(hh, highs[i])
			ll = math.Min(ll, lows[i])
		}
		if hh == ll {
			raw = append(raw, 50)
			continue
		}
		raw = append(raw, (closes[end-1]-ll)/(hh-ll)*100)
	}
	return SMA(raw, smooth)
}

// ADX is Wilder's average directional index.
func ADX(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if period <= 0 || n < 2*period+1 || len(highs) != n || len(lows) != n {
		return math.NaN()
	}
	trs := trueRanges(highs, lows, closes)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	var trS, pS, mS float64
	for i := 1; i <= period; i++ {
		trS += trs[i]
		pS += plusDM[i]
		mS += minusDM[i]
	}
	p := float64(period)
	dx := func() float64 {
		if trS == 0 {
			return 0
		}
		pdi := 100 * pS / trS
		mdi := 100 * mS / trS
		if pdi+mdi == 0 {
			return 0
		}
		return 100 * math.Abs(pdi-mdi) / (pdi + mdi)
	}

	dxs := []float64{dx()}
	for i := period + 1; i < n; i++ {
		trS = trS - trS/p + trs[i]
		pS = pS - pS/p + plusDM[i]
		mS = mS - mS/p + minusDM[i]
		dxs = append(dxs, dx())
	}

	adx := 0.0
	for i := 0; i < period; i++ {
		adx += dxs[i]
	}
	adx /= p
	for i := period; i < len(dxs); i++ {
		adx = (adx*(p-1) + dxs[i]) / p
	}
	return adx
}
