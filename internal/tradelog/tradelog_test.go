package tradelog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)

func newTestLog(t *testing.T) *FileLog {
	l := NewFileLog(t.TempDir())
	l.now = func() time.Time { return fixed }
	return l
}

func readLines(t *testing.T, p string) []string {
	t.Helper()
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}

func TestAppendWritesUTCDailyFile(t *testing.T) {
	l := newTestLog(t)
	require.NoError(t, l.Append(Entry{Symbol: "BTCUSDT", Side: "BUY", Qty: 0.00123, Price: 67000, OrderID: "SIM-1", Reason: "advisory", Confidence: 8}))
	require.NoError(t, l.Append(Entry{Symbol: "BTCUSDT", Side: "SELL", Qty: 0.00123, Price: 68000, OrderID: "SIM-2", Reason: "take-profit"}))

	p := filepath.Join(l.Dir(), "2024-05-01.txt")
	assert.Equal(t, p, l.TradeFile(fixed))
	lines := readLines(t, p)
	require.Len(t, lines, 2)

	var e Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, "2024-05-01 23:30:00", e.Time)
	assert.Equal(t, 0.00123, e.Qty)
	assert.Equal(t, 8, e.Confidence)
}

func TestRecordAndDecisionFiles(t *testing.T) {
	l := newTestLog(t)
	l.Record(context.Background(), "Bot started", "system")
	require.NoError(t, l.AppendDecision(DecisionEntry{Symbol: "ETHUSDT", Kind: "entry", Action: "HOLD", Confidence: 5}))

	events := readLines(t, filepath.Join(l.Dir(), "events", "2024-05-01.txt"))
	require.Len(t, events, 1)
	var ev EventEntry
	require.NoError(t, json.Unmarshal([]byte(events[0]), &ev))
	assert.Equal(t, EventEntry{Time: "2024-05-01 23:30:00", Category: "system", Message: "Bot started"}, ev)

	assert.Len(t, readLines(t, filepath.Join(l.Dir(), "decisions", "2024-05-01.txt")), 1)
}

func TestCompressOlder(t *testing.T) {
	l := newTestLog(t)
	require.NoError(t, l.Append(Entry{Symbol: "SOLUSDT", Side: "BUY", Qty: 1, Price: 150}))
	p := l.TradeFile(fixed)
	old := fixed.AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(p, old, old))

	require.NoError(t, l.CompressOlder(7))
	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(p + ".gz")
	assert.NoError(t, err)

	assert.NoError(t, l.CompressOlder(0))
}

type recorder struct{ got []string }

func (r *recorder) Record(_ context.Context, message, category string) {
	r.got = append(r.got, category+":"+message)
}

func TestMultiSkipsNil(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi(a, nil, b).Record(context.Background(), "Bought BTCUSDT", "trade")
	assert.Equal(t, []string{"trade:Bought BTCUSDT"}, a.got)
	assert.Equal(t, a.got, b.got)
}
