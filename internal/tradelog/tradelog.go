package tradelog

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"llm-spot-trader/internal/logger"
)

const timeLayout = "2006-01-02 15:04:05"

// Entry is one fill. Daily files hold one JSON entry per line.
type Entry struct {
	Time, Symbol, Side, OrderID, Reason string
	Qty                                 float64
	Price                               float64
	Confidence                          int
	Extra                               map[string]any `json:"extra,omitempty"`
}

// DecisionEntry records a parsed advisory, acted on or not.
type DecisionEntry struct {
	Time, Symbol, Kind, Action, Rationale string
	Confidence                            int
	Price                                 float64
	Extra                                 map[string]any `json:"extra,omitempty"`
}

// EventEntry is a line of the human-readable activity feed.
type EventEntry struct {
	Time     string `json:"time"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// FileLog appends JSON lines under dir, one file per UTC day:
//
//	<dir>/2024-05-01.txt            fills
//	<dir>/decisions/2024-05-01.txt  advisories
//	<dir>/events/2024-05-01.txt     activity feed
type FileLog struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func LogDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func NewFileLog(dir string) *FileLog {
	if dir == "" {
		dir = LogDir()
	}
	return &FileLog{dir: dir, now: func() time.Time { return time.Now().UTC() }}
}

func (l *FileLog) Dir() string { return l.dir }

// TradeFile is the fills file for the UTC day containing t.
func (l *FileLog) TradeFile(t time.Time) string {
	return filepath.Join(l.dir, t.UTC().Format("2006-01-02")+".txt")
}

func (l *FileLog) subFile(sub string, t time.Time) string {
	return filepath.Join(l.dir, sub, t.UTC().Format("2006-01-02")+".txt")
}

func (l *FileLog) Append(e Entry) error {
	now := l.now()
	e.Time = now.Format(timeLayout)
	return l.write(l.TradeFile(now), e)
}

func (l *FileLog) AppendDecision(e DecisionEntry) error {
	now := l.now()
	e.Time = now.Format(timeLayout)
	return l.write(l.subFile("decisions", now), e)
}

// Record implements interfaces.EventLog. Write failures are logged only.
func (l *FileLog) Record(ctx context.Context, message, category string) {
	now := l.now()
	e := EventEntry{Time: now.Format(timeLayout), Category: category, Message: message}
	if err := l.write(l.subFile("events", now), e); err != nil {
		logger.ErrorWithErr(ctx, "Failed to append event", err, "category", category)
	}
}

func (l *FileLog) write(p string, v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips daily files last modified before the retention window.
func (l *FileLog) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := l.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(l.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// already compressed on an earlier pass
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err == nil {
			_ = os.Remove(p)
		}
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	_, cerr := io.Copy(gw, in)
	gerr := gw.Close()
	ferr := out.Close()
	for _, e := range []error{cerr, gerr, ferr} {
		if e != nil {
			_ = os.Remove(dst)
			return e
		}
	}
	return nil
}
