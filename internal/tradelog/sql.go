package tradelog

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"llm-spot-trader/internal/logger"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Event is a row of the event_log table.
type Event struct {
	ID       int64     `db:"id" json:"id"`
	Ts       time.Time `db:"ts" json:"ts"`
	Category string    `db:"category" json:"category"`
	Message  string    `db:"message" json:"message"`
}

// SQLEventLog mirrors the activity feed into Postgres.
type SQLEventLog struct {
	db      *sqlx.DB
	table   string
	timeout time.Duration
}

// OpenSQL connects to dsn with the postgres driver.
func OpenSQL(dsn, table string, timeout time.Duration) (*SQLEventLog, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open event log db: %w", err)
	}
	l, err := NewSQLEventLog(db, table, timeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func NewSQLEventLog(db *sqlx.DB, table string, timeout time.Duration) (*SQLEventLog, error) {
	if table == "" {
		table = "event_log"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid event log table name %q", table)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SQLEventLog{db: db, table: table, timeout: timeout}, nil
}

func (l *SQLEventLog) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	_, err := l.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+l.table+` (
		id BIGSERIAL PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		category TEXT NOT NULL,
		message TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", l.table, err)
	}
	return nil
}

// Record implements interfaces.EventLog. Insert failures are logged only.
func (l *SQLEventLog) Record(ctx context.Context, message, category string) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO `+l.table+` (ts, category, message) VALUES ($1, $2, $3)`,
		time.Now().UTC(), category, message)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to insert event", err, "category", category)
	}
}

// Recent returns up to limit events, newest first.
func (l *SQLEventLog) Recent(ctx context.Context, limit int) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	var out []Event
	err := l.db.SelectContext(ctx, &out,
		`SELECT id, ts, category, message FROM `+l.table+` ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", l.table, err)
	}
	return out, nil
}

func (l *SQLEventLog) Close() error { return l.db.Close() }
