package eodobs

import (
	"context"
	"time"

	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/trace"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
	}
}

func (oes *observableEodSummarizer) SummarizeDay(t time.Time) (string, error) {
	ctx, span := trace.StartSpan(context.Background(), "eod.SummarizeDay")
	defer span.End()

	date := t.UTC().Format("2006-01-02")
	logger.InfoSkip(ctx, 1, "Starting daily summary", "date", date)

	csvPath, err := oes.summarizer.SummarizeDay(t)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Daily summary failed", err, "date", date)
		return "", err
	}
	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No fills for daily summary", "date", date)
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "Daily summary written", "date", date, "csv_path", csvPath)
	return csvPath, nil
}

func (oes *observableEodSummarizer) SummarizeToday() (string, error) {
	ctx, span := trace.StartSpan(context.Background(), "eod.SummarizeToday")
	defer span.End()

	csvPath, err := oes.summarizer.SummarizeToday()
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Today's summary failed", err)
		return "", err
	}
	logger.InfoSkip(ctx, 1, "Today's summary finished", "csv_path", csvPath)
	return csvPath, nil
}

func (oes *observableEodSummarizer) PendingDay() (time.Time, bool) {
	ctx, span := trace.StartSpan(context.Background(), "eod.PendingDay")
	defer span.End()

	day, pending := oes.summarizer.PendingDay()
	logger.DebugSkip(ctx, 1, "Daily summary check",
		"day", day.Format("2006-01-02"),
		"pending", pending,
	)
	return day, pending
}
