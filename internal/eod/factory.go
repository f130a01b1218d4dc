package eod

import (
	"time"

	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/tradelog"
)

// NewSummarizer reads fills written by log.
func NewSummarizer(log *tradelog.FileLog) interfaces.EodSummarizer {
	return &eodSummarizer{log: log, now: func() time.Time { return time.Now().UTC() }}
}
