package tradelog

import (
	"context"

	"llm-spot-trader/internal/interfaces"
)

type multi []interfaces.EventLog

// Multi records every event to each non-nil log in order.
func Multi(logs ...interfaces.EventLog) interfaces.EventLog {
	var m multi
	for _, l := range logs {
		if l != nil {
			m = append(m, l)
		}
	}
	return m
}

func (m multi) Record(ctx context.Context, message, category string) {
	for _, l := range m {
		l.Record(ctx, message, category)
	}
}
