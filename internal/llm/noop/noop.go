package noop

import (
	"context"

	"llm-spot-trader/internal/logger"
)

// Advisor is used when no language model is configured. Its empty reply
// parses as hold.
type Advisor struct{}

func New() *Advisor {
	return &Advisor{}
}

func (a *Advisor) Ask(ctx context.Context, prompt string) (string, error) {
	logger.Debug(ctx, "Noop advisor called - reply parses as hold", "prompt_chars", len(prompt))
	return "", nil
}
