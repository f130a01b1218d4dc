package llmobs

import (
	"context"
	"time"

	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/metrics"
	"llm-spot-trader/internal/trace"
)

// observableAdvisor wraps an Advisor with logging, tracing and latency metrics
type observableAdvisor struct {
	advisor  interfaces.Advisor
	provider string
	metrics  *metrics.Registry
}

// Compile-time interface check
var _ interfaces.Advisor = (*observableAdvisor)(nil)

// Wrap wraps an advisor with observability middleware
func Wrap(advisor interfaces.Advisor, provider string, m *metrics.Registry) interfaces.Advisor {
	return &observableAdvisor{advisor: advisor, provider: provider, metrics: m}
}

func (oa *observableAdvisor) Ask(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Ask")
	defer span.End()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting advisory",
		"provider", oa.provider,
		"prompt_chars", len(prompt),
	)

	start := time.Now()
	reply, err := oa.advisor.Ask(ctx, prompt)
	elapsed := time.Since(start)
	oa.metrics.ObserveAdvisoryLatency(oa.provider, elapsed, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Advisory request failed", err,
			"provider", oa.provider,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Advisory received",
		"provider", oa.provider,
		"reply_chars", len(reply),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return reply, nil
}
