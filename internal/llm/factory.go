package llm

import (
	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/llm/claude"
	"llm-spot-trader/internal/llm/llmobs"
	"llm-spot-trader/internal/llm/noop"
	"llm-spot-trader/internal/llm/openrouter"
	"llm-spot-trader/internal/metrics"
	"llm-spot-trader/internal/store"
)

// NewAdvisor picks the language model backend named by llm.provider and
// wraps it with observability.
func NewAdvisor(cfg *store.Config, m *metrics.Registry) interfaces.Advisor {
	var advisor interfaces.Advisor
	switch cfg.LLM.Provider {
	case "CLAUDE":
		advisor = claude.New(cfg)
	case "NOOP":
		advisor = noop.New()
	default:
		advisor = openrouter.New(cfg)
	}
	return llmobs.Wrap(advisor, cfg.LLM.Provider, m)
}
