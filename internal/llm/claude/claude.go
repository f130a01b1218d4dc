package claude

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"llm-spot-trader/internal/store"
	"llm-spot-trader/internal/trace"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-sonnet-latest"
	apiVersion     = "2023-06-01"
)

// Advisor calls the Anthropic Messages API directly.
type Advisor struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker

	apiKey      string
	model       string
	system      string
	maxTokens   int
	temperature float32
}

func New(cfg *store.Config) *Advisor {
	base := cfg.LLM.BaseURL
	// If you use a proxy, set the endpoint via CLAUDE_API_ENDPOINT
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
		base = ep
	}
	if base == "" {
		base = DefaultBaseURL
	}
	model := cfg.LLM.Model
	// OpenRouter ids carry a vendor prefix the direct API does not accept.
	if model == "" || strings.Contains(model, "/") {
		model = DefaultModel
	}
	return &Advisor{
		client: resty.New().
			SetBaseURL(strings.TrimRight(base, "/")).
			SetTimeout(time.Duration(cfg.LLM.TimeoutSec) * time.Second).
			SetHeader("anthropic-version", apiVersion).
			SetHeader("Content-Type", "application/json"),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "claude",
			Timeout: 2 * time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
		apiKey:      cfg.Credentials.ClaudeKey,
		model:       model,
		system:      cfg.LLM.System,
		maxTokens:   cfg.LLM.MaxTokens,
		temperature: cfg.LLM.Temperature,
	}
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Ask returns the concatenated text blocks of the reply.
func (a *Advisor) Ask(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	if a.apiKey == "" {
		return "", errors.New("CLAUDE_API_KEY missing")
	}

	out, err := a.breaker.Execute(func() (any, error) {
		var r messagesResponse
		resp, err := a.client.R().
			SetContext(ctx).
			SetHeader("x-api-key", a.apiKey).
			SetBody(messagesRequest{
				Model:       a.model,
				System:      a.system,
				Messages:    []message{{Role: "user", Content: prompt}},
				MaxTokens:   a.maxTokens,
				Temperature: a.temperature,
			}).
			SetResult(&r).
			SetError(&r).
			Post("/v1/messages")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			if r.Error != nil {
				return nil, fmt.Errorf("claude http %d: %s: %s", resp.StatusCode(), r.Error.Type, r.Error.Message)
			}
			return nil, fmt.Errorf("claude http %d", resp.StatusCode())
		}
		var b strings.Builder
		for _, c := range r.Content {
			if c.Type == "text" {
				b.WriteString(c.Text)
			}
		}
		return strings.TrimSpace(b.String()), nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
