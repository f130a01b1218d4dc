package openrouter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"llm-spot-trader/internal/store"
	"llm-spot-trader/internal/trace"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

var ErrNoChoices = errors.New("openrouter: no choices in response")

// Advisor sends prompts to an OpenAI-compatible chat completions endpoint.
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
	if base == "" {
		base = DefaultBaseURL
	}
	return &Advisor{
		client: resty.New().
			SetBaseURL(strings.TrimRight(base, "/")).
			SetTimeout(time.Duration(cfg.LLM.TimeoutSec) * time.Second).
			SetHeader("Content-Type", "application/json"),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "openrouter",
			Timeout: 2 * time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
		apiKey:      cfg.Credentials.OpenRouterKey,
		model:       cfg.LLM.Model,
		system:      cfg.LLM.System,
		maxTokens:   cfg.LLM.MaxTokens,
		temperature: cfg.LLM.Temperature,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Ask returns the first choice's content for prompt.
func (a *Advisor) Ask(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "openrouter-api-call")
	defer span.End()

	if a.apiKey == "" {
		return "", errors.New("OPENROUTER_API_KEY missing")
	}

	msgs := make([]message, 0, 2)
	if a.system != "" {
		msgs = append(msgs, message{Role: "system", Content: a.system})
	}
	msgs = append(msgs, message{Role: "user", Content: prompt})

	out, err := a.breaker.Execute(func() (any, error) {
		var r chatResponse
		resp, err := a.client.R().
			SetContext(ctx).
			SetAuthToken(a.apiKey).
			SetBody(chatRequest{Model: a.model, Messages: msgs, MaxTokens: a.maxTokens, Temperature: a.temperature}).
			SetResult(&r).
			SetError(&r).
			Post("/chat/completions")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			if r.Error != nil && r.Error.Message != "" {
				return nil, fmt.Errorf("openrouter http %d: %s", resp.StatusCode(), r.Error.Message)
			}
			return nil, fmt.Errorf("openrouter http %d", resp.StatusCode())
		}
		if len(r.Choices) == 0 {
			return nil, ErrNoChoices
		}
		return strings.TrimSpace(r.Choices[0].Message.Content), nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
