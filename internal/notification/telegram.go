package notification

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"llm-spot-trader/internal/types"
)

const telegramTextMax = 4096

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Telegram sends HTML messages through the Bot API.
type Telegram struct {
	client *resty.Client
	chatID string
}

func NewTelegram(apiBase, token, chatID string, timeout time.Duration) *Telegram {
	return &Telegram{
		client: resty.New().
			SetBaseURL(strings.TrimRight(apiBase, "/") + "/bot" + token).
			SetTimeout(timeout),
		chatID: chatID,
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, title, body string, _ types.Severity) error {
	text := "<b>" + html.EscapeString(title) + "</b>\n\n" + html.EscapeString(body)
	var r telegramResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(telegramMessage{ChatID: t.chatID, Text: truncate(text, telegramTextMax), ParseMode: "HTML"}).
		SetResult(&r).
		SetError(&r).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if resp.IsError() || !r.OK {
		return fmt.Errorf("telegram sendMessage status %d: %s", resp.StatusCode(), r.Description)
	}
	return nil
}
