package notification

import (
	"context"
	"time"

	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/store"
	"llm-spot-trader/internal/types"
)

// Channel delivers one message to one external service.
type Channel interface {
	Name() string
	Send(ctx context.Context, title, body string, sev types.Severity) error
}

// Manager fans a notification out to every configured channel. Delivery
// failures are logged and never returned.
type Manager struct {
	channels []Channel
}

var _ interfaces.Notifier = (*Manager)(nil)

func NewManager(channels ...Channel) *Manager {
	return &Manager{channels: channels}
}

// FromConfig enables each channel whose credentials are present.
func FromConfig(cfg *store.Config) *Manager {
	timeout := time.Duration(cfg.Notify.TimeoutSec) * time.Second
	var chans []Channel
	if cfg.Credentials.DiscordWebhook != "" && !cfg.Notify.MuteDiscord {
		chans = append(chans, NewDiscord(cfg.Credentials.DiscordWebhook, timeout))
	}
	if cfg.Credentials.TelegramToken != "" && cfg.Credentials.TelegramChatID != "" && !cfg.Notify.MuteTelegram {
		chans = append(chans, NewTelegram(cfg.Notify.TelegramAPI, cfg.Credentials.TelegramToken, cfg.Credentials.TelegramChatID, timeout))
	}
	return NewManager(chans...)
}

func (m *Manager) Channels() int { return len(m.channels) }

func (m *Manager) Notify(ctx context.Context, title, body string, sev types.Severity) {
	for _, ch := range m.channels {
		if err := ch.Send(ctx, title, body, sev); err != nil {
			logger.Warn(ctx, "Notification not delivered",
				"channel", ch.Name(),
				"title", title,
				"error", err.Error(),
			)
		}
	}
}

// truncate caps s at max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
