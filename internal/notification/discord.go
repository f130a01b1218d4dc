package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"llm-spot-trader/internal/types"
)

const (
	discordTitleMax = 256
	discordDescMax  = 4096
)

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Discord posts one embed per notification to a webhook.
type Discord struct {
	client  *resty.Client
	webhook string
	now     func() time.Time
}

func NewDiscord(webhook string, timeout time.Duration) *Discord {
	return &Discord{
		client:  resty.New().SetTimeout(timeout),
		webhook: webhook,
		now:     time.Now,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, title, body string, sev types.Severity) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(discordPayload{Embeds: []discordEmbed{{
			Title:       truncate(title, discordTitleMax),
			Description: truncate(body, discordDescMax),
			Color:       int(sev),
			Timestamp:   d.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		}}}).
		Post(d.webhook)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode())
	}
	return nil
}
