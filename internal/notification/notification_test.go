package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-spot-trader/internal/store"
	"llm-spot-trader/internal/types"
)

func TestDiscordEmbed(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, time.Second)
	d.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 15, 0, time.FixedZone("X", 3*3600)) }

	long := strings.Repeat("ş", 5000)
	require.NoError(t, d.Send(context.Background(), strings.Repeat("T", 300), long, types.SeverityWarning))
	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Len(t, []rune(e.Title), 256)
	assert.Len(t, []rune(e.Description), 4096)
	assert.Equal(t, 16776960, e.Color)
	assert.Equal(t, "2024-05-01T06:30:15.000Z", e.Timestamp)
}

func TestTelegramMessage(t *testing.T) {
	var got telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "123:abc", "-10042", time.Second)
	require.NoError(t, tg.Send(context.Background(), "BUY BTCUSDT", "qty <0.001>", types.SeveritySuccess))
	assert.Equal(t, "-10042", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Equal(t, "<b>BUY BTCUSDT</b>\n\nqty &lt;0.001&gt;", got.Text)
}

func TestTelegramNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	err := NewTelegram(srv.URL, "t", "c", time.Second).Send(context.Background(), "a", "b", types.SeverityInfo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

type stubChannel struct {
	name  string
	err   error
	calls int
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Send(context.Context, string, string, types.Severity) error {
	s.calls++
	return s.err
}

func TestManagerSwallowsFailures(t *testing.T) {
	bad := &stubChannel{name: "bad", err: errors.New("timeout")}
	good := &stubChannel{name: "good"}
	m := NewManager(bad, good)

	assert.NotPanics(t, func() { m.Notify(context.Background(), "Bot started", "", types.SeveritySuccess) })
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls)
}

func TestFromConfig(t *testing.T) {
	cfg := store.Default()
	assert.Equal(t, 0, FromConfig(cfg).Channels())

	cfg.Credentials.DiscordWebhook = "https://discord.com/api/webhooks/1/x"
	cfg.Credentials.TelegramToken = "t"
	assert.Equal(t, 1, FromConfig(cfg).Channels(), "telegram needs a chat id")

	cfg.Credentials.TelegramChatID = "c"
	assert.Equal(t, 2, FromConfig(cfg).Channels())

	cfg.Notify.MuteDiscord = true
	assert.Equal(t, 1, FromConfig(cfg).Channels())
}
