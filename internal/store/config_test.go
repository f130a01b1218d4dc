package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "mode: DRY_RUN\n"))
	require.NoError(t, err)

	assert.Equal(t, 2.0, cfg.Trading.RiskPct)
	assert.Equal(t, 3, cfg.Trading.MaxPositions)
	assert.Equal(t, 120, cfg.Trading.ScanIntervalSec)
	assert.Equal(t, 7, cfg.Trading.MinConfidence)
	assert.Equal(t, 3.0, cfg.Trading.TakeProfitPct)
	assert.Equal(t, -2.0, cfg.Trading.StopLossPct)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", cfg.LLM.Model)
	assert.Equal(t, 800, cfg.LLM.MaxTokens)
	assert.Equal(t, DefaultUniverse, cfg.Universe)
	assert.Equal(t, 500, cfg.History.SampleCap)
	assert.Equal(t, 400, cfg.History.SampleTrim)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
mode: LIVE
universe: [BTCUSDT, SOLUSDT]
trading:
  risk_pct: 5
  scan_interval_sec: 30
precision:
  default: 2
  per_symbol:
    SOLUSDT: 1
`))
	require.NoError(t, err)

	assert.True(t, cfg.Live())
	assert.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, cfg.Universe)
	assert.Equal(t, 5.0, cfg.Trading.RiskPct)
	assert.Equal(t, 60*time.Second, cfg.ScanInterval(), "interval is floored at the minimum")
	assert.Equal(t, 1, cfg.QuantityPrecision("SOLUSDT"))
	assert.Equal(t, 2, cfg.QuantityPrecision("BTCUSDT"))
}

func TestLoadConfigRejectsInvalidMode(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "mode: PAPER\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"positive stop loss", func(c *Config) { c.Trading.StopLossPct = 2 }, "stop_loss_pct"},
		{"risk above 100", func(c *Config) { c.Trading.RiskPct = 150 }, "risk_pct"},
		{"confidence above 10", func(c *Config) { c.Trading.MinConfidence = 11 }, "min_confidence"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "GEMINI" }, "llm.provider"},
		{"trim above cap", func(c *Config) { c.History.SampleTrim = 600 }, "sample_trim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestQuantityPrecisionDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, 5, c.QuantityPrecision("BTCUSDT"))
	assert.Equal(t, 4, c.QuantityPrecision("ETHUSDT"))
	assert.Equal(t, 3, c.QuantityPrecision("DOGEUSDT"))
}

func TestMissingCredentials(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"OPENROUTER_API_KEY"}, c.MissingCredentials())

	c.Mode = "LIVE"
	c.Credentials.OpenRouterKey = "k"
	assert.Equal(t, []string{"BINANCE_API_KEY", "BINANCE_API_SECRET"}, c.MissingCredentials())

	c.Credentials.BinanceKey = "a"
	c.Credentials.BinanceSecret = "b"
	assert.Empty(t, c.MissingCredentials())
	assert.True(t, c.Credentials.HasExchange())
}
