package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultUniverse is the fixed trading universe used when none is configured.
var DefaultUniverse = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "XRPUSDT", "SOLUSDT",
	"ADAUSDT", "DOGEUSDT", "AVAXUSDT", "LINKUSDT", "DOTUSDT",
}

type Config struct {
	Mode     string   `yaml:"mode"`
	Universe []string `yaml:"universe"`
	Exchange struct {
		BaseURL           string  `yaml:"base_url"`
		PublicTimeoutSec  int     `yaml:"public_timeout_sec"`
		SignedTimeoutSec  int     `yaml:"signed_timeout_sec"`
		RecvWindowMs      int     `yaml:"recv_window_ms"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		KlineLimit        int     `yaml:"kline_limit"`
		PaperBalanceUSDT  float64 `yaml:"paper_balance_usdt"`
	} `yaml:"exchange"`
	Trading struct {
		RiskPct             float64 `yaml:"risk_pct"`
		MaxPositions        int     `yaml:"max_positions"`
		ScanIntervalSec     int     `yaml:"scan_interval_sec"`
		MinIntervalSec      int     `yaml:"min_interval_sec"`
		MinConfidence       int     `yaml:"min_confidence"`
		TakeProfitPct       float64 `yaml:"take_profit_pct"`
		StopLossPct         float64 `yaml:"stop_loss_pct"`
		MinCashUSDT         float64 `yaml:"min_cash_usdt"`
		MinOrderUSDT        float64 `yaml:"min_order_usdt"`
		CandidateLimit      int     `yaml:"candidate_limit"`
		PauseBetweenCallsMs int     `yaml:"pause_between_calls_ms"`
	} `yaml:"trading"`
	Precision struct {
		Default   int            `yaml:"default"`
		PerSymbol map[string]int `yaml:"per_symbol"`
	} `yaml:"precision"`
	Indicators struct {
		RSIPeriod   int     `yaml:"rsi_period"`
		MACDFast    int     `yaml:"macd_fast"`
		MACDSlow    int     `yaml:"macd_slow"`
		MACDSignal  int     `yaml:"macd_signal"`
		StochPeriod int     `yaml:"stoch_period"`
		StochSmooth int     `yaml:"stoch_smooth"`
		BBWindow    int     `yaml:"bb_window"`
		BBStdDev    float64 `yaml:"bb_stddev"`
		ATRPeriod   int     `yaml:"atr_period"`
		ADXPeriod   int     `yaml:"adx_period"`
	} `yaml:"indicators"`
	LLM struct {
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
		TimeoutSec  int     `yaml:"timeout_sec"`
		BaseURL     string  `yaml:"base_url"`
		System      string  `yaml:"system"`
	} `yaml:"llm"`
	Notify struct {
		TimeoutSec   int    `yaml:"timeout_sec"`
		MuteDiscord  bool   `yaml:"mute_discord"`
		MuteTelegram bool   `yaml:"mute_telegram"`
		TelegramAPI  string `yaml:"telegram_api"`
	} `yaml:"notify"`
	History struct {
		SampleCap  int `yaml:"sample_cap"`
		SampleTrim int `yaml:"sample_trim"`
		MarkerCap  int `yaml:"marker_cap"`
	} `yaml:"history"`
	API struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"`
	} `yaml:"api"`
	Storage struct {
		RedisKey   string `yaml:"redis_key"`
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"storage"`
	EventLog struct {
		Table         string `yaml:"table"`
		TimeoutSec    int    `yaml:"timeout_sec"`
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"event_log"`

	Credentials Credentials `yaml:"-"`
}

// Credentials come from the environment, never from the YAML file.
type Credentials struct {
	BinanceKey     string
	BinanceSecret  string
	OpenRouterKey  string
	ClaudeKey      string
	DiscordWebhook string
	TelegramToken  string
	TelegramChatID string
	RedisURL       string
	EventLogDSN    string
}

func CredentialsFromEnv() Credentials {
	return Credentials{
		BinanceKey:     os.Getenv("BINANCE_API_KEY"),
		BinanceSecret:  os.Getenv("BINANCE_API_SECRET"),
		OpenRouterKey:  os.Getenv("OPENROUTER_API_KEY"),
		ClaudeKey:      os.Getenv("CLAUDE_API_KEY"),
		DiscordWebhook: os.Getenv("DISCORD_WEBHOOK_URL"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
		RedisURL:       os.Getenv("REDIS_URL"),
		EventLogDSN:    os.Getenv("EVENTLOG_DSN"),
	}
}

// HasExchange reports whether signed exchange calls can be made.
func (c Credentials) HasExchange() bool {
	return c.BinanceKey != "" && c.BinanceSecret != ""
}

// Live reports whether orders go to the exchange.
func (c *Config) Live() bool { return c.Mode == "LIVE" }

// MissingCredentials lists the secrets the configured mode and provider need.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Live() {
		if c.Credentials.BinanceKey == "" {
			missing = append(missing, "BINANCE_API_KEY")
		}
		if c.Credentials.BinanceSecret == "" {
			missing = append(missing, "BINANCE_API_SECRET")
		}
	}
	switch c.LLM.Provider {
	case "OPENROUTER":
		if c.Credentials.OpenRouterKey == "" {
			missing = append(missing, "OPENROUTER_API_KEY")
		}
	case "CLAUDE":
		if c.Credentials.ClaudeKey == "" {
			missing = append(missing, "CLAUDE_API_KEY")
		}
	}
	return missing
}

// QuantityPrecision returns the number of decimals an order quantity for
// symbol is rounded to. An exact symbol key wins; otherwise the longest key
// contained in the symbol (e.g. "BTC" for BTCUSDT) applies.
func (c *Config) QuantityPrecision(symbol string) int {
	if p, ok := c.Precision.PerSymbol[symbol]; ok {
		return p
	}
	keys := make([]string, 0, len(c.Precision.PerSymbol))
	for k := range c.Precision.PerSymbol {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.Contains(symbol, k) {
			return c.Precision.PerSymbol[k]
		}
	}
	return c.Precision.Default
}

// ScanInterval is the sleep between cycles, floored at MinIntervalSec.
func (c *Config) ScanInterval() time.Duration {
	sec := c.Trading.ScanIntervalSec
	if sec < c.Trading.MinIntervalSec {
		sec = c.Trading.MinIntervalSec
	}
	return time.Duration(sec) * time.Second
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Universe) == 0 {
		return errors.New("universe cannot be empty")
	}
	if c.Trading.RiskPct <= 0 || c.Trading.RiskPct > 100 {
		return fmt.Errorf("trading.risk_pct must be between 0-100, got %.2f", c.Trading.RiskPct)
	}
	if c.Trading.MaxPositions <= 0 {
		return fmt.Errorf("trading.max_positions must be positive, got %d", c.Trading.MaxPositions)
	}
	if c.Trading.MinConfidence < 0 || c.Trading.MinConfidence > 10 {
		return fmt.Errorf("trading.min_confidence must be between 0-10, got %d", c.Trading.MinConfidence)
	}
	if c.Trading.StopLossPct >= 0 {
		return fmt.Errorf("trading.stop_loss_pct must be negative, got %.2f", c.Trading.StopLossPct)
	}
	if c.Trading.TakeProfitPct <= 0 {
		return fmt.Errorf("trading.take_profit_pct must be positive, got %.2f", c.Trading.TakeProfitPct)
	}
	if c.Precision.Default < 0 {
		return fmt.Errorf("precision.default must not be negative, got %d", c.Precision.Default)
	}
	if c.History.SampleTrim > c.History.SampleCap {
		return fmt.Errorf("history.sample_trim (%d) exceeds history.sample_cap (%d)", c.History.SampleTrim, c.History.SampleCap)
	}
	switch c.LLM.Provider {
	case "OPENROUTER", "CLAUDE", "NOOP":
	default:
		return fmt.Errorf("llm.provider must be 'OPENROUTER', 'CLAUDE' or 'NOOP', got '%s'", c.LLM.Provider)
	}
	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	applyDefaults(&c)
	return &c
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)
	c.Credentials = CredentialsFromEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if len(c.Universe) == 0 {
		c.Universe = append([]string(nil), DefaultUniverse...)
	}

	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = "https://api.binance.com"
	}
	if c.Exchange.PublicTimeoutSec == 0 {
		c.Exchange.PublicTimeoutSec = 5
	}
	if c.Exchange.SignedTimeoutSec == 0 {
		c.Exchange.SignedTimeoutSec = 15
	}
	if c.Exchange.RecvWindowMs == 0 {
		c.Exchange.RecvWindowMs = 5000
	}
	if c.Exchange.RequestsPerSecond == 0 {
		c.Exchange.RequestsPerSecond = 10
	}
	if c.Exchange.Burst == 0 {
		c.Exchange.Burst = 20
	}
	if c.Exchange.KlineLimit == 0 {
		c.Exchange.KlineLimit = 250
	}
	if c.Exchange.PaperBalanceUSDT == 0 {
		c.Exchange.PaperBalanceUSDT = 1000
	}

	if c.Trading.RiskPct == 0 {
		c.Trading.RiskPct = 2
	}
	if c.Trading.MaxPositions == 0 {
		c.Trading.MaxPositions = 3
	}
	if c.Trading.ScanIntervalSec == 0 {
		c.Trading.ScanIntervalSec = 120
	}
	if c.Trading.MinIntervalSec == 0 {
		c.Trading.MinIntervalSec = 60
	}
	if c.Trading.MinConfidence == 0 {
		c.Trading.MinConfidence = 7
	}
	if c.Trading.TakeProfitPct == 0 {
		c.Trading.TakeProfitPct = 3
	}
	if c.Trading.StopLossPct == 0 {
		c.Trading.StopLossPct = -2
	}
	if c.Trading.MinCashUSDT == 0 {
		c.Trading.MinCashUSDT = 15
	}
	if c.Trading.MinOrderUSDT == 0 {
		c.Trading.MinOrderUSDT = 11
	}
	if c.Trading.CandidateLimit == 0 {
		c.Trading.CandidateLimit = 5
	}
	if c.Trading.PauseBetweenCallsMs == 0 {
		c.Trading.PauseBetweenCallsMs = 1000
	}

	if c.Precision.Default == 0 {
		c.Precision.Default = 3
	}
	if c.Precision.PerSymbol == nil {
		c.Precision.PerSymbol = map[string]int{"BTC": 5, "ETH": 4}
	}

	if c.Indicators.RSIPeriod == 0 {
		c.Indicators.RSIPeriod = 14
	}
	if c.Indicators.MACDFast == 0 {
		c.Indicators.MACDFast = 12
	}
	if c.Indicators.MACDSlow == 0 {
		c.Indicators.MACDSlow = 26
	}
	if c.Indicators.MACDSignal == 0 {
		c.Indicators.MACDSignal = 9
	}
	if c.Indicators.StochPeriod == 0 {
		c.Indicators.StochPeriod = 14
	}
	if c.Indicators.StochSmooth == 0 {
		c.Indicators.StochSmooth = 3
	}
	if c.Indicators.BBWindow == 0 {
		c.Indicators.BBWindow = 20
	}
	if c.Indicators.BBStdDev == 0 {
		c.Indicators.BBStdDev = 2
	}
	if c.Indicators.ATRPeriod == 0 {
		c.Indicators.ATRPeriod = 14
	}
	if c.Indicators.ADXPeriod == 0 {
		c.Indicators.ADXPeriod = 14
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "OPENROUTER"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "anthropic/claude-3.5-sonnet"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 800
	}
	if c.LLM.TimeoutSec == 0 {
		c.LLM.TimeoutSec = 60
	}

	if c.Notify.TimeoutSec == 0 {
		c.Notify.TimeoutSec = 5
	}
	if c.Notify.TelegramAPI == "" {
		c.Notify.TelegramAPI = "https://api.telegram.org"
	}

	if c.History.SampleCap == 0 {
		c.History.SampleCap = 500
	}
	if c.History.SampleTrim == 0 {
		c.History.SampleTrim = 400
	}
	if c.History.MarkerCap == 0 {
		c.History.MarkerCap = 200
	}

	if c.API.Listen == "" {
		c.API.Listen = ":8080"
	}
	if c.Storage.RedisKey == "" {
		c.Storage.RedisKey = "llm-spot-trader:positions"
	}
	if c.Storage.TimeoutSec == 0 {
		c.Storage.TimeoutSec = 3
	}
	if c.EventLog.Table == "" {
		c.EventLog.Table = "event_log"
	}
	if c.EventLog.TimeoutSec == 0 {
		c.EventLog.TimeoutSec = 5
	}
	if c.EventLog.RetentionDays == 0 {
		c.EventLog.RetentionDays = 30
	}
}
