// Package config provides configuration management for the decision engine.
// One validated Config is constructed at process start and passed by
// reference to every component; nothing re-reads global state mid-cycle.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Analysts  AnalystConfig   `mapstructure:"analysts"`
	Decision  DecisionConfig  `mapstructure:"decision"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Sizing    SizingConfig    `mapstructure:"sizing"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// supportedIntervals maps recognized candle intervals to their duration.
// Interval strings are case-sensitive to match exchange conventions.
var supportedIntervals = map[string]time.Duration{
	"1m":   time.Minute,
	"5m":   5 * time.Minute,
	"15m":  15 * time.Minute,
	"1h":   time.Hour,
	"4h":   4 * time.Hour,
	"1d":   24 * time.Hour,
	"1day": 24 * time.Hour,
}

// IntervalDuration returns the duration of a recognized candle interval.
func IntervalDuration(interval string) (time.Duration, bool) {
	d, ok := supportedIntervals[interval]
	return d, ok
}

// EngineConfig holds decision-cycle level settings.
type EngineConfig struct {
	Symbol       string        `mapstructure:"symbol"`
	Interval     string        `mapstructure:"interval"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
}

// AnalystConfig holds analyst fan-out settings.
type AnalystConfig struct {
	Enabled  []string                 `mapstructure:"enabled"`
	Timeout  time.Duration            `mapstructure:"timeout"`
	Timeouts map[string]time.Duration `mapstructure:"timeouts"` // per-analyst override
	Weights  map[string]float64       `mapstructure:"weights"`  // default 1.0
}

// Weight returns the configured weight for an analyst, defaulting to 1.0.
func (c *AnalystConfig) Weight(name string) float64 {
	if w, ok := c.Weights[name]; ok {
		return w
	}
	return 1.0
}

// TimeoutFor returns the per-analyst timeout, falling back to the default.
func (c *AnalystConfig) TimeoutFor(name string) time.Duration {
	if t, ok := c.Timeouts[name]; ok && t > 0 {
		return t
	}
	return c.Timeout
}

// DecisionConfig holds aggregation settings.
type DecisionConfig struct {
	ConflictThreshold float64       `mapstructure:"conflict_threshold"`
	TiebreakEnabled   bool          `mapstructure:"tiebreak_enabled"`
	TiebreakTimeout   time.Duration `mapstructure:"tiebreak_timeout"`
}

// RiskConfig holds risk-guard policy. The scale factors are preserved
// heuristics from the source system, configurable rather than derived.
type RiskConfig struct {
	RiskPerTradePercent  float64 `mapstructure:"risk_per_trade_percent"`
	MaxDailyDrawdownPct  float64 `mapstructure:"max_daily_drawdown_percent"`
	MaxPositionPercent   float64 `mapstructure:"max_position_percent"`
	MaxPositions         int     `mapstructure:"max_positions"`
	VolatilityMultiplier float64 `mapstructure:"volatility_multiplier"`
	SizeScaleMedium      float64 `mapstructure:"size_scale_medium"`
	SizeScaleHigh        float64 `mapstructure:"size_scale_high"`
	MinViableNotional    float64 `mapstructure:"min_viable_notional"`
}

// SizingConfig holds position-sizer settings. MethodWeights selects and
// blends sizing methods; a single entry means that method alone.
type SizingConfig struct {
	TradeSizePercent float64            `mapstructure:"trade_size_percent"`
	TargetVolatility float64            `mapstructure:"target_volatility"`
	MethodWeights    map[string]float64 `mapstructure:"method_weights"`
}

// LedgerConfig holds paper-trading ledger settings.
type LedgerConfig struct {
	InitialBalance  float64       `mapstructure:"initial_balance"`
	StopLossPercent float64       `mapstructure:"stop_loss_percent"`
	TakeProfitPct   float64       `mapstructure:"take_profit_percent"`
	TrailingStop    bool          `mapstructure:"trailing_stop"`
	TrailingPercent float64       `mapstructure:"trailing_percent"`
	SlippagePercent float64       `mapstructure:"slippage_percent"`
	CommissionPct   float64       `mapstructure:"commission_percent"`
	EntryCooldown   time.Duration `mapstructure:"entry_cooldown"`
}

// SchedulerConfig holds decision trigger settings. Cron, when set, replaces
// the fixed-interval alignment with a cron expression.
type SchedulerConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	Cron           string        `mapstructure:"cron"`
	RunImmediately bool          `mapstructure:"run_immediately"`
	Checkpoint     string        `mapstructure:"checkpoint"` // checkpoint name, default "scheduler"
}

// LLMConfig holds completion provider settings. Providers are tried in
// order; the first success wins.
type LLMConfig struct {
	Providers []ProviderConfig `mapstructure:"providers"`
	Timeout   time.Duration    `mapstructure:"timeout"`
}

// ProviderConfig describes one OpenAI-compatible completion endpoint.
type ProviderConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Enabled bool   `mapstructure:"enabled"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Path      string `mapstructure:"path"`
	AuditPath string `mapstructure:"audit_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// Load loads configuration from the given file path. An empty path falls
// back to ./config.yaml.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
		// Missing file: run on defaults plus env overrides.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		for i := range cfg.LLM.Providers {
			if cfg.LLM.Providers[i].APIKey == "" {
				cfg.LLM.Providers[i].APIKey = v
			}
		}
	}
	if v := os.Getenv("AGENTRADER_SYMBOL"); v != "" {
		cfg.Engine.Symbol = v
	}
	if v := os.Getenv("AGENTRADER_DB"); v != "" {
		cfg.Store.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.Symbol == "" {
		return fmt.Errorf("engine.symbol is required")
	}
	if _, ok := supportedIntervals[c.Engine.Interval]; !ok {
		return fmt.Errorf("engine.interval %q is not recognized (use 1m, 5m, 15m, 1h, 4h, 1d)", c.Engine.Interval)
	}
	if c.Engine.CycleTimeout <= 0 {
		return fmt.Errorf("engine.cycle_timeout must be positive")
	}
	if c.Analysts.Timeout <= 0 {
		return fmt.Errorf("analysts.timeout must be positive")
	}
	for name, w := range c.Analysts.Weights {
		if w < 0 {
			return fmt.Errorf("analysts.weights[%s] must be non-negative", name)
		}
	}
	if c.Decision.ConflictThreshold < 0 {
		return fmt.Errorf("decision.conflict_threshold must be non-negative")
	}
	if c.Risk.MaxDailyDrawdownPct <= 0 || c.Risk.MaxDailyDrawdownPct > 100 {
		return fmt.Errorf("risk.max_daily_drawdown_percent must be in (0, 100]")
	}
	if c.Risk.MaxPositionPercent <= 0 || c.Risk.MaxPositionPercent > 100 {
		return fmt.Errorf("risk.max_position_percent must be in (0, 100]")
	}
	if c.Risk.MaxPositions < 1 {
		return fmt.Errorf("risk.max_positions must be at least 1")
	}
	if c.Sizing.TradeSizePercent <= 0 || c.Sizing.TradeSizePercent > 100 {
		return fmt.Errorf("sizing.trade_size_percent must be in (0, 100]")
	}
	if c.Ledger.InitialBalance <= 0 {
		return fmt.Errorf("ledger.initial_balance must be positive")
	}
	if c.Ledger.StopLossPercent < 0 || c.Ledger.StopLossPercent > 100 {
		return fmt.Errorf("ledger.stop_loss_percent must be in [0, 100]")
	}
	if c.Ledger.TrailingStop && c.Ledger.TrailingPercent <= 0 {
		return fmt.Errorf("ledger.trailing_percent must be positive when trailing_stop is enabled")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	return nil
}
