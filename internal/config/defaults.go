package config

import (
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.symbol", "BTCUSDT")
	v.SetDefault("engine.interval", "1h")
	v.SetDefault("engine.cycle_timeout", 2*time.Minute)

	v.SetDefault("analysts.enabled", []string{"technical", "sentiment", "liquidity"})
	v.SetDefault("analysts.timeout", 30*time.Second)

	v.SetDefault("decision.conflict_threshold", 15.0)
	v.SetDefault("decision.tiebreak_enabled", true)
	v.SetDefault("decision.tiebreak_timeout", 20*time.Second)

	v.SetDefault("risk.risk_per_trade_percent", 2.0)
	v.SetDefault("risk.max_daily_drawdown_percent", 5.0)
	v.SetDefault("risk.max_position_percent", 25.0)
	v.SetDefault("risk.max_positions", 1)
	v.SetDefault("risk.volatility_multiplier", 1.0)
	v.SetDefault("risk.size_scale_medium", 0.75)
	v.SetDefault("risk.size_scale_high", 0.5)
	v.SetDefault("risk.min_viable_notional", 10.0)

	v.SetDefault("sizing.trade_size_percent", 10.0)
	v.SetDefault("sizing.target_volatility", 0.02)
	v.SetDefault("sizing.method_weights", map[string]float64{"fixed_fractional": 1.0})

	v.SetDefault("ledger.initial_balance", 10000.0)
	v.SetDefault("ledger.stop_loss_percent", 5.0)
	v.SetDefault("ledger.take_profit_percent", 10.0)
	v.SetDefault("ledger.trailing_stop", false)
	v.SetDefault("ledger.trailing_percent", 3.0)
	v.SetDefault("ledger.slippage_percent", 0.0)
	v.SetDefault("ledger.commission_percent", 0.0)
	v.SetDefault("ledger.entry_cooldown", time.Duration(0))

	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("scheduler.run_immediately", false)
	v.SetDefault("scheduler.checkpoint", "scheduler")

	v.SetDefault("llm.timeout", 30*time.Second)

	v.SetDefault("store.path", "agentrader.db")
	v.SetDefault("store.audit_path", "audit.jsonl")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", "logs/agentrader.log")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
}
