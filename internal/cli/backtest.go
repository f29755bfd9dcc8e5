package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ProjectTradeAI/agentrader/internal/audit"
	"github.com/ProjectTradeAI/agentrader/internal/backtest"
	"github.com/ProjectTradeAI/agentrader/internal/marketdata"
)

func newBacktestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay historical candles through the decision pipeline",
		Long: `Run the full pipeline over stored history, one cycle per candle, against
a fresh simulated ledger, and print the performance report.

Backtests never write decisions or trades back to the store. Pass
--audit to record the per-cycle audit trail of the run.`,
		Example: `  agentrader backtest --from 2025-01-01 --to 2025-06-30
  agentrader backtest --symbol ETHUSDT --from 2025-03-01 --to 2025-04-01 --audit backtest.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, _ := cmd.Flags().GetString("symbol")
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")
			auditPath, _ := cmd.Flags().GetString("audit")
			jsonMode, _ := cmd.Flags().GetBool("json")

			if symbol == "" {
				symbol = app.Config.Engine.Symbol
			}
			from, to, err := parseRange(fromStr, toStr)
			if err != nil {
				return err
			}

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}
			defer dataStore.Close()

			candles, err := dataStore.GetCandles(cmd.Context(), symbol, app.Config.Engine.Interval, from, to)
			if err != nil {
				return fmt.Errorf("loading candles: %w", err)
			}
			if len(candles) == 0 {
				return fmt.Errorf("no candles stored for %s in [%s, %s], run 'agentrader import' first",
					symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
			}

			var recorder audit.Recorder
			if auditPath != "" {
				fr, err := audit.NewFileRecorder(auditPath)
				if err != nil {
					return fmt.Errorf("opening audit trail: %w", err)
				}
				defer fr.Close()
				recorder = fr
			}

			// The backtest engine gets its own config copy so the symbol
			// override does not leak into other commands.
			cfg := *app.Config
			cfg.Engine.Symbol = symbol
			btApp := &App{Config: &cfg, Logger: app.Logger}

			provider := marketdata.NewSliceProvider(symbol, cfg.Engine.Interval, candles, 200)
			eng := btApp.buildEngine(provider, recorder, nil)

			runner := backtest.New(eng, provider, cfg.Ledger.InitialBalance, app.Logger)
			result, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}

			if jsonMode {
				data, err := json.MarshalIndent(result.Report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			renderReport(cmd, symbol, result.Report)
			renderEquityCurve(cmd, result.EquityCurve, 60, 12)
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "symbol to backtest (default: configured symbol)")
	cmd.Flags().String("from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "end date (YYYY-MM-DD, default: today)")
	cmd.Flags().String("audit", "", "write the run's audit trail to this file")

	return cmd
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--from is required")
	}
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing --from: %w", err)
	}
	to := time.Now().UTC()
	if toStr != "" {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --to: %w", err)
		}
		to = to.Add(24*time.Hour - time.Second)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to must be after --from")
	}
	return from, to, nil
}
