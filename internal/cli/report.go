package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ProjectTradeAI/agentrader/internal/models"
	"github.com/ProjectTradeAI/agentrader/internal/performance"
	"github.com/ProjectTradeAI/agentrader/internal/store"
)

func newReportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Derive a performance report from the stored trade history",
		Long: `Recompute win rate, profit factor, drawdown and Sharpe ratio from the
persisted trades. The report is a pure projection: it can be derived
again at any time and always yields the same numbers for the same
history.`,
		Example: `  agentrader report
  agentrader report --symbol BTCUSDT --from 2025-01-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, _ := cmd.Flags().GetString("symbol")
			fromStr, _ := cmd.Flags().GetString("from")
			jsonMode, _ := cmd.Flags().GetBool("json")

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}
			defer dataStore.Close()

			filter := store.TradeFilter{Symbol: symbol}
			if fromStr != "" {
				from, err := time.Parse("2006-01-02", fromStr)
				if err != nil {
					return fmt.Errorf("parsing --from: %w", err)
				}
				filter.StartDate = from
			}

			trades, err := dataStore.GetTrades(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("loading trades: %w", err)
			}
			if len(trades) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no trades recorded yet")
				return nil
			}

			initial := app.Config.Ledger.InitialBalance
			curve := equityFromTrades(initial, trades)
			report := performance.Derive(initial, curve, trades)

			if jsonMode {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			renderReport(cmd, symbol, report)
			renderEquityCurve(cmd, curve, 60, 12)
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "restrict to one symbol (default: all)")
	cmd.Flags().String("from", "", "only trades closed on or after this date (YYYY-MM-DD)")

	return cmd
}

// equityFromTrades rebuilds a realized equity curve by accumulating trade
// P&L in close order. Open-position drift is not visible here; the live
// curve in the ledger is richer but not persisted.
func equityFromTrades(initial float64, trades []models.Trade) []models.EquityPoint {
	curve := make([]models.EquityPoint, 0, len(trades))
	equity := initial
	for _, t := range trades {
		equity += t.PnL
		curve = append(curve, models.EquityPoint{Timestamp: t.ClosedAt, Equity: equity})
	}
	return curve
}

func renderReport(cmd *cobra.Command, symbol string, r *models.PerformanceReport) {
	title := "Performance Report"
	if symbol != "" {
		title += " - " + symbol
	}
	color.Cyan("%s", title)
	fmt.Println()

	pnlColor := color.New(color.FgGreen)
	if r.FinalEquity < r.InitialEquity {
		pnlColor = color.New(color.FgRed)
	}

	fmt.Printf("  Initial Equity:    %12.2f\n", r.InitialEquity)
	fmt.Printf("  Final Equity:      %s\n", pnlColor.Sprintf("%12.2f", r.FinalEquity))
	fmt.Printf("  Total Return:      %s\n", pnlColor.Sprintf("%11.2f%%", r.TotalReturn))
	fmt.Printf("  Annualized Return: %11.2f%%\n", r.AnnualizedReturn)
	fmt.Println()

	fmt.Printf("  Total Trades:      %6d\n", r.TotalTrades)
	fmt.Printf("  Winners / Losers:  %6d / %d\n", r.WinningTrades, r.LosingTrades)
	fmt.Printf("  Win Rate:          %11.2f%%\n", r.WinRate)
	fmt.Printf("  Profit Factor:     %s\n", formatProfitFactor(r.ProfitFactor))
	fmt.Printf("  Avg Win / Loss:    %10.2f / %.2f\n", r.AvgWin, r.AvgLoss)
	fmt.Println()

	fmt.Printf("  Max Drawdown:      %11.2f%%\n", r.MaxDrawdown)
	fmt.Printf("  Sharpe Ratio:      %12.2f\n", r.SharpeRatio)
	fmt.Println()

	if r.Long.Trades > 0 || r.Short.Trades > 0 {
		color.Cyan("By Direction")
		fmt.Printf("  Long:  %3d trades, %6.2f%% win rate, %10.2f total P&L\n",
			r.Long.Trades, r.Long.WinRate, r.Long.TotalPnL)
		fmt.Printf("  Short: %3d trades, %6.2f%% win rate, %10.2f total P&L\n",
			r.Short.Trades, r.Short.WinRate, r.Short.TotalPnL)
		fmt.Println()
	}
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "        +Inf"
	}
	return fmt.Sprintf("%12.2f", pf)
}

// renderEquityCurve plots the equity curve as a terminal chart.
func renderEquityCurve(cmd *cobra.Command, curve []models.EquityPoint, width, height int) {
	if len(curve) < 2 {
		return
	}

	minEq, maxEq := curve[0].Equity, curve[0].Equity
	for _, p := range curve {
		if p.Equity < minEq {
			minEq = p.Equity
		}
		if p.Equity > maxEq {
			maxEq = p.Equity
		}
	}
	span := maxEq - minEq
	if span == 0 {
		span = 1
	}
	minEq -= span * 0.05
	maxEq += span * 0.05
	span = maxEq - minEq

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	step := len(curve) / width
	if step == 0 {
		step = 1
	}
	for x := 0; x < width && x*step < len(curve); x++ {
		p := curve[x*step]
		y := int((p.Equity - minEq) / span * float64(height-1))
		if y >= 0 && y < height {
			grid[height-1-y][x] = '█'
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Equity Curve (%.0f - %.0f)\n", minEq, maxEq)
	fmt.Fprintln(out, strings.Repeat("─", width+2))
	for _, row := range grid {
		fmt.Fprintf(out, "│%s│\n", string(row))
	}
	fmt.Fprintln(out, strings.Repeat("─", width+2))
}
