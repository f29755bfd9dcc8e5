package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ProjectTradeAI/agentrader/internal/audit"
	"github.com/ProjectTradeAI/agentrader/internal/marketdata"
	"github.com/ProjectTradeAI/agentrader/internal/scheduler"
)

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the live decision loop (paper trading)",
		Long: `Start the scheduler and run one decision cycle per interval boundary
against the simulated ledger. Candles are read from the local store;
use 'agentrader import' to load history first.

The loop runs until interrupted. Decisions, risk verdicts, orders and
trades are persisted; every stage is appended to the audit trail.`,
		Example: `  agentrader run
  agentrader run --immediate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			immediate, _ := cmd.Flags().GetBool("immediate")
			if immediate {
				app.Config.Scheduler.RunImmediately = true
			}

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}
			defer dataStore.Close()

			recorder, err := audit.NewFileRecorder(app.Config.Store.AuditPath)
			if err != nil {
				return fmt.Errorf("opening audit trail: %w", err)
			}
			defer recorder.Close()

			provider := marketdata.NewStoreProvider(dataStore, 200)
			eng := app.buildEngine(provider, recorder, dataStore)

			sched, err := scheduler.New(app.Config.Scheduler, dataStore, app.Logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app.Logger.Info().
				Str("symbol", app.Config.Engine.Symbol).
				Str("interval", app.Config.Engine.Interval).
				Dur("cycle_every", app.Config.Scheduler.Interval).
				Msg("starting decision loop")

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return sched.Run(gctx, eng.RunCycle)
			})

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				app.Logger.Info().Msg("shutdown requested, decision loop stopped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().Bool("immediate", false, "run one cycle immediately instead of waiting for the first boundary")

	return cmd
}
