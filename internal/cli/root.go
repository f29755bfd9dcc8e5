// Package cli provides the command-line interface for the decision engine.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ProjectTradeAI/agentrader/internal/analyst"
	"github.com/ProjectTradeAI/agentrader/internal/audit"
	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/decision"
	"github.com/ProjectTradeAI/agentrader/internal/engine"
	"github.com/ProjectTradeAI/agentrader/internal/ledger"
	"github.com/ProjectTradeAI/agentrader/internal/llm"
	"github.com/ProjectTradeAI/agentrader/internal/marketdata"
	"github.com/ProjectTradeAI/agentrader/internal/risk"
	"github.com/ProjectTradeAI/agentrader/internal/sizing"
	"github.com/ProjectTradeAI/agentrader/internal/store"
)

// Version information
const (
	Version = "0.2.0"
)

// App holds the application dependencies shared across commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "agentrader",
		Short: "Multi-analyst decision engine with simulated execution",
		Long: `agentrader aggregates the views of independent market analysts into
one trading decision per cycle, passes it through a risk guard and a
position sizer, and executes it against a simulated paper-trading ledger.

No real orders are ever placed. Every cycle is recorded on an
append-only audit trail.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newReportCmd(app))
	rootCmd.AddCommand(newImportCmd(app))

	return rootCmd
}

// openStore opens the SQLite store configured for the app, caching it on the
// App so commands share one handle.
func (a *App) openStore() (store.DataStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", a.Config.Store.Path, err)
	}
	a.Store = s
	return s, nil
}

// buildEngine assembles the full pipeline over the given market data
// provider. dataStore and recorder may be nil.
func (a *App) buildEngine(provider marketdata.Provider, recorder audit.Recorder, dataStore store.DataStore) *engine.Engine {
	cfg := a.Config
	analysts := analyst.BuildAnalysts(cfg.Analysts, a.Logger)
	coordinator := analyst.NewCoordinator(analysts, cfg.Analysts, a.Logger)
	chain := llm.NewChain(cfg.LLM, a.Logger)
	aggregator := decision.NewAggregator(cfg.Decision, cfg.Analysts, chain, a.Logger)
	guard := risk.NewGuard(cfg.Risk, cfg.Ledger, a.Logger)
	sizer := sizing.NewSizer(cfg.Sizing, cfg.Risk)
	book := ledger.New(cfg.Ledger, a.Logger)

	return engine.New(cfg, provider, coordinator, aggregator, guard, sizer, book, recorder, dataStore, a.Logger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonMode, _ := cmd.Flags().GetBool("json")
			if jsonMode {
				out, _ := json.Marshal(map[string]string{"version": Version})
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "agentrader v%s\n", Version)
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(app.Config, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Config.Validate(); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	})

	return cmd
}
