package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ProjectTradeAI/agentrader/internal/cli"
	"github.com/ProjectTradeAI/agentrader/internal/config"
	"github.com/ProjectTradeAI/agentrader/internal/logging"
)

func main() {
	// Optional; environment wins over .env.
	_ = godotenv.Load()

	cfgPath := os.Getenv("AGENTRADER_CONFIG")
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			cfgPath = os.Args[i+1]
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
