// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/clawlet/cmd/servecmd"
	"github.com/luxfi/clawlet/cmd/walletcmd"
	"github.com/luxfi/clawlet/pkg/application"
	"github.com/luxfi/clawlet/pkg/config"
	"github.com/luxfi/clawlet/pkg/state"
	"github.com/luxfi/clawlet/pkg/ux"
)

var (
	app *application.App

	Version = "0.3.0"

	verboseFlag bool
)

func NewRootCmd() *cobra.Command {
	app = application.New()

	rootCmd := &cobra.Command{
		Use: "clawlet",
		Long: `clawlet - local-first x402 spend-control broker.

clawlet lets an agent pay for HTTP resources guarded by the x402
"402 Payment Required" protocol with USDC on Base, while spending
rules, the transaction ledger, and the wallet keys stay on this
machine.

COMMAND OVERVIEW:

  serve    Run the broker: JSON-HTTP binding, optional stdio tool
           binding, and the payment-session sweeper
  wallet   Inspect the wallet roster

QUICK START:

  # Run the broker on the default port
  clawlet serve

  # List configured wallets
  clawlet wallet list

For detailed command help, use: clawlet <command> --help`,
		PersistentPreRunE: createApp,
		Version:           Version,
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(servecmd.NewCmd(app))
	rootCmd.AddCommand(walletcmd.NewCmd(app))
	return rootCmd
}

// createApp loads the environment, opens the state store, and wires the
// component graph before any command runs.
func createApp(cmd *cobra.Command, args []string) error {
	// A missing .env is fine; explicit environment wins over it.
	_ = godotenv.Load()

	conf, err := config.Load()
	if err != nil {
		return err
	}

	log, err := buildLogger()
	if err != nil {
		return err
	}

	store, err := state.New(conf.DataDir, log)
	if err != nil {
		return err
	}

	app.Setup(log, conf, store)
	ux.NewUserLog(log, os.Stdout)
	return nil
}

func buildLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	// Command output owns stdout; logs stay on stderr.
	cfg.OutputPaths = []string{"stderr"}
	if verboseFlag {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
