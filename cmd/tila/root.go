package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/tila/config"
)

var (
	version = "0.1.0"

	cfgPath  string
	debugLog bool
	cfg      *config.Config

	rootCmd = &cobra.Command{
		Use:   "tila",
		Short: "Single-instance infrastructure state",
		Long: `Tila - single-instance infrastructure state

Tila provisions one cloud compute instance, tracks it in a local
state file, detects drift between the record and the provider's
live state, and reconciles the two. Stale records are pruned before
any create or delete decision, so repeated runs converge to exactly
one live instance per logical name.`,
		Version:           version,
		PersistentPreRunE: setup,
	}
)

// Execute runs the root command with signal-aware cancellation
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Tila {{.Version}} - single-instance infrastructure state
`)
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Enable debug logging")
}

func setup(cmd *cobra.Command, args []string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debugLog {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.Load(cfgPath)
	}
	if _, err := os.Stat("tila.yaml"); err == nil {
		return config.Load("tila.yaml")
	}
	return config.Default(), nil
}
