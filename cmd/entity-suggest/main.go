package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/app"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/config"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/logging"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "entity-suggest",
		Short:         "Relationship suggestions over an organizational entity graph",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("SUGGEST_CONFIG"), "YAML config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(suggestCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (revision %s, built %s)\n",
				buildinfo.Name, buildinfo.Version, buildinfo.Revision, buildinfo.BuildDate)
		},
	}
}

// bootstrap loads configuration, builds the logger and wires the engine.
func bootstrap(ctx context.Context, mutate func(*config.Config)) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if mutate != nil {
		mutate(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("failed to build engine: %w", err)
	}
	return a, logger, nil
}
