// Package main is the entrypoint for inferctl, a command-line client for
// remote inference resources.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/morezero/inference-client/internal/config"
)

func main() {
	// Interrupts cancel in-flight calls, including a wait on a deploying model.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "inferctl",
		Short: "Call remote inference models and workflows",
		Long: `inferctl calls models and workflows on a remote inference platform.

Method signatures are fetched from the resource and used to validate and encode
arguments. Calls against a resource that is still deploying are retried with
backoff until INFERENCE_DEPLOY_CEILING elapses.

Environment: INFERENCE_PAT (required for calls), INFERENCE_TRANSPORT (nats|grpc),
COMMS_URL, INFERENCE_GRPC_ADDR, SIGNATURE_CACHE, REDIS_URL, DATABASE_URL, LOG_LEVEL.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		methodsCmd(),
		predictCmd(),
		workflowCmd(),
		stubCmd(),
		migrateCmd(),
	)
	return root
}

// loadConfig loads the environment config and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
