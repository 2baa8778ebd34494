package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/mikey/opportunity-agent/internal/core"
	"github.com/mikey/opportunity-agent/internal/factory"
	"github.com/mikey/opportunity-agent/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runOnce  bool
	runForce bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor the mailbox and process new opportunities",
	Args:  cobra.NoArgs,
	RunE:  runE,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// the root command runs the monitor too
	rootCmd.Args = cobra.NoArgs
	rootCmd.RunE = runE

	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().BoolVar(&runOnce, "once", false, "process a single batch and exit")
		cmd.Flags().BoolVar(&runForce, "force", false, "process the most recent messages regardless of read state, then exit")
	}
}

func runE(cmd *cobra.Command, _ []string) error {
	return invoke(func(
		logger *zap.Logger,
		sched *scheduler.Scheduler,
		providers factory.Providers,
		log core.DecisionLog,
	) error {
		return run(cmd.Context(), logger, sched, providers, log)
	})
}

func run(ctx context.Context, logger *zap.Logger, sched *scheduler.Scheduler, providers factory.Providers, log core.DecisionLog) error {
	defer logger.Sync()
	defer closeResources(logger, providers, log)

	if runOnce || runForce {
		report := sched.RunOnce(ctx, runForce)
		logger.Info("Single batch finished",
			zap.String("mode", report.Mode.String()),
			zap.Int("processed", report.Processed),
			zap.Int("retained", report.Retained),
			zap.Int("sent", report.Sent),
			zap.Int("send_errors", report.SendErrors))
		return nil
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return sched.Run(ctx)
}

// closeResources closes any resources that need closing
func closeResources(logger *zap.Logger, providers factory.Providers, log core.DecisionLog) {
	if err := providers.Close(); err != nil {
		logger.Error("Failed to close LLM providers", zap.Error(err))
	}
	if closer, ok := log.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close decision log", zap.Error(err))
		}
	}
	logger.Info("Shutdown complete")
}
