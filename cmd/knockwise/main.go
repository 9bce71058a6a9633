package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/dalemusser/waffle/app"
	"github.com/dalemusser/waffle/logging"
	"github.com/dalemusser/waffle/server"
	"github.com/knockwise/knockwise/internal/app/assignments"
	"github.com/knockwise/knockwise/internal/app/bootstrap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

// Every subcommand leaves flag parsing to WAFFLE's config loader, which
// registers the core and app flags on the global pflag set.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "knockwise",
		Short:        "KnockWise zone assignment service",
		SilenceUsage: true,
	}
	root.AddCommand(
		newServeCommand(),
		newActivateCommand(),
		newReconcileCommand(),
		newEnsureIndexesCommand(),
	)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "serve",
		Short:              "Run the HTTP API and the background jobs",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(context.Background(), bootstrap.Hooks)
		},
	}
}

// runJob walks the same hooks as app.Run up to Startup, runs fn once, writes
// its report as JSON and shuts the backends down.
func runJob(out io.Writer, fn func(context.Context, *bootstrap.Services) (any, error)) error {
	boot := logging.BootstrapLogger()
	defer func() { _ = boot.Sync() }()

	coreCfg, appCfg, err := bootstrap.LoadConfig(boot)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := bootstrap.ValidateJobConfig(coreCfg, appCfg, boot); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := logging.MustBuildLogger(coreCfg.LogLevel, coreCfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := server.WithShutdownSignals(context.Background(), logger)
	defer cancel()

	deps, err := bootstrap.ConnectDB(ctx, coreCfg, appCfg, logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), coreCfg.HTTP.ShutdownTimeout)
		defer closeCancel()
		if err := bootstrap.Shutdown(closeCtx, coreCfg, appCfg, deps, logger); err != nil {
			logger.Warn("shutdown failed", zap.Error(err))
		}
	}()

	schemaCtx, schemaCancel := context.WithTimeout(ctx, coreCfg.IndexBootTimeout)
	err = bootstrap.EnsureSchema(schemaCtx, coreCfg, appCfg, deps, logger)
	schemaCancel()
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	if err := bootstrap.Startup(ctx, coreCfg, appCfg, deps, logger); err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	report, err := fn(ctx, deps.Services)
	if err != nil {
		return err
	}
	if report == nil {
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func newActivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "activate",
		Short:              "Promote every due scheduled assignment once and print the report",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Registered before WAFFLE parses the global flag set.
			at := pflag.String("at", "", "Treat this RFC 3339 instant as now (default: current time)")

			return runJob(cmd.OutOrStdout(), func(ctx context.Context, s *bootstrap.Services) (any, error) {
				var now time.Time
				if *at != "" {
					t, err := time.Parse(time.RFC3339, *at)
					if err != nil {
						return nil, fmt.Errorf("--at: %w", err)
					}
					now = t
				}
				job := &activateOnce{services: s, now: now}
				// Shares the scheduler's lock so a manual run never overlaps a
				// scheduled sweep on another instance.
				if err := s.Scheduler.RunOnce(ctx, job, s.ActivationLock); err != nil {
					return nil, err
				}
				return job.report, nil
			})
		},
	}
}

// activateOnce is the activator job with a fixed clock that keeps its report.
type activateOnce struct {
	services *bootstrap.Services
	now      time.Time
	report   assignments.ActivationReport
}

func (j *activateOnce) Name() string { return j.services.Activator.Name() }

func (j *activateOnce) Run(ctx context.Context) error {
	report, err := j.services.Assignments.ActivatePending(ctx, j.now)
	j.report = report
	return err
}

func newReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "reconcile",
		Short:              "Recompute zone ids and statuses for every agent and team",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.OutOrStdout(), func(ctx context.Context, s *bootstrap.Services) (any, error) {
				return s.Assignments.Reconcile(ctx)
			})
		},
	}
}

func newEnsureIndexesCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "ensure-indexes",
		Short:              "Apply collection validators and indexes, then exit",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.OutOrStdout(), func(context.Context, *bootstrap.Services) (any, error) {
				// runJob already ensured the schema.
				return nil, nil
			})
		},
	}
}
