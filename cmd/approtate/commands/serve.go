package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/approtate/internal/config"
	"github.com/systmms/approtate/internal/metrics"
	"github.com/systmms/approtate/internal/notifications"
	"github.com/systmms/approtate/internal/scheduler"
)

// NewServeCommand creates the serve command
func NewServeCommand(cfg *config.Config, rt *Runtime) *cobra.Command {
	var (
		schedule      string
		runOnStart    bool
		metricsListen string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Rotate on a cron schedule until stopped",
		Long: `Serve runs the rotation at every activation of a standard five-field
cron expression. The configuration file is re-read before every run, so
edits apply to the next activation without a restart. The schedule and
the metrics listener are the exception: they are read once at startup and
need a restart to change.

Runs never overlap. A failed run is logged and the schedule continues.
A configuration that fails to load counts as a run failed at validate in
the metrics and /health. SIGINT or SIGTERM stops the scheduler after the
current run.`,
		Example: `  # Use the schedule from approtate.yaml (default 0 0 */175 * *,
  # which matches midnight on the 1st of every month)
  approtate serve

  # Rotate every Monday at 03:00 and expose metrics
  approtate serve --schedule "0 3 * * 1" --metrics-listen :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfg); err != nil {
				return err
			}
			def := cfg.Definition
			logger := cfg.Logger

			if cmd.Flags().Changed("schedule") {
				def.Schedule = schedule
			}
			if cmd.Flags().Changed("metrics-listen") {
				def.Metrics.Enabled = true
				def.Metrics.Listen = metricsListen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			status := &metrics.Status{}
			recorder := metrics.NewRunMetrics(status)
			if def.Metrics.Enabled {
				metrics.InitMetrics()
				notifications.InitMetrics()

				serverCfg := metrics.DefaultServerConfig()
				serverCfg.Enabled = true
				serverCfg.Listen = def.Metrics.Listen
				server := metrics.NewServer(serverCfg, status, logger)
				if err := server.Start(); err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = server.Stop(shutdownCtx)
				}()
			}

			sched, err := scheduler.New(def.Schedule, func(ctx context.Context) error {
				_, err := rotateOnce(ctx, cmd, cfg, rt, recorder)
				return err
			},
				scheduler.WithClock(rt.clock()),
				scheduler.WithLogger(logger),
				scheduler.WithRunOnStart(runOnStart),
			)
			if err != nil {
				return err
			}

			return sched.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression overriding the configured schedule")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "Rotate once immediately, then follow the schedule")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Serve /metrics and /health on this address")

	return cmd
}
