// Package commands implements the approtate CLI commands.
package commands

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/systmms/approtate/internal/config"
	"github.com/systmms/approtate/internal/graph"
	"github.com/systmms/approtate/internal/history"
	"github.com/systmms/approtate/internal/logging"
	"github.com/systmms/approtate/internal/notifications"
	"github.com/systmms/approtate/internal/vaults"
	"github.com/systmms/approtate/pkg/rotation"
)

// Exit codes returned by the binary.
const (
	ExitOK = 0
	// ExitFailure covers configuration errors and failed runs.
	ExitFailure = 1
	// ExitInconsistent means a credential exists that the vault does not
	// hold and someone has to reconcile it.
	ExitInconsistent = 2
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, rotation.ErrInconsistentState):
		return ExitInconsistent
	default:
		return ExitFailure
	}
}

// Runtime holds the collaborators commands build rotation jobs from. The
// zero value uses the real backends and the wall clock.
type Runtime struct {
	Vaults    func(cfg vaults.Config, logger *logging.Logger) rotation.VaultFactory
	Directory func(opts graph.Options) rotation.DirectoryFactory
	Clock     clock.Clock
}

func (rt *Runtime) clock() clock.Clock {
	if rt == nil || rt.Clock == nil {
		return clock.WallClock
	}
	return rt.Clock
}

func (rt *Runtime) vaultFactory(cfg vaults.Config, logger *logging.Logger) rotation.VaultFactory {
	if rt == nil || rt.Vaults == nil {
		return vaults.Factory(cfg, logger)
	}
	return rt.Vaults(cfg, logger)
}

func (rt *Runtime) directoryFactory(opts graph.Options) rotation.DirectoryFactory {
	if rt == nil || rt.Directory == nil {
		return graph.Factory(opts)
	}
	return rt.Directory(opts)
}

// loadConfig loads cfg and rebuilds the logger so the file's log section
// applies unless a flag overrides it.
func loadConfig(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.Load(); err != nil {
		return err
	}

	flags := cmd.Flags()
	format, _ := flags.GetString("log-format")
	debug, _ := flags.GetBool("debug")
	noColor, _ := flags.GetBool("no-color")

	def := cfg.Definition
	if !flags.Changed("log-format") && def.Log.Format != "" {
		format = def.Log.Format
	}
	if !flags.Changed("debug") && def.Log.Debug {
		debug = true
	}

	cfg.Logger = logging.NewWithOptions(logging.Options{
		Debug:   debug,
		NoColor: noColor,
		JSON:    format == "json",
		Output:  cmd.ErrOrStderr(),
	})
	return nil
}

// rotateOnce reloads configuration and performs one rotation run with
// history and notifications wired in.
//
// A configuration that no longer loads is reported to recorder as a run
// that failed validation, so /health and the metrics do not keep showing
// the previous run.
func rotateOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config, rt *Runtime, recorder rotation.Recorder) (*rotation.Result, error) {
	if err := loadConfig(cmd, cfg); err != nil {
		if recorder != nil {
			recorder.RecordRun(configFailure(cfg, rt.clock().Now(), err))
		}
		return nil, err
	}
	def := cfg.Definition
	logger := cfg.Logger

	opts := []rotation.Option{
		rotation.WithLogger(logger),
		rotation.WithClock(rt.clock()),
	}
	if recorder != nil {
		opts = append(opts, rotation.WithRecorder(recorder))
	}
	if !def.History.Disabled {
		opts = append(opts, rotation.WithHistory(historyStore(def, logger)))
	}

	manager, err := notifications.NewManagerFromConfig(def.Notifications, logger)
	if err != nil {
		return nil, err
	}
	if manager != nil {
		manager.Start(ctx)
		defer manager.Stop()
		opts = append(opts, rotation.WithNotifier(manager))
	}

	job := rotation.NewJob(
		rt.vaultFactory(def.Vault, logger),
		rt.directoryFactory(graph.Options{Cloud: def.Cloud, Logger: logger}),
		opts...,
	)
	return job.Run(ctx, def.Rotation())
}

func historyStore(def *config.Definition, logger *logging.Logger) *history.FileStore {
	dir := def.History.Dir
	if dir == "" {
		dir = history.DefaultDir()
	}
	return history.NewFileStore(dir, history.WithKeep(def.History.Keep), history.WithLogger(logger))
}

// configFailure describes a run that never started because the
// configuration could not be loaded. The last good definition, if any,
// supplies the application labels.
func configFailure(cfg *config.Config, now time.Time, err error) *rotation.Result {
	res := &rotation.Result{
		RunID:       uuid.NewString(),
		StartedAt:   now,
		FinishedAt:  now,
		Outcome:     rotation.OutcomeFailed,
		FailedStage: rotation.StageValidate,
		Error:       err.Error(),
	}
	if def := cfg.Definition; def != nil {
		res.AppObjectID = def.AppObjectID
		res.SecretName = def.SecretName
	}
	return res
}
