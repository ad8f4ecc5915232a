// Package application assembles a validated configuration into a
// runnable sync and maps its outcome to a process exit code.
package application

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"

	"db-sync-tool/internal/config"
	apperrors "db-sync-tool/internal/errors"
	"db-sync-tool/internal/logging"
	"db-sync-tool/internal/sync"
)

// Options carries the presentation settings that come from CLI flags
// rather than the sync configuration itself.
type Options struct {
	LogLevel       logging.LogLevel
	LogFormat      string
	LogFile        string
	KnownHostsPath string
}

// Application owns one sync run.
type Application struct {
	cfg          *config.SyncConfig
	logger       *logging.Logger
	orchestrator *sync.Orchestrator
}

// New validates the configuration, applies --reverse and wires the
// orchestrator. The returned application runs exactly once.
func New(cfg *config.SyncConfig, opts Options) (*Application, error) {
	logger, err := logging.NewLogger(logging.Config{
		Level:   opts.LogLevel,
		Format:  opts.LogFormat,
		LogFile: opts.LogFile,
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeConfiguration, "cannot set up logging", err)
	}

	if cfg.Reverse {
		logger.Info("reversing origin and target")
		cfg.ApplyReverse()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	orchestrator := sync.New(cfg, sync.Options{
		Logger:         logger,
		KnownHostsPath: opts.KnownHostsPath,
		Interactive:    isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	})

	return &Application{
		cfg:          cfg,
		logger:       logger,
		orchestrator: orchestrator,
	}, nil
}

// Run drives the pipeline to completion. An interrupt cancels the
// context; in-flight remote commands are torn down and the run ends
// in the aborted state.
func (app *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if app.cfg.DryRun {
		app.logger.Info("dry-run: no data will be modified")
	}

	err := app.orchestrator.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			err = apperrors.New(apperrors.ErrorTypeInterruption, "sync interrupted", err)
		}
		app.logger.Errorf("sync failed in state %s: %v", app.orchestrator.State(), err)
		return err
	}

	app.logger.Infof("sync finished (%s)", app.orchestrator.Mode().Description())
	return nil
}

// Logger exposes the configured logger for the CLI layer.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// ExitCode translates a run error into the process exit code.
func ExitCode(err error) int {
	return apperrors.ExitCode(err)
}
