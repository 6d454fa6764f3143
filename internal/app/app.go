package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/vk/taskgrid/internal/config"
	"github.com/vk/taskgrid/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	settings config.Settings
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and loaded settings.
func NewApp(outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	settings, err := config.Load(cfg.SettingsPath, cfg.SettingsExplicit)
	if err != nil {
		return nil, err
	}
	logger.Debug("Settings loaded.", "path", cfg.SettingsPath)

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		settings: settings,
	}, nil
}

// Run executes the configured command.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	switch a.config.Command {
	case CommandValidate:
		return a.runValidate(ctx)
	case CommandRun:
		return a.runGoroutinePool(ctx)
	case CommandRunHPC:
		return a.runProcessPool(ctx)
	case CommandChunkedPrimes:
		return a.runChunkedPrimes(ctx)
	case CommandFindPrimes:
		return a.runFindPrimes(ctx)
	case CommandTaskWorker:
		return a.runTaskWorker(ctx)
	}
	// NewConfig guarantees a known command; reaching this is a programmer error.
	panic("unreachable command " + string(a.config.Command))
}
