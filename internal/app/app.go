package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/bindflow/internal/entity"
	"github.com/vk/bindflow/internal/worker"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	errW   io.Writer
	logger *slog.Logger
	config *Config
	worker *worker.Worker
	page   *entity.Page
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and worker, and the
// page loaded if one was configured.
func NewApp(outW, errW io.Writer, config *Config) (*App, error) {
	logger := newLogger(config.LogLevel, config.LogFormat, errW)
	logger.Debug("Logger configured successfully.")

	var page *entity.Page
	if config.PagePath != "" {
		var err error
		page, err = entity.LoadPage(config.PagePath)
		if err != nil {
			return nil, fmt.Errorf("loading page: %w", err)
		}
		logger.Debug("Page loaded.", "path", config.PagePath, "entities", len(page.Entities()))
	}

	return &App{
		outW:   outW,
		errW:   errW,
		logger: logger,
		config: config,
		worker: worker.New(),
		page:   page,
	}, nil
}

// Worker returns the application's worker. This is primarily for testing.
func (a *App) Worker() *worker.Worker {
	return a.worker
}
