package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/bindflow/internal/ctxlog"
	"github.com/vk/bindflow/internal/server"
	"github.com/vk/bindflow/internal/watch"
)

// Run executes the main application logic: the first evaluation pass for
// the configured page, then the optional serve and watch loops until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.worker.Start(ctx)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.worker.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Worker shutdown timed out.", "error", err)
		}
	}()

	if a.page != nil {
		if err := a.evalFirstTree(ctx); err != nil {
			return err
		}
	}

	if a.config.ServeAddr == "" && !a.config.Watch {
		a.logger.Debug("App.Run method finished.")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.config.ServeAddr != "" {
		srv := server.New(a.config.ServeAddr)
		g.Go(func() error { return srv.Run(gctx) })
	}
	if a.config.Watch {
		w := watch.New(a.config.PagePath, a.worker)
		g.Go(func() error { return w.Run(gctx) })
	}

	err := g.Wait()
	a.logger.Debug("App.Run method finished.")
	return err
}

// evalFirstTree runs the full evaluation pass for the loaded page. When the
// app is not serving, the evaluated tree is printed as JSON.
func (a *App) evalFirstTree(ctx context.Context) error {
	a.logger.Info("Evaluating page.", "path", a.config.PagePath)

	res, err := a.worker.EvalTree(ctx, a.page)
	if err != nil {
		return fmt.Errorf("evaluating page: %w", err)
	}
	for _, e := range res.Errors {
		a.logger.Warn("Binding failed.", "path", e.Path, "error", e.Message)
	}
	a.logger.Info("Page evaluated.", "evaluated_paths", len(res.UpdatedPaths), "errors", len(res.Errors))

	if a.config.ServeAddr == "" {
		treeJSON, err := res.Tree.JSON()
		if err != nil {
			return fmt.Errorf("encoding tree: %w", err)
		}
		fmt.Fprintln(a.outW, string(treeJSON))
	}
	return nil
}
