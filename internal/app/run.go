package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/parablock/internal/ctxlog"
	"github.com/vk/parablock/internal/watcher"
)

// Run executes the main application logic: declare, process, report, and
// optionally keep watching for declaration changes.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	namespaces, err := a.loader.DeclarePath(ctx, a.config.Path)
	if err != nil {
		return fmt.Errorf("loading declarations: %w", err)
	}
	a.logger.Info("Declarations loaded.", "namespaces", len(namespaces), "functions", len(a.registry.All()))

	if a.config.Inspect != "" {
		report, err := a.dispatcher.Inspect(ctx, a.config.Inspect)
		if err != nil {
			return err
		}
		fmt.Fprint(a.outW, report.String())
		return nil
	}

	results, ok := a.orchestrator.ProcessNamespaces(ctx, namespaces)
	a.printSummary(results)

	if a.config.Watch {
		root := a.config.Path
		if info, err := os.Stat(root); err == nil && !info.IsDir() {
			root = filepath.Dir(root)
		}
		w := watcher.New(root, a.loader, a.orchestrator, a.registry, a.cache)
		return w.Run(ctx)
	}

	if !ok {
		return fmt.Errorf("one or more functions failed generation or verification")
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}
