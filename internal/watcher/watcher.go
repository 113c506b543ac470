// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file implements the reload watcher: it observes declaration file
// changes and reconciles the affected namespace.
//
// Why a keyed mutex per namespace?
//
// A reconcile is clear + re-declare + orchestrate, and a dispatch that lands
// between the clear and the re-declare would observe a half-cleared registry.
// Serializing reconciles per namespace closes that window for concurrent
// change events, while events for unrelated namespaces still proceed
// independently.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/parablock/internal/cache"
	"github.com/vk/parablock/internal/ctxlog"
	"github.com/vk/parablock/internal/loader"
	"github.com/vk/parablock/internal/orchestrator"
	"github.com/vk/parablock/internal/registry"
)

// Watcher reconciles namespaces when their declaration files change.
// State machine per namespace: Idle -> ChangeDetected -> Reconciling -> Idle.
type Watcher struct {
	root     string
	loader   *loader.Loader
	orch     *orchestrator.Orchestrator
	registry *registry.Registry
	cache    *cache.Cache

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Watcher over the declarations root.
func New(root string, l *loader.Loader, o *orchestrator.Orchestrator, reg *registry.Registry, c *cache.Cache) *Watcher {
	return &Watcher{
		root:     root,
		loader:   l,
		orch:     o,
		registry: reg,
		cache:    c,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing reconciles of one namespace.
func (w *Watcher) lockFor(namespace string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.locks[namespace]; !ok {
		w.locks[namespace] = &sync.Mutex{}
	}
	return w.locks[namespace]
}

// Reconcile runs one full reconciliation cycle for the namespace owning the
// changed declaration file: clear the namespace, re-declare from the file,
// and run an orchestration pass. It returns the pass's success flag. A file
// that no longer exists just leaves the namespace cleared.
func (w *Watcher) Reconcile(ctx context.Context, path string) (bool, error) {
	logger := ctxlog.FromContext(ctx)

	namespace, err := loader.NamespaceForFile(w.root, path)
	if err != nil {
		return false, err
	}

	logger.Info("Change detected", "namespace", namespace, "path", path)
	lock := w.lockFor(namespace)
	lock.Lock()
	defer lock.Unlock()

	logger.Debug("Reconciling namespace", "namespace", namespace)
	w.registry.ClearNamespace(namespace)
	w.cache.Invalidate(namespace)

	if _, err := os.Stat(path); err != nil {
		// Declaration file removed: its functions stay cleared.
		logger.Info("Declaration file removed, namespace cleared", "namespace", namespace)
		return true, nil
	}

	if _, err := w.loader.DeclareFile(ctx, w.root, path); err != nil {
		logger.Error("Re-declaration failed", "namespace", namespace, "error", err)
		return false, err
	}

	_, ok := w.orch.ProcessNamespace(ctx, namespace)
	logger.Info("Reconcile finished", "namespace", namespace, "ok", ok)
	return ok, nil
}

// Run watches the declarations root until the context is cancelled. Each
// change event reconciles in its own goroutine; the per-namespace lock keeps
// same-namespace reconciles sequential.
func (w *Watcher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := addRecursive(fsw, w.root); err != nil {
		return err
	}
	logger.Info("Watching for declaration changes", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, open := <-fsw.Events:
			if !open {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					// New subdirectory: watch it so future files are seen.
					if err := addRecursive(fsw, event.Name); err != nil {
						logger.Warn("Could not watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !strings.HasSuffix(event.Name, loader.DeclarationExt) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			go func(path string) {
				if _, err := w.Reconcile(ctx, path); err != nil {
					logger.Error("Reconcile error", "path", path, "error", err)
				}
			}(event.Name)

		case err, open := <-fsw.Errors:
			if !open {
				return nil
			}
			logger.Error("Watcher error", "error", err)
		}
	}
}

// addRecursive registers a directory and all of its subdirectories with the
// fsnotify watcher.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return walkDirs(root, func(dir string) error {
		return fsw.Add(dir)
	})
}

func walkDirs(root string, fn func(string) error) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	if err := fn(root); err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := walkDirs(filepath.Join(root, entry.Name()), fn); err != nil {
				return err
			}
		}
	}
	return nil
}
