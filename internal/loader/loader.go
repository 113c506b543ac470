// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file discovers declaration files and populates the registry from them.
//
// Why derive namespaces from file paths?
//
// A declaration file is the unit of reload and the unit of cache
// partitioning, so giving each file its own dotted namespace (its path
// relative to the declarations root) makes all three notions line up:
// `util/strings.hcl` under the root declares namespace `util.strings`, is
// cached in partition `util_strings.hcl`, and is re-declared as a whole when
// the file changes.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/parablock/internal/ctxlog"
	"github.com/vk/parablock/internal/fsutil"
	"github.com/vk/parablock/internal/model"
	"github.com/vk/parablock/internal/registry"
)

// DeclarationExt is the file extension of declaration files.
const DeclarationExt = ".hcl"

// Loader reads declaration files and registers the functions they declare.
type Loader struct {
	registry *registry.Registry
}

// New creates a Loader populating the given registry.
func New(reg *registry.Registry) *Loader {
	return &Loader{registry: reg}
}

// NamespaceForFile derives the dotted namespace of a declaration file from
// its path relative to the declarations root.
func NamespaceForFile(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("deriving namespace for %s: %w", path, err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("declaration file %s is outside the root %s", path, root)
	}

	rel = strings.TrimSuffix(filepath.ToSlash(rel), DeclarationExt)
	namespace := strings.ReplaceAll(rel, "/", ".")
	if namespace == "" {
		return "", fmt.Errorf("declaration file %s yields an empty namespace", path)
	}
	return namespace, nil
}

// DeclareFile parses one declaration file and registers every function it
// declares under the file's namespace. It returns that namespace.
func (l *Loader) DeclareFile(ctx context.Context, root, path string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	namespace, err := NamespaceForFile(root, path)
	if err != nil {
		return "", err
	}
	logger.Debug("Declaring functions from file", "path", path, "namespace", namespace)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return "", fmt.Errorf("parsing %s: %s", path, diags.Error())
	}

	specs, diags := model.ParseFunctionFile(ctx, file, namespace)
	if diags.HasErrors() {
		return "", fmt.Errorf("decoding %s: %s", path, diags.Error())
	}

	for _, spec := range specs {
		l.registry.Register(spec)
	}

	logger.Info("Declared functions", "namespace", namespace, "count", len(specs))
	return namespace, nil
}

// DeclarePath declares a single file or a whole declarations tree, returning
// the namespaces declared in processing order.
func (l *Loader) DeclarePath(ctx context.Context, path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading declarations path: %w", err)
	}

	if !info.IsDir() {
		namespace, err := l.DeclareFile(ctx, filepath.Dir(path), path)
		if err != nil {
			return nil, err
		}
		return []string{namespace}, nil
	}

	files, err := fsutil.FindFilesByExtension(path, DeclarationExt)
	if err != nil {
		return nil, fmt.Errorf("walking declarations tree: %w", err)
	}

	var namespaces []string
	seen := make(map[string]bool)
	for _, file := range files {
		namespace, err := l.DeclareFile(ctx, path, file)
		if err != nil {
			return nil, err
		}
		if !seen[namespace] {
			seen[namespace] = true
			namespaces = append(namespaces, namespace)
		}
	}
	return namespaces, nil
}
