// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file implements the persistent, namespace-partitioned implementation
// cache.
//
// Why push loaded implementations into the registry?
//
// A cold-started process must be able to dispatch a declared function straight
// from cache, without a synthesis pass. Load therefore does double duty: it
// merges the partition into the in-memory store for hash comparison, and it
// hands every contained implementation to the registry so the dispatcher can
// resolve calls immediately.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/vk/parablock/internal/ctxlog"
	"github.com/vk/parablock/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Record is one cached implementation keyed by its specification hash.
type Record struct {
	Hash           string
	Implementation string
}

// Cache is the content-addressed implementation store. The in-memory map is
// flat; partitioning happens at load/save time by full-name prefix.
type Cache struct {
	mu       sync.Mutex
	dir      string
	registry *registry.Registry
	records  map[string]Record
	loaded   map[string]bool
}

// New creates a Cache persisting partitions under dir and pushing loaded
// implementations into the given registry.
func New(dir string, reg *registry.Registry) *Cache {
	return &Cache{
		dir:      dir,
		registry: reg,
		records:  make(map[string]Record),
		loaded:   make(map[string]bool),
	}
}

// partitionFile is the persisted shape of one namespace partition.
type partitionFile struct {
	Entries []*partitionEntry `hcl:"entry,block"`
}

// partitionEntry is one cached function inside a partition.
type partitionEntry struct {
	FullName       string `hcl:"full_name,label"`
	Hash           string `hcl:"hash"`
	Implementation string `hcl:"implementation"`
}

// PartitionPath returns the partition file path for a namespace.
func (c *Cache) PartitionPath(namespace string) string {
	return filepath.Join(c.dir, strings.ReplaceAll(namespace, ".", "_")+".hcl")
}

// Load reads the namespace's persisted partition, if any, merges it into the
// in-memory store, and pushes every contained implementation into the
// registry. It is idempotent: a namespace is read from disk at most once until
// invalidated. A missing partition simply means nothing is cached yet; an
// unreadable one is logged and treated the same way.
func (c *Cache) Load(ctx context.Context, namespace string) {
	logger := ctxlog.FromContext(ctx)

	c.mu.Lock()
	if c.loaded[namespace] {
		c.mu.Unlock()
		return
	}
	c.loaded[namespace] = true
	path := c.PartitionPath(namespace)
	c.mu.Unlock()

	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("No cache partition for namespace", "namespace", namespace, "path", path)
		} else {
			logger.Warn("Cache partition unreadable, treating as empty", "namespace", namespace, "path", path, "error", err)
		}
		return
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		logger.Warn("Cache partition corrupt, treating as empty", "namespace", namespace, "path", path, "error", diags.Error())
		return
	}

	var partition partitionFile
	diags = gohcl.DecodeBody(file.Body, nil, &partition)
	if diags.HasErrors() {
		logger.Warn("Cache partition undecodable, treating as empty", "namespace", namespace, "path", path, "error", diags.Error())
		return
	}

	c.mu.Lock()
	for _, entry := range partition.Entries {
		c.records[entry.FullName] = Record{Hash: entry.Hash, Implementation: entry.Implementation}
	}
	c.mu.Unlock()

	for _, entry := range partition.Entries {
		c.registry.StoreImplementation(entry.FullName, entry.Implementation)
	}

	logger.Debug("Loaded cache partition", "namespace", namespace, "entries", len(partition.Entries))
}

// Save writes the namespace's partition: exactly the records whose full name
// is prefixed by the namespace, in stable lexical order. Partitions never
// contain another namespace's records even though the in-memory store is flat.
func (c *Cache) Save(ctx context.Context, namespace string) error {
	logger := ctxlog.FromContext(ctx)

	c.mu.Lock()
	prefix := namespace + "."
	names := make([]string, 0)
	for name := range c.records {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	file := hclwrite.NewEmptyFile()
	body := file.Body()
	for i, name := range names {
		if i > 0 {
			body.AppendNewline()
		}
		rec := c.records[name]
		block := body.AppendNewBlock("entry", []string{name})
		block.Body().SetAttributeValue("hash", cty.StringVal(rec.Hash))
		block.Body().SetAttributeValue("implementation", cty.StringVal(rec.Implementation))
	}
	path := c.PartitionPath(namespace)
	c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.WriteFile(path, file.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing cache partition %s: %w", path, err)
	}

	logger.Debug("Saved cache partition", "namespace", namespace, "path", path, "entries", len(names))
	return nil
}

// Get returns the cached record for a full name.
func (c *Cache) Get(fullName string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[fullName]
	return rec, ok
}

// Store records a verified implementation under its specification hash.
func (c *Cache) Store(fullName, hash, implementation string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[fullName] = Record{Hash: hash, Implementation: implementation}
}

// Invalidate drops the namespace's loaded flag and its in-memory records, so
// the next Load re-reads the partition from disk. Used by the reload watcher
// together with Registry.ClearNamespace.
func (c *Cache) Invalidate(namespace string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.loaded, namespace)
	prefix := namespace + "."
	for name := range c.records {
		if strings.HasPrefix(name, prefix) {
			delete(c.records, name)
		}
	}
}
