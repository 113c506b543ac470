// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file drives the synthesize-verify-cache pipeline for declared
// functions.
//
// Why is the retry loop a plain synchronous loop?
//
// Attempts are inherently sequential: each retry's prompt carries the
// diagnostic from the previous verification failure, so there is nothing to
// parallelize within one function. Processing is also sequential across the
// functions of a namespace, which keeps oracle traffic bounded and the
// feedback attribution unambiguous.
package orchestrator

import (
	"context"

	"github.com/google/uuid"
	"github.com/vk/parablock/internal/cache"
	"github.com/vk/parablock/internal/ctxlog"
	"github.com/vk/parablock/internal/harness"
	"github.com/vk/parablock/internal/model"
	"github.com/vk/parablock/internal/oracle"
	"github.com/vk/parablock/internal/registry"
)

// DefaultAttempts is the bounded retry budget per function per pass.
const DefaultAttempts = 3

// Status classifies the outcome of processing one function.
type Status int

const (
	// StatusCacheHit means the cached implementation was adopted unchanged.
	StatusCacheHit Status = iota

	// StatusGenerated means a new implementation was synthesized, verified,
	// and cached during this pass.
	StatusGenerated

	// StatusFailed means the function has no usable implementation after
	// this pass.
	StatusFailed
)

// String returns a short human-readable outcome label.
func (s Status) String() string {
	switch s {
	case StatusCacheHit:
		return "cached"
	case StatusGenerated:
		return "generated"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the per-function outcome of an orchestration pass.
type Result struct {
	FullName   string
	Status     Status
	Attempts   int
	Diagnostic string
}

// OK reports whether the function ended the pass with a usable implementation.
func (r Result) OK() bool {
	return r.Status != StatusFailed
}

// Orchestrator coordinates registry, cache, oracle, and harness for
// namespace-scoped processing passes.
type Orchestrator struct {
	registry *registry.Registry
	cache    *cache.Cache
	oracle   oracle.Oracle
	harness  *harness.Harness
	attempts int
}

// New creates an Orchestrator. attempts <= 0 selects DefaultAttempts.
func New(reg *registry.Registry, c *cache.Cache, o oracle.Oracle, h *harness.Harness, attempts int) *Orchestrator {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Orchestrator{
		registry: reg,
		cache:    c,
		oracle:   o,
		harness:  h,
		attempts: attempts,
	}
}

// ProcessFunction runs the hash check, cache short-circuit, and bounded
// generate/verify loop for one declared function.
func (o *Orchestrator) ProcessFunction(ctx context.Context, spec *model.FunctionSpec) Result {
	logger := ctxlog.FromContext(ctx)
	fullName := spec.FullName()
	hash := spec.Hash()

	cached, hasCached := o.cache.Get(fullName)
	cachedHash := ""
	if hasCached {
		cachedHash = cached.Hash
	}

	if !o.registry.NeedsGeneration(fullName, cachedHash) {
		if hasCached {
			// Cache hit: adopt the stored implementation without touching
			// the oracle.
			o.registry.StoreImplementation(fullName, cached.Implementation)
			logger.Info("Using cached implementation", "function", fullName)
			return Result{FullName: fullName, Status: StatusCacheHit}
		}
		logger.Error("Frozen function has no cached implementation", "function", fullName)
		return Result{
			FullName:   fullName,
			Status:     StatusFailed,
			Diagnostic: "declared frozen but nothing is cached; unfreeze it once so an implementation can be generated",
		}
	}

	var feedback string
	for attempt := 1; attempt <= o.attempts; attempt++ {
		attemptID := uuid.NewString()[:8]
		logger.Info("Generating implementation", "function", fullName, "attempt", attempt, "attempt_id", attemptID)

		candidate, err := o.oracle.Generate(ctx, spec, feedback)
		if err != nil {
			// Oracle unavailable: abort this function, report, do not retry.
			logger.Error("Oracle failure", "function", fullName, "attempt_id", attemptID, "error", err)
			return Result{FullName: fullName, Status: StatusFailed, Attempts: attempt, Diagnostic: err.Error()}
		}

		pass, diagnostic := o.harness.RunTest(ctx, spec, candidate)
		if pass {
			o.registry.StoreImplementation(fullName, candidate)
			o.cache.Store(fullName, hash, candidate)
			o.registry.MarkGenerated(fullName)
			logger.Info("Implementation verified and cached", "function", fullName, "attempt", attempt, "attempt_id", attemptID)
			return Result{FullName: fullName, Status: StatusGenerated, Attempts: attempt}
		}

		logger.Warn("Verification failed, retrying with feedback", "function", fullName, "attempt", attempt, "attempt_id", attemptID, "diagnostic", diagnostic)
		feedback = diagnostic
	}

	logger.Error("Attempt budget exhausted", "function", fullName, "attempts", o.attempts)
	return Result{FullName: fullName, Status: StatusFailed, Attempts: o.attempts, Diagnostic: feedback}
}

// ProcessNamespace runs a pass over every function declared in the namespace,
// in declaration order, then saves the namespace's cache partition once.
// Per-function failures never abort processing of sibling functions; the
// returned flag is the AND over all functions.
func (o *Orchestrator) ProcessNamespace(ctx context.Context, namespace string) ([]Result, bool) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Processing namespace", "namespace", namespace)

	o.cache.Load(ctx, namespace)

	specs := o.registry.InNamespace(namespace)
	if len(specs) == 0 {
		logger.Warn("No declared functions in namespace", "namespace", namespace)
		return nil, true
	}

	results := make([]Result, 0, len(specs))
	ok := true
	for _, spec := range specs {
		result := o.ProcessFunction(ctx, spec)
		results = append(results, result)
		ok = ok && result.OK()
	}

	if err := o.cache.Save(ctx, namespace); err != nil {
		// Cache IO problems degrade to "nothing cached"; they do not fail
		// the pass.
		logger.Warn("Could not save cache partition", "namespace", namespace, "error", err)
	}

	logger.Info("Namespace pass finished", "namespace", namespace, "functions", len(specs), "ok", ok)
	return results, ok
}

// ProcessNamespaces runs a pass over each namespace in order, aggregating
// results and the overall success flag.
func (o *Orchestrator) ProcessNamespaces(ctx context.Context, namespaces []string) ([]Result, bool) {
	var all []Result
	ok := true
	for _, namespace := range namespaces {
		results, nsOK := o.ProcessNamespace(ctx, namespace)
		all = append(all, results...)
		ok = ok && nsOK
	}
	return all, ok
}
