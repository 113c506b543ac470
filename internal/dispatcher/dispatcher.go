// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file implements the runtime call path: resolving a declared function
// call to its cached, verified implementation and executing it with the
// caller's arguments.
//
// Why escalate to the parent namespace on a miss?
//
// A function's implementation is normally cached in its own namespace's
// partition, but a pass over a parent namespace may have produced the record
// before the child partition ever existed. One level of parent escalation
// covers that layout without turning dispatch into a filesystem walk.
package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/parablock/internal/cache"
	"github.com/vk/parablock/internal/ctxlog"
	"github.com/vk/parablock/internal/executor"
	"github.com/vk/parablock/internal/model"
	"github.com/vk/parablock/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

// NoImplementationError is returned when a declared function is invoked but
// nothing verified is cached for it.
type NoImplementationError struct {
	FullName string
}

// Error implements the error interface, with remediation guidance.
func (e *NoImplementationError) Error() string {
	return fmt.Sprintf("no implementation available for %s; run 'parablock <declarations-path>' to generate one", e.FullName)
}

// Dispatcher resolves and executes declared function calls.
type Dispatcher struct {
	registry *registry.Registry
	cache    *cache.Cache
	exec     executor.Executor
}

// New creates a Dispatcher over the given registry, cache, and executor.
func New(reg *registry.Registry, c *cache.Cache, exec executor.Executor) *Dispatcher {
	return &Dispatcher{registry: reg, cache: c, exec: exec}
}

// namespaceOf returns the namespace of a dotted full name, or "" when the
// name has no namespace segment.
func namespaceOf(fullName string) string {
	idx := strings.LastIndex(fullName, ".")
	if idx < 0 {
		return ""
	}
	return fullName[:idx]
}

// resolve loads the owning namespace's cache lazily and returns the
// implementation text, escalating one level to the parent namespace when the
// direct namespace has nothing.
func (d *Dispatcher) resolve(ctx context.Context, fullName string) (string, bool) {
	namespace := namespaceOf(fullName)
	if namespace == "" {
		return "", false
	}

	d.cache.Load(ctx, namespace)
	if impl, ok := d.registry.Implementation(fullName); ok {
		return impl, true
	}

	if parent := namespaceOf(namespace); parent != "" {
		d.cache.Load(ctx, parent)
		if impl, ok := d.registry.Implementation(fullName); ok {
			return impl, true
		}
	}
	return "", false
}

// Invoke executes the declared function under fullName with the given
// positional arguments. The self-reference parameter is not part of the call
// signature; arguments map onto the value parameters in declaration order,
// with declared defaults filling omitted trailing arguments.
func (d *Dispatcher) Invoke(ctx context.Context, fullName string, args ...cty.Value) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Dispatching call", "function", fullName, "args", len(args))

	spec := d.registry.Get(fullName)
	implementation, ok := d.resolve(ctx, fullName)
	if spec == nil {
		// resolve may have populated the registry from cache, so re-check.
		spec = d.registry.Get(fullName)
	}
	if spec == nil {
		return cty.NilVal, fmt.Errorf("function %s is not declared", fullName)
	}
	if !ok {
		return cty.NilVal, &NoImplementationError{FullName: fullName}
	}

	params := spec.ValueParams()
	if len(args) > len(params) {
		return cty.NilVal, fmt.Errorf("%s takes at most %d arguments, got %d", fullName, len(params), len(args))
	}

	vars := make(map[string]cty.Value, len(params))
	for i, p := range params {
		switch {
		case i < len(args):
			converted, err := convert.Convert(args[i], p.Type)
			if err != nil {
				return cty.NilVal, fmt.Errorf("argument %q of %s: %w", p.Name, fullName, err)
			}
			vars[p.Name] = converted
		case p.Default != nil:
			vars[p.Name] = *p.Default
		default:
			return cty.NilVal, fmt.Errorf("%s: missing required argument %q", fullName, p.Name)
		}
	}

	self := d.exec.Bind(ctx, spec, implementation)
	val, err := d.exec.Evaluate(ctx, fullName, implementation, vars, map[string]function.Function{
		model.SelfRefName: self,
	})
	if err != nil {
		return cty.NilVal, err
	}
	return convert.Convert(val, spec.ReturnType)
}

// Report is the diagnostic inspection view of a declared function.
type Report struct {
	FullName       string
	Spec           string
	Signature      string
	Hash           string
	Frozen         bool
	Checks         string
	Implementation string
}

// String renders the report as an indented text block.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "function       %s\n", r.FullName)
	fmt.Fprintf(&b, "signature      %s\n", r.Signature)
	fmt.Fprintf(&b, "hash           %s\n", r.Hash)
	fmt.Fprintf(&b, "frozen         %t\n", r.Frozen)
	fmt.Fprintf(&b, "specification  %s\n", r.Spec)
	if r.Checks != "" {
		fmt.Fprintf(&b, "checks\n%s\n", indentBlock(r.Checks))
	}
	if r.Implementation != "" {
		fmt.Fprintf(&b, "implementation\n%s\n", indentBlock(r.Implementation))
	} else {
		b.WriteString("implementation (none)\n")
	}
	return b.String()
}

func indentBlock(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}

// Inspect returns the specification metadata and resolved implementation text
// for a declared function, without invoking it.
func (d *Dispatcher) Inspect(ctx context.Context, fullName string) (*Report, error) {
	implementation, _ := d.resolve(ctx, fullName)

	spec := d.registry.Get(fullName)
	if spec == nil {
		return nil, fmt.Errorf("function %s is not declared", fullName)
	}

	return &Report{
		FullName:       fullName,
		Spec:           spec.Spec,
		Signature:      spec.Signature(),
		Hash:           spec.Hash(),
		Frozen:         spec.Frozen,
		Checks:         spec.CheckSource(),
		Implementation: implementation,
	}, nil
}

// Handle binds a dispatcher to one declared function, giving declaration
// sites a call-time surface: Invoke for real calls, Inspect for diagnostics.
type Handle struct {
	dispatcher *Dispatcher
	fullName   string
}

// Func returns a Handle for the given full name.
func (d *Dispatcher) Func(fullName string) Handle {
	return Handle{dispatcher: d, fullName: fullName}
}

// Invoke calls the bound function.
func (h Handle) Invoke(ctx context.Context, args ...cty.Value) (cty.Value, error) {
	return h.dispatcher.Invoke(ctx, h.fullName, args...)
}

// Inspect returns the bound function's inspection report.
func (h Handle) Inspect(ctx context.Context) (*Report, error) {
	return h.dispatcher.Inspect(ctx, h.fullName)
}
