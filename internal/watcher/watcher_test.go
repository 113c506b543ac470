package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/parablock/internal/cache"
	"github.com/vk/parablock/internal/executor"
	"github.com/vk/parablock/internal/harness"
	"github.com/vk/parablock/internal/loader"
	"github.com/vk/parablock/internal/model"
	"github.com/vk/parablock/internal/oracle"
	"github.com/vk/parablock/internal/orchestrator"
	"github.com/vk/parablock/internal/registry"
	"github.com/vk/parablock/internal/testutil"
	"github.com/vk/parablock/internal/watcher"
)

const mathDecl = `
function "double" {
  spec    = "Double the input."
  returns = number
  param "fn" {}
  param "n" {
    type = number
  }
  check "basic" {
    expr = fn(3) == 6
  }
}
`

const mathDeclChanged = `
function "double" {
  spec    = "Double the input, but really."
  returns = number
  param "fn" {}
  param "n" {
    type = number
  }
  check "basic" {
    expr = fn(3) == 6
  }
}

function "triple" {
  spec    = "Triple the input."
  returns = number
  param "fn" {}
  param "n" {
    type = number
  }
  check "basic" {
    expr = fn(2) == 6
  }
}
`

type fixture struct {
	root     string
	registry *registry.Registry
	cache    *cache.Cache
	oracle   *testutil.StubOracle
	watcher  *watcher.Watcher
}

func newFixture(t *testing.T, files map[string]string, stub *testutil.StubOracle) *fixture {
	t.Helper()

	root := testutil.WriteTree(t, files)
	reg := registry.New()
	c := cache.New(t.TempDir(), reg)
	l := loader.New(reg)
	orch := orchestrator.New(reg, c, stub, harness.New(executor.New()), 1)

	return &fixture{
		root:     root,
		registry: reg,
		cache:    c,
		oracle:   stub,
		watcher:  watcher.New(root, l, orch, reg, c),
	}
}

func TestReconcileDeclaresAndProcesses(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	stub := &testutil.StubOracle{Responses: []string{"n * 2"}}
	f := newFixture(t, map[string]string{"util/math.hcl": mathDecl}, stub)

	ok, err := f.watcher.Reconcile(ctx, filepath.Join(f.root, "util", "math.hcl"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NotNil(t, f.registry.Get("util.math.double"))
	impl, found := f.registry.Implementation("util.math.double")
	require.True(t, found)
	assert.Equal(t, "n * 2", impl)
	assert.Equal(t, 1, stub.CallCount())
}

func TestReconcilePicksUpChanges(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	stub := &testutil.StubOracle{Responses: []string{"n * 2", "n * 2", "n * 3"}}
	f := newFixture(t, map[string]string{"util/math.hcl": mathDecl}, stub)
	path := filepath.Join(f.root, "util", "math.hcl")

	ok, err := f.watcher.Reconcile(ctx, path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, stub.CallCount())

	require.NoError(t, os.WriteFile(path, []byte(mathDeclChanged), 0o644))
	ok, err = f.watcher.Reconcile(ctx, path)
	require.NoError(t, err)
	assert.True(t, ok)

	// The changed spec regenerated and the new sibling was synthesized too.
	assert.Equal(t, 3, stub.CallCount())
	assert.NotNil(t, f.registry.Get("util.math.triple"))

	spec := f.registry.Get("util.math.double")
	require.NotNil(t, spec)
	assert.Equal(t, "Double the input, but really.", spec.Spec)
}

func TestReconcileRemovedFileClearsNamespace(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	stub := &testutil.StubOracle{Responses: []string{"n * 2"}}
	f := newFixture(t, map[string]string{"util/math.hcl": mathDecl}, stub)
	path := filepath.Join(f.root, "util", "math.hcl")

	ok, err := f.watcher.Reconcile(ctx, path)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, f.registry.Get("util.math.double"))

	require.NoError(t, os.Remove(path))
	ok, err = f.watcher.Reconcile(ctx, path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, f.registry.Get("util.math.double"))
}

func TestReconcileOutsideRoot(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	f := newFixture(t, map[string]string{"util/math.hcl": mathDecl}, &testutil.StubOracle{})

	_, err := f.watcher.Reconcile(ctx, "/elsewhere/math.hcl")
	require.Error(t, err)
}

// overlapOracle fails the test when two generations for the same namespace
// run at the same time.
type overlapOracle struct {
	t      *testing.T
	active atomic.Int32
	calls  atomic.Int32
}

func (o *overlapOracle) Generate(_ context.Context, _ *model.FunctionSpec, _ string) (string, error) {
	if !o.active.CompareAndSwap(0, 1) {
		o.t.Error("concurrent generation for the same namespace")
	}
	time.Sleep(20 * time.Millisecond)
	o.active.Store(0)
	o.calls.Add(1)
	return "n * 2", nil
}

var _ oracle.Oracle = (*overlapOracle)(nil)

func TestReconcileSerializesPerNamespace(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	root := testutil.WriteTree(t, map[string]string{"util/math.hcl": mathDecl})
	reg := registry.New()
	c := cache.New(t.TempDir(), reg)
	stub := &overlapOracle{t: t}
	orch := orchestrator.New(reg, c, stub, harness.New(executor.New()), 1)
	w := watcher.New(root, loader.New(reg), orch, reg, c)

	path := filepath.Join(root, "util", "math.hcl")
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Reconcile(ctx, path)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NotNil(t, reg.Get("util.math.double"))
}

func TestRunReactsToFileEvents(t *testing.T) {
	t.Parallel()

	stub := &testutil.StubOracle{Responses: []string{"n * 2"}}
	f := newFixture(t, map[string]string{"util/math.hcl": mathDecl}, stub)

	baseCtx, _ := testutil.Context(t)
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- f.watcher.Run(ctx)
	}()

	// Give the watcher a moment to register its directories.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(f.root, "util", "math.hcl"), []byte(mathDecl), 0o644))

	require.Eventually(t, func() bool {
		return f.registry.Get("util.math.double") != nil
	}, 3*time.Second, 25*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
