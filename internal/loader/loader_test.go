package loader_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/parablock/internal/loader"
	"github.com/vk/parablock/internal/registry"
	"github.com/vk/parablock/internal/testutil"
)

func TestNamespaceForFile(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		root    string
		path    string
		want    string
		wantErr bool
	}{
		{
			name: "file at the root",
			root: "/decl",
			path: "/decl/greetings.hcl",
			want: "greetings",
		},
		{
			name: "nested file",
			root: "/decl",
			path: "/decl/util/strings.hcl",
			want: "util.strings",
		},
		{
			name: "deeply nested file",
			root: "/decl",
			path: "/decl/a/b/c.hcl",
			want: "a.b.c",
		},
		{
			name:    "file outside the root",
			root:    "/decl",
			path:    "/elsewhere/f.hcl",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := loader.NamespaceForFile(tc.root, tc.path)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDeclareFile(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	root := testutil.WriteTree(t, map[string]string{
		"util/math.hcl": `
function "double" {
  spec    = "Double the input."
  returns = number
  param "n" {
    type = number
  }
}
`,
	})

	reg := registry.New()
	l := loader.New(reg)

	namespace, err := l.DeclareFile(ctx, root, filepath.Join(root, "util", "math.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "util.math", namespace)
	require.NotNil(t, reg.Get("util.math.double"))
}

func TestDeclareFileErrors(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	root := testutil.WriteTree(t, map[string]string{
		"broken.hcl": `function "f" {{{`,
		"baddecl.hcl": `
function "f" {
  returns = number
}
`,
	})

	l := loader.New(registry.New())

	_, err := l.DeclareFile(ctx, root, filepath.Join(root, "broken.hcl"))
	require.Error(t, err)

	_, err = l.DeclareFile(ctx, root, filepath.Join(root, "baddecl.hcl"))
	require.Error(t, err)
}

func TestDeclarePathSingleFile(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	root := testutil.WriteTree(t, map[string]string{
		"greetings.hcl": `function "hello" { spec = "Say hello." }`,
	})

	reg := registry.New()
	l := loader.New(reg)

	namespaces, err := l.DeclarePath(ctx, filepath.Join(root, "greetings.hcl"))
	require.NoError(t, err)
	assert.Equal(t, []string{"greetings"}, namespaces)
	require.NotNil(t, reg.Get("greetings.hello"))
}

func TestDeclarePathTree(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	root := testutil.WriteTree(t, map[string]string{
		"greetings.hcl":    `function "hello" { spec = "Say hello." }`,
		"util/math.hcl":    `function "double" { spec = "Double it." }`,
		"util/strings.hcl": `function "shout" { spec = "Uppercase it." }`,
		"notes.txt":        "not a declaration file",
	})

	reg := registry.New()
	l := loader.New(reg)

	namespaces, err := l.DeclarePath(ctx, root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"greetings", "util.math", "util.strings"}, namespaces)

	assert.NotNil(t, reg.Get("greetings.hello"))
	assert.NotNil(t, reg.Get("util.math.double"))
	assert.NotNil(t, reg.Get("util.strings.shout"))
	assert.Len(t, reg.All(), 3)
}

func TestDeclarePathMissing(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.Context(t)
	l := loader.New(registry.New())

	_, err := l.DeclarePath(ctx, filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}
