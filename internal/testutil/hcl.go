package testutil

import (
	"testing"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/stretchr/testify/require"
	"github.com/vk/parablock/internal/model"
)

// ParseFunctions decodes function declarations from inline HCL source into
// the given namespace, failing the test on any diagnostic.
func ParseFunctions(t *testing.T, namespace, src string) []*model.FunctionSpec {
	t.Helper()

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL([]byte(src), namespace+".hcl")
	require.False(t, diags.HasErrors(), "parse: %s", diags.Error())

	ctx, _ := Context(t)
	specs, diags := model.ParseFunctionFile(ctx, file, namespace)
	require.False(t, diags.HasErrors(), "decode: %s", diags.Error())
	return specs
}

// ParseFunction is ParseFunctions for sources declaring exactly one function.
func ParseFunction(t *testing.T, namespace, src string) *model.FunctionSpec {
	t.Helper()

	specs := ParseFunctions(t, namespace, src)
	require.Len(t, specs, 1)
	return specs[0]
}
