package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vk/parablock/internal/testutil"
)

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	spec := testutil.ParseFunction(t, "util.math", `
function "double" {
  spec    = "Return the input number multiplied by two."
  returns = number

  param "fn" {}
  param "n" {
    type = number
  }

  check "basic" {
    expr = fn(3) == 6
  }
}
`)

	prompt := buildPrompt(spec, "")
	assert.Contains(t, prompt, `"double"`)
	assert.Contains(t, prompt, "Return the input number multiplied by two.")
	assert.Contains(t, prompt, "- n: number")
	assert.Contains(t, prompt, "fn(3) == 6")
	assert.NotContains(t, prompt, "previous attempt")

	// The self-reference slot is not advertised as a caller-facing parameter.
	assert.NotContains(t, prompt, "- fn:")
}

func TestBuildPromptWithFeedback(t *testing.T) {
	t.Parallel()

	spec := testutil.ParseFunction(t, "ns", `function "f" { spec = "x" }`)

	prompt := buildPrompt(spec, `check "basic" failed: fn(3) == 6 evaluated to false`)
	assert.Contains(t, prompt, "previous attempt failed")
	assert.Contains(t, prompt, "fn(3) == 6 evaluated to false")
}

func TestBuildPromptWithoutParams(t *testing.T) {
	t.Parallel()

	spec := testutil.ParseFunction(t, "ns", `function "answer" { spec = "Return 42." }`)

	prompt := buildPrompt(spec, "")
	assert.Contains(t, prompt, "takes no parameters")
}
