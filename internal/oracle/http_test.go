package oracle

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/parablock/internal/testutil"
)

func newChatServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Model)
		assert.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		assert.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPOracleGenerate(t *testing.T) {
	t.Parallel()

	server := newChatServer(t, http.StatusOK, map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": "```hcl\nn * 2\n```"}},
		},
	})

	o := NewHTTP(HTTPConfig{BaseURL: server.URL, Model: "test-model", Timeout: 5 * time.Second})
	defer o.Close()

	ctx, _ := testutil.Context(t)
	spec := testutil.ParseFunction(t, "ns", `function "double" { spec = "Double it." }`)

	got, err := o.Generate(ctx, spec, "")
	require.NoError(t, err)
	assert.Equal(t, "n * 2", got)
}

func TestHTTPOracleErrorStatus(t *testing.T) {
	t.Parallel()

	server := newChatServer(t, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"message": "rate limit exceeded"},
	})

	o := NewHTTP(HTTPConfig{BaseURL: server.URL, Model: "test-model", Timeout: 5 * time.Second})
	defer o.Close()

	ctx, _ := testutil.Context(t)
	spec := testutil.ParseFunction(t, "ns", `function "f" { spec = "x" }`)

	_, err := o.Generate(ctx, spec, "")
	require.Error(t, err)

	var synthErr *SynthesisError
	require.True(t, errors.As(err, &synthErr))
	assert.Equal(t, "ns.f", synthErr.FullName)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestHTTPOracleEmptyChoices(t *testing.T) {
	t.Parallel()

	server := newChatServer(t, http.StatusOK, map[string]any{"choices": []any{}})

	o := NewHTTP(HTTPConfig{BaseURL: server.URL, Model: "test-model", Timeout: 5 * time.Second})
	defer o.Close()

	ctx, _ := testutil.Context(t)
	spec := testutil.ParseFunction(t, "ns", `function "f" { spec = "x" }`)

	_, err := o.Generate(ctx, spec, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestHTTPOracleEmptyContent(t *testing.T) {
	t.Parallel()

	server := newChatServer(t, http.StatusOK, map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": "   "}},
		},
	})

	o := NewHTTP(HTTPConfig{BaseURL: server.URL, Model: "test-model", Timeout: 5 * time.Second})
	defer o.Close()

	ctx, _ := testutil.Context(t)
	spec := testutil.ParseFunction(t, "ns", `function "f" { spec = "x" }`)

	_, err := o.Generate(ctx, spec, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no code")
}

func TestHTTPOracleTransportFailure(t *testing.T) {
	t.Parallel()

	// A closed server makes the request fail at the transport level.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	o := NewHTTP(HTTPConfig{BaseURL: server.URL, Model: "test-model", Timeout: time.Second})
	defer o.Close()

	ctx, _ := testutil.Context(t)
	spec := testutil.ParseFunction(t, "ns", `function "f" { spec = "x" }`)

	_, err := o.Generate(ctx, spec, "")
	var synthErr *SynthesisError
	require.True(t, errors.As(err, &synthErr))
}
