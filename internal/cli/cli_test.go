package cli_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/parablock/internal/app"
	"github.com/vk/parablock/internal/cli"
)

func TestParsePositionalPath(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := cli.Parse([]string{"./functions"}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	require.NotNil(t, cfg)

	assert.Equal(t, "./functions", cfg.Path)
	assert.Equal(t, app.DefaultCacheDir, cfg.CacheDir)
	assert.Equal(t, app.DefaultAttempts, cfg.Attempts)
	assert.Equal(t, app.DefaultOracleBaseURL, cfg.OracleBaseURL)
	assert.Equal(t, app.DefaultOracleModel, cfg.OracleModel)
	assert.False(t, cfg.Watch)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := cli.Parse([]string{
		"-path", "decl",
		"-cache-dir", "/tmp/pc",
		"-attempts", "5",
		"-watch",
		"-inspect", "util.math.double",
		"-oracle-url", "http://localhost:8080/v1",
		"-oracle-model", "local-model",
		"-oracle-timeout", "90s",
		"-log-format", "json",
		"-log-level", "debug",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "decl", cfg.Path)
	assert.Equal(t, "/tmp/pc", cfg.CacheDir)
	assert.Equal(t, 5, cfg.Attempts)
	assert.True(t, cfg.Watch)
	assert.Equal(t, "util.math.double", cfg.Inspect)
	assert.Equal(t, "http://localhost:8080/v1", cfg.OracleBaseURL)
	assert.Equal(t, "local-model", cfg.OracleModel)
	assert.Equal(t, 90*time.Second, cfg.OracleTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseShorthandPath(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := cli.Parse([]string{"-p", "decl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "decl", cfg.Path)
}

func TestParseNoPathPrintsUsage(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := cli.Parse([]string{}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseHelp(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := cli.Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
}

func TestParseInvalidValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
	}{
		{name: "bad log format", args: []string{"-log-format", "xml", "decl"}},
		{name: "bad log level", args: []string{"-log-level", "loud", "decl"}},
		{name: "negative attempts", args: []string{"-attempts", "-1", "decl"}},
		{name: "unknown flag", args: []string{"-frobnicate", "decl"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			_, _, err := cli.Parse(tc.args, &out)
			require.Error(t, err)

			var exitErr *cli.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("PARABLOCK_API_KEY", "pk-123")
	t.Setenv("OPENAI_API_KEY", "sk-456")

	var out bytes.Buffer
	cfg, _, err := cli.Parse([]string{"decl"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "pk-123", cfg.OracleAPIKey)

	t.Setenv("PARABLOCK_API_KEY", "")
	cfg, _, err = cli.Parse([]string{"decl"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "sk-456", cfg.OracleAPIKey)
}
