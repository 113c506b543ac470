package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vk/parablock/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("parablock", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
parablock - declare functions by specification, let an oracle implement them.

Usage:
  parablock [options] [DECLARATIONS_PATH]

Arguments:
  DECLARATIONS_PATH
    Path to a single .hcl declaration file or a directory tree of them.

Options:
`)
		flagSet.PrintDefaults()
	}

	pathFlag := flagSet.String("path", "", "Path to the declaration file or directory.")
	pFlag := flagSet.String("p", "", "Path to the declaration file or directory (shorthand).")
	cacheDirFlag := flagSet.String("cache-dir", app.DefaultCacheDir, "Directory holding per-namespace cache partitions.")
	attemptsFlag := flagSet.Int("attempts", app.DefaultAttempts, "Generate/verify attempt budget per function.")
	watchFlag := flagSet.Bool("watch", false, "Keep running and reconcile namespaces when declarations change.")
	inspectFlag := flagSet.String("inspect", "", "Print the spec and implementation of one function (full name) and exit.")
	oracleURLFlag := flagSet.String("oracle-url", app.DefaultOracleBaseURL, "Base URL of the OpenAI-compatible synthesis endpoint.")
	oracleModelFlag := flagSet.String("oracle-model", app.DefaultOracleModel, "Model requested from the synthesis endpoint.")
	oracleTimeoutFlag := flagSet.Duration("oracle-timeout", app.DefaultOracleTimeout, "Timeout for one synthesis call; a timeout counts as an oracle failure.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *pathFlag != "" {
		path = *pathFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		Path:          path,
		CacheDir:      *cacheDirFlag,
		Attempts:      *attemptsFlag,
		Watch:         *watchFlag,
		Inspect:       *inspectFlag,
		OracleBaseURL: *oracleURLFlag,
		OracleModel:   *oracleModelFlag,
		OracleAPIKey:  apiKeyFromEnv(),
		OracleTimeout: *oracleTimeoutFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}

// apiKeyFromEnv resolves the oracle API key, preferring the tool-specific
// variable over the conventional OpenAI one.
func apiKeyFromEnv() string {
	if key := os.Getenv("PARABLOCK_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}
