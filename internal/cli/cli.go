// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates CLI flags into the application's internal configuration.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/etude/internal/app"
	"github.com/vk/etude/internal/optimizer"
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

// Parse processes command-line arguments. It returns a populated app
// Config, a boolean indicating if the program should exit cleanly, or an
// ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("etude", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
etude - computation graph engine for on-device speech synthesis models.

Usage:
  etude [options] [MODEL_PATH]

Arguments:
  MODEL_PATH
    Path to an .hcl model description file.

Options:
`)
		flagSet.PrintDefaults()
	}

	modelFlag := flagSet.String("model", "", "Path to the model description file.")
	mFlag := flagSet.String("m", "", "Path to the model description file (shorthand).")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 1, "Number of executor workers. 1 runs the sequential path.")
	optFlag := flagSet.String("opt", "all", "Optimization passes: comma list of 'fusion', 'deadcode', 'memory', or 'all'/'none'.")
	poolSizeFlag := flagSet.Int("pool-size", 0, "Tensor pool budget in elements. 0 uses the default.")
	inputLenFlag := flagSet.Int("input-length", 16, "Length of the synthesized input tensors.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *modelFlag != "" {
		path = *modelFlag
	} else if *mFlag != "" {
		path = *mFlag
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

	optFlags, err := parseOptFlags(*optFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	config, err := app.NewConfig(app.Config{
		ModelPath:   path,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
		WorkerCount: *workersFlag,
		PoolSize:    *poolSizeFlag,
		InputLength: *inputLenFlag,
		OptFlags:    optFlags,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}

// parseOptFlags converts the comma-separated pass list into a bitmask.
func parseOptFlags(s string) (optimizer.Flags, error) {
	var flags optimizer.Flags
	for _, part := range strings.Split(strings.ToLower(s), ",") {
		switch strings.TrimSpace(part) {
		case "", "none":
			// nothing selected
		case "all":
			flags |= optimizer.FlagAll
		case "fusion":
			flags |= optimizer.FlagFusion
		case "deadcode":
			flags |= optimizer.FlagDeadCode
		case "memory":
			flags |= optimizer.FlagMemory
		default:
			return 0, fmt.Errorf("invalid opt pass %q: must be 'fusion', 'deadcode', 'memory', 'all' or 'none'", part)
		}
	}
	return flags, nil
}
