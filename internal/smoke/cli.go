package smoke

import (
	"fmt"
	"os"

	"github.com/okian/covid19india/pkg/logger"
)

// SetupLogging initializes the console logger; verbose enables debug output.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := logger.SetFormat(logger.FormatConsole, os.Stdout); err != nil {
		return fmt.Errorf("failed to set log format: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the smoke tool.
func ShowHelp() {
	os.Stdout.WriteString(`covid19india smoke test
=======================

Inserts districts concurrently into a running service, reads them back,
checks the state stats and details, then deletes them again.

Usage:
  go run ./cmd/smoke [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:3000")
  -districts int
        Number of districts to insert (default 200)
  -state int
        State the districts belong to; 0 picks the first listed state (default 0)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -verbose
        Log every request
  -help
        Show this help message

Examples:
  # Run with default settings
  go run ./cmd/smoke

  # Larger run against another host
  go run ./cmd/smoke -districts 5000 -workers 16 -url http://localhost:8080
`)
}
