package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/covid19india/internal/smoke"
)

// Default configuration constants.
const (
	defaultDistricts   = 200
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 5 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:3000", "Base URL of the service")
		districts = flag.Int("districts", defaultDistricts, "Number of districts to insert")
		stateID   = flag.Int64("state", 0, "State the districts belong to; 0 picks the first listed state")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose   = flag.Bool("verbose", false, "Log every request")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		smoke.ShowHelp()
		return
	}

	if err := smoke.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	_, err := smoke.Run(ctx, &smoke.Config{
		BaseURL:   *baseURL,
		Districts: *districts,
		StateID:   *stateID,
		Workers:   *workers,
		Timeout:   *timeout,
		Verbose:   *verbose,
	})
	if err != nil {
		os.Stderr.WriteString("Smoke test failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
