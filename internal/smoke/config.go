// Package smoke drives a running covid19india API end to end: it inserts
// districts concurrently, reads them back, checks the aggregates and
// removes them again.
package smoke

import (
	"time"

	"github.com/okian/covid19india/internal/domain/model"
)

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Districts int           // Number of districts to insert
	StateID   int64         // State the districts belong to; 0 picks the first listed state
	Workers   int           // Number of concurrent workers
	Timeout   time.Duration // HTTP request timeout
	Verbose   bool          // Log every request
}

// created is a district inserted by the run.
type created struct {
	Input    model.DistrictInput
	Location string
	ID       int64
}

// Stats holds run statistics.
type Stats struct {
	StatesListed     int
	DistrictsCreated int
	DistrictsRead    int
	DistrictsDeleted int
	Failures         int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
