package smoke

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/covid19india/internal/domain/model"
	"github.com/okian/covid19india/pkg/logger"
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	PercentageMultiplier    = 100
)

type runner struct {
	cfg    *Config
	client *HTTPClient
	log    logger.Logger
	stats  *Stats

	failures atomic.Int64
}

// Run executes the complete smoke test against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	r := &runner{
		cfg:    cfg,
		client: newHTTPClient(strings.TrimRight(cfg.BaseURL, "/"), cfg.Timeout),
		log:    logger.Get().Named("smoke"),
		stats:  &Stats{StartTime: time.Now()},
	}
	if r.cfg.Workers < 1 {
		r.cfg.Workers = 1
	}

	r.log.Info(ctx, "starting covid19india smoke test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("districts", cfg.Districts),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()))

	err := r.run(ctx)

	r.stats.Failures = int(r.failures.Load())
	r.stats.EndTime = time.Now()
	r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)
	r.displayFinalStats(ctx)

	if err != nil {
		return r.stats, err
	}
	r.log.Info(ctx, "smoke test completed successfully")
	return r.stats, nil
}

func (r *runner) run(ctx context.Context) (runErr error) {
	// Step 1: Check service health
	if err := r.checkServiceHealth(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Pick the target state
	state, err := r.pickState(ctx)
	if err != nil {
		return fmt.Errorf("listing states failed: %w", err)
	}

	before, err := r.stateStats(ctx, state.StateID)
	if err != nil {
		return fmt.Errorf("reading stats failed: %w", err)
	}

	// Step 3: Insert districts concurrently
	inputs := generateDistricts(r.cfg.Districts, state.StateID)
	districts, err := r.insertDistricts(ctx, inputs)

	// Step 6: Delete whatever was created, even if a later step fails, and
	// verify each district is gone.
	defer func() {
		if derr := r.deleteDistricts(context.WithoutCancel(ctx), districts); derr != nil {
			runErr = errors.Join(runErr, fmt.Errorf("district delete failed: %w", derr))
		}
	}()
	if err != nil {
		return fmt.Errorf("district insert failed: %w", err)
	}

	// Step 4: Read every district back
	if err := r.readBack(ctx, districts); err != nil {
		return fmt.Errorf("read back failed: %w", err)
	}

	// Step 5: Verify aggregates and the state join
	after, err := r.stateStats(ctx, state.StateID)
	if err != nil {
		return fmt.Errorf("reading stats failed: %w", err)
	}
	if err := verifyStatsDelta(before, after, inputs); err != nil {
		return err
	}
	if err := r.verifyDetails(ctx, districts, state.StateName); err != nil {
		return err
	}
	return nil
}

// checkServiceHealth verifies the service is running and storage is reachable.
func (r *runner) checkServiceHealth(ctx context.Context) error {
	r.log.Info(ctx, "checking service health")

	resp, err := r.client.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if resp.Status != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrUnhealthy, resp.Status, resp.Body)
	}

	r.log.Info(ctx, "service is healthy")
	return nil
}

// pickState lists states and returns the configured one, or the first.
func (r *runner) pickState(ctx context.Context) (model.State, error) {
	var states []model.State
	if err := r.client.getJSON(ctx, "/states/", &states); err != nil {
		return model.State{}, err
	}
	r.stats.StatesListed = len(states)
	if len(states) == 0 {
		return model.State{}, ErrNoStates
	}
	if r.cfg.StateID == 0 {
		return states[0], nil
	}
	for _, s := range states {
		if s.StateID == r.cfg.StateID {
			return s, nil
		}
	}
	return model.State{}, fmt.Errorf("%w: state %d not listed", ErrVerification, r.cfg.StateID)
}

func (r *runner) stateStats(ctx context.Context, stateID int64) (model.StateStats, error) {
	var stats model.StateStats
	err := r.client.getJSON(ctx, "/states/"+strconv.FormatInt(stateID, 10)+"/stats/", &stats)
	return stats, err
}

// insertDistricts posts every input and collects the returned locations.
func (r *runner) insertDistricts(ctx context.Context, inputs []model.DistrictInput) ([]created, error) {
	r.log.Info(ctx, "inserting districts", logger.Int("count", len(inputs)))

	var mu sync.Mutex
	out := make([]created, 0, len(inputs))
	err := runPool(ctx, r.cfg.Workers, inputs, func(ctx context.Context, in model.DistrictInput) error {
		resp, err := r.client.do(ctx, http.MethodPost, "/districts/", in)
		if err != nil {
			return err
		}
		if err := expectStatus(resp, http.MethodPost, "/districts/", http.StatusOK); err != nil {
			return err
		}
		loc := resp.Header.Get("Location")
		id, err := parseLocation(loc)
		if err != nil {
			return err
		}
		r.debug(ctx, "district inserted", logger.String("location", loc))

		mu.Lock()
		out = append(out, created{Input: in, Location: loc, ID: id})
		mu.Unlock()
		return nil
	})
	r.stats.DistrictsCreated = len(out)
	r.failures.Add(int64(len(inputs) - len(out)))
	return out, err
}

// readBack fetches each inserted district and compares every field.
func (r *runner) readBack(ctx context.Context, districts []created) error {
	r.log.Info(ctx, "reading districts back", logger.Int("count", len(districts)))

	var read atomic.Int64
	err := runPool(ctx, r.cfg.Workers, districts, func(ctx context.Context, c created) error {
		var got model.District
		if err := r.client.getJSON(ctx, c.Location, &got); err != nil {
			r.failures.Add(1)
			return err
		}
		if err := verifyDistrict(c, got); err != nil {
			r.failures.Add(1)
			return err
		}
		read.Add(1)
		return nil
	})
	r.stats.DistrictsRead = int(read.Load())
	return err
}

// verifyDetails checks that every district joins to stateName.
func (r *runner) verifyDetails(ctx context.Context, districts []created, stateName string) error {
	return runPool(ctx, r.cfg.Workers, districts, func(ctx context.Context, c created) error {
		var details model.DistrictDetails
		if err := r.client.getJSON(ctx, c.Location+"details/", &details); err != nil {
			r.failures.Add(1)
			return err
		}
		if details.StateName != stateName {
			r.failures.Add(1)
			return fmt.Errorf("%w: district %d: state name %q want %q",
				ErrVerification, c.ID, details.StateName, stateName)
		}
		return nil
	})
}

// deleteDistricts removes each district and checks it is gone.
func (r *runner) deleteDistricts(ctx context.Context, districts []created) error {
	r.log.Info(ctx, "deleting districts", logger.Int("count", len(districts)))

	var deleted atomic.Int64
	err := runPool(ctx, r.cfg.Workers, districts, func(ctx context.Context, c created) error {
		resp, err := r.client.do(ctx, http.MethodDelete, c.Location, nil)
		if err != nil {
			return err
		}
		if err := expectStatus(resp, http.MethodDelete, c.Location, http.StatusOK); err != nil {
			return err
		}
		resp, err = r.client.do(ctx, http.MethodGet, c.Location, nil)
		if err != nil {
			return err
		}
		if err := expectStatus(resp, http.MethodGet, c.Location, http.StatusNotFound); err != nil {
			return err
		}
		deleted.Add(1)
		return nil
	})
	r.stats.DistrictsDeleted = int(deleted.Load())
	return err
}

func (r *runner) debug(ctx context.Context, msg string, fields ...logger.Field) {
	if r.cfg.Verbose {
		r.log.Debug(ctx, msg, fields...)
	}
}

// displayFinalStats logs the final run statistics.
func (r *runner) displayFinalStats(ctx context.Context) {
	var successRate, requestsPerSecond float64
	s := r.stats

	if s.DistrictsCreated > 0 {
		successRate = float64(s.DistrictsRead) / float64(s.DistrictsCreated) * PercentageMultiplier
	}
	if s.Duration > 0 {
		// insert + read + details + delete + verify-404
		requestsPerSecond = float64(s.DistrictsCreated*5) / s.Duration.Seconds()
	}

	r.log.Info(ctx, "final statistics",
		logger.Int("statesListed", s.StatesListed),
		logger.Int("districtsCreated", s.DistrictsCreated),
		logger.Int("districtsRead", s.DistrictsRead),
		logger.Int("districtsDeleted", s.DistrictsDeleted),
		logger.Int("failures", s.Failures),
		logger.String("duration", s.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("requestsPerSecond", requestsPerSecond))
}

// runPool applies fn to every item with workers goroutines and joins the errors.
func runPool[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) error {
	itemChan := make(chan T, workers*WorkerChannelMultiplier)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemChan {
				if err := fn(ctx, item); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

	// Send items to workers
	go func() {
		defer close(itemChan)
		for _, item := range items {
			select {
			case <-ctx.Done():
				return
			case itemChan <- item:
			}
		}
	}()

	wg.Wait()
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// parseLocation extracts the id from a /districts/{id}/ location.
func parseLocation(loc string) (int64, error) {
	raw := strings.TrimSuffix(strings.TrimPrefix(loc, "/districts/"), "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad Location %q", ErrVerification, loc)
	}
	return id, nil
}
