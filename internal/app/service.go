// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	repository "github.com/okian/covid19india/internal/adapters/repository"
	"github.com/okian/covid19india/internal/domain/model"
	"github.com/okian/covid19india/pkg/logger"
	"github.com/okian/covid19india/pkg/metrics"
)

// Mutation kinds recorded in metrics.
const (
	mutationAdd    = "add"
	mutationUpdate = "update"
	mutationDelete = "delete"
)

// ErrNotStarted is returned by data operations before Start succeeds.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies on top of a repository.Store.
type Service struct {
	mu sync.RWMutex

	store repository.Store

	// Configuration
	dbPath      string
	busyTimeout time.Duration

	// State
	started bool
	owned   bool // store was opened by Start and is closed by Stop

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDBPath sets the SQLite file opened by Start.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithBusyTimeout sets the SQLite busy timeout used by Start.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithStore injects an already opened store. Start will not open another one
// and Stop will not close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:      "covid19India.db",
		busyTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the storage file unless a store was injected.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.store == nil {
		s.logger.Info(ctx, "opening database", logger.String("path", s.dbPath))
		store, err := repository.NewSQLiteStore(ctx, s.dbPath, repository.WithBusyTimeout(s.busyTimeout))
		if err != nil {
			return fmt.Errorf("start service: %w", err)
		}
		s.store = store
		s.owned = true
	}

	s.started = true
	s.logger.Info(ctx, "covid19india service started", logger.String("dbPath", s.dbPath))
	return nil
}

// Stop closes the store if Start opened it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.owned {
		if err := s.store.Close(); err != nil {
			s.logger.Error(context.Background(), "closing database failed", logger.Error(err))
		}
		s.store = nil
		s.owned = false
	}
	s.started = false
	s.logger.Info(context.Background(), "covid19india service stopped")
}

// repo returns the store or ErrNotStarted.
func (s *Service) repo() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started || s.store == nil {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// ListStates returns all states.
func (s *Service) ListStates(ctx context.Context) ([]model.State, error) {
	store, err := s.repo()
	if err != nil {
		return nil, err
	}
	return store.ListStates(ctx)
}

// GetState returns one state.
func (s *Service) GetState(ctx context.Context, stateID int64) (model.State, error) {
	store, err := s.repo()
	if err != nil {
		return model.State{}, err
	}
	return store.GetState(ctx, stateID)
}

// AddDistrict inserts a district and returns its id.
func (s *Service) AddDistrict(ctx context.Context, in model.DistrictInput) (int64, error) {
	store, err := s.repo()
	if err != nil {
		return 0, err
	}
	id, err := store.AddDistrict(ctx, in)
	if err != nil {
		return 0, err
	}
	metrics.RecordDistrictMutation(mutationAdd)
	s.logger.Info(ctx, "district added",
		logger.Int64("districtId", id),
		logger.String("districtName", in.DistrictName),
		logger.Int64("stateId", in.StateID),
	)
	return id, nil
}

// GetDistrict returns one district.
func (s *Service) GetDistrict(ctx context.Context, districtID int64) (model.District, error) {
	store, err := s.repo()
	if err != nil {
		return model.District{}, err
	}
	return store.GetDistrict(ctx, districtID)
}

// UpdateDistrict replaces all mutable fields of a district.
func (s *Service) UpdateDistrict(ctx context.Context, districtID int64, in model.DistrictInput) error {
	store, err := s.repo()
	if err != nil {
		return err
	}
	if err := store.UpdateDistrict(ctx, districtID, in); err != nil {
		return err
	}
	metrics.RecordDistrictMutation(mutationUpdate)
	s.logger.Info(ctx, "district updated", logger.Int64("districtId", districtID))
	return nil
}

// DeleteDistrict removes a district.
func (s *Service) DeleteDistrict(ctx context.Context, districtID int64) error {
	store, err := s.repo()
	if err != nil {
		return err
	}
	if err := store.DeleteDistrict(ctx, districtID); err != nil {
		return err
	}
	metrics.RecordDistrictMutation(mutationDelete)
	s.logger.Info(ctx, "district removed", logger.Int64("districtId", districtID))
	return nil
}

// StateStats returns case totals for a state.
func (s *Service) StateStats(ctx context.Context, stateID int64) (model.StateStats, error) {
	store, err := s.repo()
	if err != nil {
		return model.StateStats{}, err
	}
	return store.StateStats(ctx, stateID)
}

// DistrictStateName returns the name of the state a district belongs to.
func (s *Service) DistrictStateName(ctx context.Context, districtID int64) (model.DistrictDetails, error) {
	store, err := s.repo()
	if err != nil {
		return model.DistrictDetails{}, err
	}
	return store.DistrictStateName(ctx, districtID)
}

// Ping checks that storage is reachable.
func (s *Service) Ping(ctx context.Context) error {
	store, err := s.repo()
	if err != nil {
		return err
	}
	return store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": s.started,
		"dbPath":  s.dbPath,
	}

	if s.started && s.store != nil {
		db := s.store.Stats()
		stats["openConnections"] = db.OpenConnections
		stats["inUse"] = db.InUse
		stats["idle"] = db.Idle
		stats["waitCount"] = db.WaitCount

		metrics.UpdateDBStats(db)
	}

	return stats
}
