// Package repository defines the case-statistics store interface and its
// SQLite implementation.
package repository

import (
	"context"
	"database/sql"

	"github.com/okian/covid19india/internal/domain/model"
)

// Store provides read/write access to the state and district tables.
// Every method runs exactly one SQL statement.
type Store interface {
	// ListStates returns all states in storage order.
	ListStates(ctx context.Context) ([]model.State, error)
	// GetState returns ErrNotFound if no state has the id.
	GetState(ctx context.Context, stateID int64) (model.State, error)

	// AddDistrict inserts a district and returns the storage-assigned id.
	AddDistrict(ctx context.Context, in model.DistrictInput) (int64, error)
	// GetDistrict returns ErrNotFound if no district has the id.
	GetDistrict(ctx context.Context, districtID int64) (model.District, error)
	// UpdateDistrict overwrites all mutable fields. Updating a missing id is not an error.
	UpdateDistrict(ctx context.Context, districtID int64, in model.DistrictInput) error
	// DeleteDistrict removes the district. Deleting a missing id is not an error.
	DeleteDistrict(ctx context.Context, districtID int64) error

	// StateStats sums case counts over the districts of a state.
	StateStats(ctx context.Context, stateID int64) (model.StateStats, error)
	// DistrictStateName joins a district to its state. Returns ErrNotFound when
	// the district is missing or references no existing state.
	DistrictStateName(ctx context.Context, districtID int64) (model.DistrictDetails, error)

	// Ping checks that the storage file is reachable.
	Ping(ctx context.Context) error
	// Stats reports connection pool statistics.
	Stats() sql.DBStats
	// Close releases the connection.
	Close() error
}
