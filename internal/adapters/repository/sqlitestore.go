package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/okian/covid19india/internal/domain/model"
	"github.com/okian/covid19india/pkg/metrics"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

const (
	driverName         = "sqlite3"
	defaultBusyTimeout = 5 * time.Second
	msPerSecond        = 1000.0
)

// Operation names used for metrics labels and error context.
const (
	opListStates     = "list_states"
	opGetState       = "get_state"
	opAddDistrict    = "add_district"
	opGetDistrict    = "get_district"
	opUpdateDistrict = "update_district"
	opDeleteDistrict = "delete_district"
	opStateStats     = "state_stats"
	opDistrictState  = "district_state_name"
)

const (
	listStatesQuery = `
    SELECT state_id, state_name, population FROM state;`

	getStateQuery = `
    SELECT state_id, state_name, population FROM state WHERE state_id = ?;`

	addDistrictQuery = `
    INSERT INTO district (district_name, state_id, cases, cured, active, deaths)
    VALUES (?, ?, ?, ?, ?, ?);`

	getDistrictQuery = `
    SELECT district_id, district_name, state_id, cases, cured, active, deaths
    FROM district WHERE district_id = ?;`

	deleteDistrictQuery = `
    DELETE FROM district WHERE district_id = ?;`

	updateDistrictQuery = `
    UPDATE district
    SET district_name = ?, state_id = ?, cases = ?, cured = ?, active = ?, deaths = ?
    WHERE district_id = ?;`

	stateStatsQuery = `
    SELECT SUM(cases), SUM(cured), SUM(active), SUM(deaths)
    FROM district WHERE state_id = ?;`

	districtStateNameQuery = `
    SELECT state.state_name
    FROM district INNER JOIN state ON district.state_id = state.state_id
    WHERE district.district_id = ?;`

	schemaQuery = `
    SELECT count(*) FROM sqlite_master
    WHERE type = 'table' AND name IN ('state', 'district');`
)

const requiredTables = 2

// SQLiteStore is a Store backed by a single SQLite file and one shared connection.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the existing database file at path, pings it and checks
// that the state and district tables are present. It never creates the file
// or the schema.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		path:        path,
		busyTimeout: defaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open(driverName, s.dsn())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	// All requests share one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s.db = db

	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	if err := s.checkSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// dsn builds a read-write, no-create URI so a missing file fails at startup.
// The path is percent-escaped so '?', '#' and '%' in file names stay part of
// the path.
func (s *SQLiteStore) dsn() string {
	q := url.Values{}
	q.Set("mode", "rw")
	q.Set("_busy_timeout", fmt.Sprint(s.busyTimeout.Milliseconds()))
	return "file:" + (&url.URL{Path: s.path}).EscapedPath() + "?" + q.Encode()
}

func (s *SQLiteStore) checkSchema(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, schemaQuery).Scan(&n); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOpen, s.path, err)
	}
	if n != requiredTables {
		return fmt.Errorf("%w: %s: want tables state and district", ErrSchemaMissing, s.path)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// ListStates returns all states in storage order.
func (s *SQLiteStore) ListStates(ctx context.Context) (_ []model.State, err error) {
	defer observe(opListStates, time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, listStatesQuery)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opListStates, err)
	}
	defer func() { _ = rows.Close() }()

	states := []model.State{}
	for rows.Next() {
		var r stateRow
		if err := rows.Scan(&r.StateID, &r.StateName, &r.Population); err != nil {
			return nil, fmt.Errorf("%s: %w", opListStates, err)
		}
		states = append(states, r.toModel())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", opListStates, err)
	}
	return states, nil
}

// GetState returns the state with stateID or ErrNotFound.
func (s *SQLiteStore) GetState(ctx context.Context, stateID int64) (_ model.State, err error) {
	defer observe(opGetState, time.Now(), &err)

	var r stateRow
	err = s.db.QueryRowContext(ctx, getStateQuery, stateID).Scan(&r.StateID, &r.StateName, &r.Population)
	if err != nil {
		return model.State{}, wrapRowErr(opGetState, "state", stateID, err)
	}
	return r.toModel(), nil
}

// AddDistrict inserts a district and returns its assigned id.
func (s *SQLiteStore) AddDistrict(ctx context.Context, in model.DistrictInput) (_ int64, err error) {
	defer observe(opAddDistrict, time.Now(), &err)

	res, err := s.db.ExecContext(ctx, addDistrictQuery,
		in.DistrictName, in.StateID, in.Cases, in.Cured, in.Active, in.Deaths)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", opAddDistrict, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", opAddDistrict, err)
	}
	return id, nil
}

// GetDistrict returns the district with districtID or ErrNotFound.
func (s *SQLiteStore) GetDistrict(ctx context.Context, districtID int64) (_ model.District, err error) {
	defer observe(opGetDistrict, time.Now(), &err)

	var r districtRow
	err = s.db.QueryRowContext(ctx, getDistrictQuery, districtID).Scan(
		&r.DistrictID, &r.DistrictName, &r.StateID, &r.Cases, &r.Cured, &r.Active, &r.Deaths)
	if err != nil {
		return model.District{}, wrapRowErr(opGetDistrict, "district", districtID, err)
	}
	return r.toModel(), nil
}

// UpdateDistrict overwrites every mutable field of the district.
func (s *SQLiteStore) UpdateDistrict(ctx context.Context, districtID int64, in model.DistrictInput) (err error) {
	defer observe(opUpdateDistrict, time.Now(), &err)

	_, err = s.db.ExecContext(ctx, updateDistrictQuery,
		in.DistrictName, in.StateID, in.Cases, in.Cured, in.Active, in.Deaths, districtID)
	if err != nil {
		return fmt.Errorf("%s: %w", opUpdateDistrict, err)
	}
	return nil
}

// DeleteDistrict removes the district with districtID.
func (s *SQLiteStore) DeleteDistrict(ctx context.Context, districtID int64) (err error) {
	defer observe(opDeleteDistrict, time.Now(), &err)

	if _, err = s.db.ExecContext(ctx, deleteDistrictQuery, districtID); err != nil {
		return fmt.Errorf("%s: %w", opDeleteDistrict, err)
	}
	return nil
}

// StateStats sums case counts over the districts of stateID. Totals are nil
// when the state has no districts.
func (s *SQLiteStore) StateStats(ctx context.Context, stateID int64) (_ model.StateStats, err error) {
	defer observe(opStateStats, time.Now(), &err)

	var r statsRow
	err = s.db.QueryRowContext(ctx, stateStatsQuery, stateID).Scan(
		&r.TotalCases, &r.TotalCured, &r.TotalActive, &r.TotalDeaths)
	if err != nil {
		return model.StateStats{}, fmt.Errorf("%s: %w", opStateStats, err)
	}
	return r.toModel(), nil
}

// DistrictStateName returns the name of the state the district belongs to.
func (s *SQLiteStore) DistrictStateName(ctx context.Context, districtID int64) (_ model.DistrictDetails, err error) {
	defer observe(opDistrictState, time.Now(), &err)

	var name sql.NullString
	err = s.db.QueryRowContext(ctx, districtStateNameQuery, districtID).Scan(&name)
	if err != nil {
		return model.DistrictDetails{}, wrapRowErr(opDistrictState, "district", districtID, err)
	}
	return model.DistrictDetails{StateName: name.String}, nil
}

// Ping checks the connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Stats reports connection pool statistics.
func (s *SQLiteStore) Stats() sql.DBStats {
	return s.db.Stats()
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// wrapRowErr translates sql.ErrNoRows into ErrNotFound.
func wrapRowErr(op, entity string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %s %d: %w", op, entity, id, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// observe records statement latency, and failures other than not-found.
func observe(op string, start time.Time, err *error) {
	metrics.RecordRepositoryQueryLatency(op, float64(time.Since(start).Microseconds())/msPerSecond)
	if *err != nil && !errors.Is(*err, ErrNotFound) {
		metrics.RecordRepositoryError(op)
	}
}
