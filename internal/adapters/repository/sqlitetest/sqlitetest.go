// Package sqlitetest builds throwaway SQLite database files with the state and
// district schema for tests.
package sqlitetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// Schema is the table layout the service expects to find in the storage file.
const Schema = `
CREATE TABLE state (
    state_id INTEGER NOT NULL PRIMARY KEY,
    state_name TEXT,
    population INTEGER
);
CREATE TABLE district (
    district_id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
    district_name TEXT,
    state_id INTEGER,
    cases INTEGER,
    cured INTEGER,
    active INTEGER,
    deaths INTEGER
);`

// State is a seed row for the state table.
type State struct {
	ID         int64
	Name       string
	Population int64
}

// DefaultStates are seeded by NewDB when no states are given.
var DefaultStates = []State{
	{ID: 1, Name: "Andaman and Nicobar Islands", Population: 380581},
	{ID: 2, Name: "Andhra Pradesh", Population: 49386799},
	{ID: 17, Name: "Kerala", Population: 33406061},
}

// NewDB creates a database file under t.TempDir() containing the schema and
// the given states (DefaultStates when none are passed) and returns its path.
func NewDB(t testing.TB, states ...State) string {
	t.Helper()
	if len(states) == 0 {
		states = DefaultStates
	}

	path := filepath.Join(t.TempDir(), "covid19India.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	for _, s := range states {
		if _, err := db.Exec(`INSERT INTO state (state_id, state_name, population) VALUES (?, ?, ?);`,
			s.ID, s.Name, s.Population); err != nil {
			t.Fatalf("seed state %d: %v", s.ID, err)
		}
	}
	return path
}

// NewEmptyDB creates a database file with no tables and returns its path.
func NewEmptyDB(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer func() { _ = db.Close() }()
	// Force the file to be written.
	if _, err := db.Exec(`CREATE TABLE unrelated (id INTEGER);`); err != nil {
		t.Fatalf("create file: %v", err)
	}
	return path
}
