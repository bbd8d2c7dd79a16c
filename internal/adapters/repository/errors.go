package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrOpen          = errors.New("open database failed")
	ErrSchemaMissing = errors.New("database schema missing")
)
