package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrPermissionDenied is returned when database listing is disabled
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidName is returned for names that are not safe database identifiers
	ErrInvalidName = errors.New("invalid database name")
)

// OpenFunc opens a connection pool onto the named database
type OpenFunc func(ctx context.Context, dbname string) (*Handle, error)

// Handle is an open connection pool onto one database. It embeds *sql.DB so
// callers issue queries directly on it.
type Handle struct {
	*sql.DB
	name string
	pool *pgxpool.Pool
}

// WrapDB turns a plain *sql.DB into a Handle for the given database
func WrapDB(name string, db *sql.DB) *Handle {
	return &Handle{DB: db, name: name}
}

// Name returns the database the handle is connected to
func (h *Handle) Name() string {
	return h.name
}

// Close closes the sql.DB and, when present, the underlying pgx pool
func (h *Handle) Close() error {
	var err error
	if h.DB != nil {
		err = h.DB.Close()
	}
	if h.pool != nil {
		h.pool.Close()
	}
	return err
}
