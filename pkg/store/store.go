// Package store persists proxy tenancy and editor transcripts in
// PostgreSQL. Plain database/sql over the pgx driver; the schema is owned
// by the embedded migrations in pkg/database.
package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateDomain is returned when registering a proxy site for a
	// domain that already has one.
	ErrDuplicateDomain = errors.New("domain already registered")

	// ErrUnknownTier is returned when a tier change names a tier that is
	// not in proxy_subscription_tiers. Nothing is written.
	ErrUnknownTier = errors.New("unknown subscription tier")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// opTimeout bounds every single store operation.
const opTimeout = 5 * time.Second

// Store runs all SQL against one shared pool.
type Store struct {
	db *sql.DB
}

// New wraps an open pool. The caller owns the pool's lifecycle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// failure (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isForeignKeyViolation reports whether err is a PostgreSQL foreign-key
// failure (SQLSTATE 23503).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
