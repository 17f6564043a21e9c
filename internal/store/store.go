package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on reconciliations(session_id, object_id, seq)
const currentSchemaVersion = 1

// Defaults applied by Open.
const (
	DefaultBusyTimeout = 5 * time.Second
	DefaultSynchronous = "normal"
)

// SynchronousModes are the accepted values of WithSynchronous.
var SynchronousModes = []string{"off", "normal", "full", "extra"}

// Store is the SQLite session journal. One connection is kept open, so
// writes from the control thread are serialized by database/sql.
type Store struct {
	db *sql.DB
}

type options struct {
	busyTimeout time.Duration
	synchronous string
}

// Option configures Open.
type Option func(*options)

// WithBusyTimeout sets how long a write waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithSynchronous sets the synchronous pragma: off, normal, full or extra.
// A journal that must survive power loss uses full.
func WithSynchronous(mode string) Option {
	return func(o *options) { o.synchronous = strings.ToLower(mode) }
}

// Open creates or opens the journal at path and brings its schema up to
// date. ":memory:" gives a private in-memory journal.
//
// Opening the same file twice is safe.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: DefaultBusyTimeout, synchronous: DefaultSynchronous}
	for _, opt := range opts {
		opt(&o)
	}
	if !slices.Contains(SynchronousModes, o.synchronous) {
		return nil, fmt.Errorf("invalid synchronous mode %q", o.synchronous)
	}
	if o.busyTimeout < 0 {
		return nil, fmt.Errorf("invalid busy timeout %v", o.busyTimeout)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Pragmas below are per connection; an in-memory journal is also
	// per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db, o); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Query runs a read-only query against the journal for diagnostics.
// Callers close the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func applyPragmas(db *sql.DB, o options) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = " + strings.ToUpper(o.synchronous),
		fmt.Sprintf("PRAGMA busy_timeout = %d", o.busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations brings user_version up to currentSchemaVersion, one step
// at a time.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	steps := []func(*sql.DB) error{migrateToV1}
	for v := version; v < currentSchemaVersion; v++ {
		if err := steps[v](db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 indexes reconciliations by object so per-object correction
// history stays cheap on long sessions.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_reconciliations_object
		ON reconciliations(session_id, object_id, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if got != expected {
		return fmt.Errorf("%s = %q, expected %q", name, got, expected)
	}
	return nil
}
