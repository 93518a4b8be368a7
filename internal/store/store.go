package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// EventFunc lets the store emit bus events without importing eventbus
// directly -- the caller (typically main, wiring store.Open) supplies a
// closure over the real *eventbus.Bus. Keeps store free of a websocket
// dependency while still satisfying "bus emissions never roll back a
// transaction": the store calls this strictly after commit.
type EventFunc func(eventType string, payload map[string]any)

// Event types the store itself publishes. Mirrors eventbus's own constants
// by value rather than importing that package, per EventFunc's decoupling.
const (
	TypeWorkspace             = "workspace"
	TypePageHighlightStarted  = "page_highlight_started"
	TypePageHighlightComplete = "page_highlight_complete"
	TypePageHighlightFailed   = "page_highlight_failed"
	TypeMessage               = "message"
	TypeSchedule              = "schedule"
	TypeCompaction            = "compaction"
)

// Store is Maestro's durable relational state layer.
type Store struct {
	db       *sql.DB
	log      *logrus.Entry
	emit     EventFunc
	postgres bool
}

// Open opens (and migrates) the database identified by dsn. A
// "postgres://" scheme selects the pgx stdlib driver; anything else
// (including a bare filesystem path or a "sqlite://" scheme) selects
// modernc.org/sqlite.
func Open(ctx context.Context, dsn string, log *logrus.Entry, emit EventFunc) (*Store, error) {
	driver, source := driverFor(dsn)

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer avoids SQLITE_BUSY churn
	}

	s := &Store{db: db, log: log, emit: emit, postgres: driver == "pgx"}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

func driverFor(dsn string) (driver, source string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", withForeignKeys(strings.TrimPrefix(dsn, "sqlite://"))
	default:
		return "sqlite", withForeignKeys(dsn)
	}
}

// withForeignKeys appends the pragma modernc.org/sqlite needs to enforce the
// ON DELETE CASCADE clauses in schema.sql -- SQLite defaults foreign_keys to
// OFF on every new connection, cascade or not.
func withForeignKeys(source string) string {
	sep := "?"
	if strings.Contains(source, "?") {
		sep = "&"
	}
	return source + sep + "_pragma=foreign_keys(1)"
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";\n\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement: %w\n%s", err, stmt)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) publish(eventType string, payload map[string]any) {
	if s.emit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.WithField("panic", r).Error("store event emission recovered")
		}
	}()
	s.emit(eventType, payload)
}

// withTx runs fn inside one transaction: commits on nil error, rolls back
// otherwise. Every public Store method that mutates state goes through
// this, matching the "each public function is one transaction" contract.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func now() time.Time { return time.Now().UTC() }

// q rewrites a query written with "?" placeholders (the SQLite/MySQL
// convention, and what every store method is written against) into
// Postgres's "$1, $2, ..." positional form when the backend is Postgres.
// Keeps every call site backend-agnostic rather than duplicating each
// query per driver.
func (s *Store) q(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
