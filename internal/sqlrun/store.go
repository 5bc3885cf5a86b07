package sqlrun

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"

	DefaultDriver = DriverCGO
)

// memoryDSN gives every connection its own private in-memory database.
const memoryDSN = ":memory:"

// SupportedDriver reports whether name is one of the registered SQLite drivers.
func SupportedDriver(name string) bool {
	return name == DriverCGO || name == DriverPureGo
}

// Store is an ephemeral in-memory database owned by a single request. All
// statements go through one pinned connection, since a second connection to
// :memory: would see a different, empty database.
type Store struct {
	id   string
	db   *sql.DB
	conn *sql.Conn
}

// OpenStore opens an empty in-memory database on driver and pins its only
// connection. Callers must Close it.
func OpenStore(ctx context.Context, driver string) (*Store, error) {
	if strings.TrimSpace(driver) == "" {
		driver = DefaultDriver
	}
	if !SupportedDriver(driver) {
		return nil, fmt.Errorf("unsupported engine driver %q", driver)
	}

	db, err := sql.Open(driver, memoryDSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		id:   uuid.NewString(),
		db:   db,
		conn: conn,
	}, nil
}

func (s *Store) ID() string {
	return s.id
}

// LoadSchema splits schema on every semicolon and executes each non-blank
// fragment in order. The split does not look inside string literals, so a
// seed value containing ';' breaks the load. The first failing fragment
// aborts the load.
func (s *Store) LoadSchema(ctx context.Context, schema string) error {
	for _, fragment := range splitSchema(schema) {
		if _, err := s.conn.ExecContext(ctx, fragment); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the connection and the database. Safe to call more than once.
func (s *Store) Close() error {
	var firstErr error
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			firstErr = err
		}
		s.conn = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.db = nil
	}
	return firstErr
}

func splitSchema(schema string) []string {
	parts := strings.Split(schema, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		statements = append(statements, trimmed+";")
	}
	return statements
}
