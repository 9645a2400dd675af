// Package store keeps a history of readings in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lib/pq"

	"github.com/sweeney/dht-logger/internal/logic"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "dht_readings"

// undefinedTable is the Postgres SQLSTATE for a missing relation.
const undefinedTable = "42P01"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store writes readings to a single table.
type Store struct {
	db     execer
	closer io.Closer
	table  string
}

// Open connects to the database at dsn and checks the connection.
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(db, table)
	s.closer = db
	return s, nil
}

// New wraps an existing connection.
func New(db execer, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: table}
}

// Table returns the quoted table name.
func (s *Store) Table() string {
	return pq.QuoteIdentifier(s.table)
}

// Migrate creates the readings table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	device TEXT NOT NULL,
	taken_at TIMESTAMPTZ NOT NULL,
	humidity DOUBLE PRECISION NOT NULL,
	temperature_c DOUBLE PRECISION NOT NULL,
	heat_index_c DOUBLE PRECISION NOT NULL,
	raw BYTEA NOT NULL
)`, s.Table())
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

// Save inserts one reading. If the table is missing it is created and the
// insert retried once.
func (s *Store) Save(ctx context.Context, device string, r logic.Reading) error {
	err := s.insert(ctx, device, r)
	if isUndefinedTable(err) {
		if err := s.Migrate(ctx); err != nil {
			return err
		}
		err = s.insert(ctx, device, r)
	}
	if err != nil {
		return fmt.Errorf("save reading: %w", err)
	}
	return nil
}

func (s *Store) insert(ctx context.Context, device string, r logic.Reading) error {
	q := fmt.Sprintf(`INSERT INTO %s (device, taken_at, humidity, temperature_c, heat_index_c, raw)
VALUES ($1, $2, $3, $4, $5, $6)`, s.Table())
	_, err := s.db.ExecContext(ctx, q, device, r.Time.UTC(), r.Humidity, r.Temperature, r.HeatIndex(), r.Raw[:])
	return err
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == undefinedTable
}

// Close releases the database connection, if Store owns one.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
