// Package sqliterepairs is the single-file store used in lite mode and in tests.
// It implements the same contract as pgrepairs on top of modernc.org/sqlite.
package sqliterepairs

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

// Время хранится текстом фиксированной ширины в UTC, поэтому сортируется лексикографически.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

type Storage struct {
	db *sql.DB
}

// New opens (or creates) the database at path. ":memory:" or an empty path gives
// a private in-memory database.
func New(path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// Одно соединение: sqlite сериализует запись, а in-memory база живёт ровно в нём.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	s := &Storage{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.PingContext(ctx), "ping sqlite")
}

func (s *Storage) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
		`
CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT NOT NULL UNIQUE,
  email TEXT NULL,
  created_at TEXT NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS vehicles (
  id TEXT PRIMARY KEY,
  plate TEXT NOT NULL UNIQUE,
  brand TEXT NULL,
  model TEXT NULL,
  year INTEGER NULL,
  color TEXT NULL,
  customer_id TEXT NOT NULL REFERENCES customers(id),
  created_at TEXT NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS repairs (
  id TEXT PRIMARY KEY,
  tracking_code TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL REFERENCES customers(id),
  vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
  kind TEXT NOT NULL,
  status TEXT NOT NULL,
  description TEXT NULL,
  insurance_company TEXT NULL,
  policy_number TEXT NULL,
  preferred_date TEXT NULL,
  expected_completion_at TEXT NULL,
  actual_completion_at TEXT NULL,
  version INTEGER NOT NULL,
  last_event_at TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_repairs_status_created_at ON repairs(status, created_at)`,
		`
CREATE TABLE IF NOT EXISTS repair_status_ledger (
  id TEXT PRIMARY KEY,
  repair_id TEXT NOT NULL REFERENCES repairs(id) ON DELETE RESTRICT,
  seq INTEGER NOT NULL,
  status TEXT NOT NULL,
  kind TEXT NOT NULL,
  occurred_at TEXT NOT NULL,
  note TEXT NULL,
  actor TEXT NULL,
  UNIQUE (repair_id, seq)
)`,
		`
CREATE TRIGGER IF NOT EXISTS trg_repair_status_ledger_no_update
BEFORE UPDATE ON repair_status_ledger
BEGIN
  SELECT RAISE(ABORT, 'repair_status_ledger is append-only');
END`,
		`
CREATE TRIGGER IF NOT EXISTS trg_repair_status_ledger_no_delete
BEFORE DELETE ON repair_status_ledger
BEGIN
  SELECT RAISE(ABORT, 'repair_status_ledger is append-only');
END`,
	}

	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func formatNullTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTS(*t)
}

func parseTS(raw string) (time.Time, error) {
	t, err := time.Parse(tsLayout, raw)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse timestamp")
	}
	return t, nil
}

func parseNullTS(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTS(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(raw sql.NullString) *string {
	if !raw.Valid {
		return nil
	}
	v := raw.String
	return &v
}
