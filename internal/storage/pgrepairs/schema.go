package pgrepairs

import (
	"context"

	"github.com/pkg/errors"
)

const trackingCodeConstraint = "uq_repairs_tracking_code"

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT NOT NULL,
  email TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  UNIQUE (phone)
)`,
		`
CREATE TABLE IF NOT EXISTS vehicles (
  id TEXT PRIMARY KEY,
  plate TEXT NOT NULL,
  brand TEXT NULL,
  model TEXT NULL,
  year INT NULL,
  color TEXT NULL,
  customer_id TEXT NOT NULL REFERENCES customers(id),
  created_at TIMESTAMPTZ NOT NULL,
  UNIQUE (plate)
)`,
		`
CREATE TABLE IF NOT EXISTS repairs (
  id TEXT PRIMARY KEY,
  tracking_code TEXT NOT NULL,
  customer_id TEXT NOT NULL REFERENCES customers(id),
  vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
  kind TEXT NOT NULL,
  status TEXT NOT NULL,
  description TEXT NULL,
  insurance_company TEXT NULL,
  policy_number TEXT NULL,
  preferred_date TIMESTAMPTZ NULL,
  expected_completion_at TIMESTAMPTZ NULL,
  actual_completion_at TIMESTAMPTZ NULL,
  version BIGINT NOT NULL,
  last_event_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  CONSTRAINT ` + trackingCodeConstraint + ` UNIQUE (tracking_code)
)`,
		`CREATE INDEX IF NOT EXISTS idx_repairs_status_created_at ON repairs(status, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_repairs_created_at ON repairs(created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS repair_status_ledger (
  id TEXT PRIMARY KEY,
  repair_id TEXT NOT NULL REFERENCES repairs(id) ON DELETE RESTRICT,
  seq BIGINT NOT NULL,
  status TEXT NOT NULL,
  kind TEXT NOT NULL,
  occurred_at TIMESTAMPTZ NOT NULL,
  note TEXT NULL,
  actor TEXT NULL,
  UNIQUE (repair_id, seq)
)`,
		// Журнал только на добавление: UPDATE/DELETE запрещены на уровне БД.
		`
CREATE OR REPLACE FUNCTION repair_status_ledger_append_only() RETURNS trigger AS $$
BEGIN
  RAISE EXCEPTION 'repair_status_ledger is append-only';
END;
$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS trg_repair_status_ledger_append_only ON repair_status_ledger`,
		`
CREATE TRIGGER trg_repair_status_ledger_append_only
BEFORE UPDATE OR DELETE ON repair_status_ledger
FOR EACH ROW EXECUTE FUNCTION repair_status_ledger_append_only()`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
