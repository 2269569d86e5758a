package sqliterepairs

import (
	"context"
	"database/sql"
	"time"

	"github.com/BearBump/RepairBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func (s *Storage) ApplyTransition(ctx context.Context, upd models.TransitionUpdate) (*models.Repair, *models.LedgerEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	var version int64
	var lastRaw string
	err = tx.QueryRowContext(ctx, `SELECT version, last_event_at FROM repairs WHERE id = ?`, upd.RepairID).
		Scan(&version, &lastRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, models.ErrNotFound
		}
		return nil, nil, errors.Wrap(err, "select repair version")
	}
	if version != upd.ExpectedVersion {
		return nil, nil, models.ErrConcurrentModification
	}
	lastEventAt, err := parseTS(lastRaw)
	if err != nil {
		return nil, nil, err
	}

	occurredAt := upd.Now.UTC()
	if occurredAt.Before(lastEventAt) {
		occurredAt = lastEventAt
	}

	entry := &models.LedgerEntry{
		ID:         uuid.NewString(),
		RepairID:   upd.RepairID,
		Seq:        version + 1,
		Status:     upd.Status,
		Kind:       upd.Kind,
		OccurredAt: occurredAt,
		Note:       upd.Note,
		Actor:      upd.Actor,
	}
	if err := insertEntry(ctx, tx, entry); err != nil {
		return nil, nil, err
	}

	res, err := tx.ExecContext(ctx, `
UPDATE repairs
SET
  status = ?3,
  version = ?4,
  last_event_at = ?5,
  expected_completion_at = COALESCE(?6, expected_completion_at),
  actual_completion_at = CASE
    WHEN ?7 THEN NULL
    WHEN ?8 AND actual_completion_at IS NULL THEN ?5
    ELSE actual_completion_at
  END,
  updated_at = ?9
WHERE id = ?1 AND version = ?2
`, upd.RepairID, upd.ExpectedVersion, string(upd.Status), entry.Seq, formatTS(occurredAt),
		formatNullTS(upd.ExpectedCompletionAt), upd.ClearActualCompletion, upd.SetActualCompletion, formatTS(time.Now()))
	if err != nil {
		return nil, nil, errors.Wrap(err, "update repair")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, nil, errors.Wrap(err, "rows affected")
	}
	if n != 1 {
		return nil, nil, models.ErrConcurrentModification
	}

	d, err := getDetail(ctx, tx, `WHERE r.id = ?`, upd.RepairID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, errors.Wrap(err, "commit")
	}
	return d.Repair, entry, nil
}

func (s *Storage) ListLedger(ctx context.Context, repairID string) ([]*models.LedgerEntry, error) {
	return listLedger(ctx, s.db, repairID)
}

func (s *Storage) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	return s.snapshot(ctx, `WHERE r.id = ?`, id)
}

func (s *Storage) GetSnapshotByTrackingCode(ctx context.Context, code string) (*models.Snapshot, error) {
	return s.snapshot(ctx, `WHERE r.tracking_code = ?`, code)
}

func (s *Storage) snapshot(ctx context.Context, where string, arg any) (*models.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	d, err := getDetail(ctx, tx, where, arg)
	if err != nil {
		return nil, err
	}

	entries, err := listLedger(ctx, tx, d.Repair.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit")
	}
	return &models.Snapshot{RepairDetail: *d, Ledger: entries}, nil
}

func listLedger(ctx context.Context, q execQuerier, repairID string) ([]*models.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, repair_id, seq, status, kind, occurred_at, note, actor
FROM repair_status_ledger
WHERE repair_id = ?
ORDER BY seq
`, repairID)
	if err != nil {
		return nil, errors.Wrap(err, "select ledger")
	}
	defer func() { _ = rows.Close() }()

	var out []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var status, kind, occurredAt string
		var note, actor sql.NullString
		if err := rows.Scan(&e.ID, &e.RepairID, &e.Seq, &status, &kind, &occurredAt, &note, &actor); err != nil {
			return nil, errors.Wrap(err, "scan ledger entry")
		}
		e.Status = models.Status(status)
		e.Kind = models.EntryKind(kind)
		e.Note = nullString(note)
		e.Actor = nullString(actor)
		if e.OccurredAt, err = parseTS(occurredAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return out, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e *models.LedgerEntry) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO repair_status_ledger (id, repair_id, seq, status, kind, occurred_at, note, actor)
VALUES (?,?,?,?,?,?,?,?)
`, e.ID, e.RepairID, e.Seq, string(e.Status), string(e.Kind), formatTS(e.OccurredAt), e.Note, e.Actor)
	if err != nil {
		return errors.Wrap(err, "insert ledger entry")
	}
	return nil
}
