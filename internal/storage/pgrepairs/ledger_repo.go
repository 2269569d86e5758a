package pgrepairs

import (
	"context"
	"time"

	"github.com/BearBump/RepairBox/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ApplyTransition atomically appends one ledger entry and moves the record to it.
// The update only succeeds when the stored version still equals upd.ExpectedVersion.
func (s *Storage) ApplyTransition(ctx context.Context, upd models.TransitionUpdate) (*models.Repair, *models.LedgerEntry, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var version int64
	var lastEventAt time.Time
	err = tx.QueryRow(ctx, `SELECT version, last_event_at FROM repairs WHERE id = $1 FOR UPDATE`, upd.RepairID).
		Scan(&version, &lastEventAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, models.ErrNotFound
		}
		return nil, nil, errors.Wrap(err, "lock repair")
	}
	if version != upd.ExpectedVersion {
		return nil, nil, models.ErrConcurrentModification
	}

	// occurred_at в журнале не убывает, даже если часы отстали.
	occurredAt := upd.Now.UTC().Truncate(time.Microsecond)
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

	tag, err := tx.Exec(ctx, `
UPDATE repairs
SET
  status = $3,
  version = $4,
  last_event_at = $5,
  expected_completion_at = COALESCE($6::timestamptz, expected_completion_at),
  actual_completion_at = CASE
    WHEN $7::bool THEN NULL
    WHEN $8::bool AND actual_completion_at IS NULL THEN $5
    ELSE actual_completion_at
  END,
  updated_at = $9
WHERE id = $1 AND version = $2
`, upd.RepairID, upd.ExpectedVersion, string(upd.Status), entry.Seq, occurredAt,
		upd.ExpectedCompletionAt, upd.ClearActualCompletion, upd.SetActualCompletion, time.Now().UTC())
	if err != nil {
		return nil, nil, errors.Wrap(err, "update repair")
	}
	if tag.RowsAffected() != 1 {
		return nil, nil, models.ErrConcurrentModification
	}

	d, err := getDetail(ctx, tx, `WHERE r.id = $1`, upd.RepairID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "commit")
	}
	return d.Repair, entry, nil
}

func (s *Storage) ListLedger(ctx context.Context, repairID string) ([]*models.LedgerEntry, error) {
	return listLedger(ctx, s.db, repairID)
}

func (s *Storage) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	return s.snapshot(ctx, `WHERE r.id = $1`, id)
}

func (s *Storage) GetSnapshotByTrackingCode(ctx context.Context, code string) (*models.Snapshot, error) {
	return s.snapshot(ctx, `WHERE r.tracking_code = $1`, code)
}

// snapshot читает запись и журнал в одной REPEATABLE READ транзакции,
// чтобы статус и история не разошлись при параллельном переходе.
func (s *Storage) snapshot(ctx context.Context, where string, arg any) (*models.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	d, err := getDetail(ctx, tx, where, arg)
	if err != nil {
		return nil, err
	}

	entries, err := listLedger(ctx, tx, d.Repair.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}
	return &models.Snapshot{RepairDetail: *d, Ledger: entries}, nil
}

type rowsQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listLedger(ctx context.Context, q rowsQuerier, repairID string) ([]*models.LedgerEntry, error) {
	rows, err := q.Query(ctx, `
SELECT id, repair_id, seq, status, kind, occurred_at, note, actor
FROM repair_status_ledger
WHERE repair_id = $1
ORDER BY seq
`, repairID)
	if err != nil {
		return nil, errors.Wrap(err, "select ledger")
	}
	defer rows.Close()

	var out []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var status, kind string
		if err := rows.Scan(&e.ID, &e.RepairID, &e.Seq, &status, &kind, &e.OccurredAt, &e.Note, &e.Actor); err != nil {
			return nil, errors.Wrap(err, "scan ledger entry")
		}
		e.Status = models.Status(status)
		e.Kind = models.EntryKind(kind)
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	_, err := tx.Exec(ctx, `
INSERT INTO repair_status_ledger (id, repair_id, seq, status, kind, occurred_at, note, actor)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, e.ID, e.RepairID, e.Seq, string(e.Status), string(e.Kind), e.OccurredAt, e.Note, e.Actor)
	if err != nil {
		return errors.Wrap(err, "insert ledger entry")
	}
	return nil
}
