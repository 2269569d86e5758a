package pgrepairs

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/RepairBox/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const detailColumns = `
  r.id, r.tracking_code, r.customer_id, r.vehicle_id, r.kind, r.status,
  r.description, r.insurance_company, r.policy_number, r.preferred_date,
  r.expected_completion_at, r.actual_completion_at,
  r.version, r.last_event_at, r.created_at, r.updated_at,
  c.id, c.name, c.phone, c.email,
  v.id, v.plate, v.brand, v.model, v.year, v.color`

const detailFrom = `
FROM repairs r
JOIN customers c ON c.id = r.customer_id
JOIN vehicles v ON v.id = r.vehicle_id`

// CreateRepair пишет клиента, машину, заявку и GENESIS-запись журнала одной транзакцией.
// Клиент ищется по телефону, машина по номеру; существующие записи переиспользуются.
func (s *Storage) CreateRepair(ctx context.Context, in models.RepairCreateInput, trackingCode string) (*models.Snapshot, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var c models.Customer
	err = tx.QueryRow(ctx, `
INSERT INTO customers (id, name, phone, email, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
RETURNING id, name, phone, email
`, uuid.NewString(), in.Customer.Name, in.Customer.Phone, in.Customer.Email, now).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email)
	if err != nil {
		return nil, errors.Wrap(err, "upsert customer")
	}

	var v models.Vehicle
	err = tx.QueryRow(ctx, `
INSERT INTO vehicles (id, plate, brand, model, year, color, customer_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (plate) DO UPDATE SET plate = EXCLUDED.plate
RETURNING id, plate, brand, model, year, color
`, uuid.NewString(), in.Vehicle.Plate, in.Vehicle.Brand, in.Vehicle.Model, in.Vehicle.Year, in.Vehicle.Color, c.ID, now).
		Scan(&v.ID, &v.Plate, &v.Brand, &v.Model, &v.Year, &v.Color)
	if err != nil {
		return nil, errors.Wrap(err, "upsert vehicle")
	}

	r := &models.Repair{
		ID:               uuid.NewString(),
		TrackingCode:     trackingCode,
		CustomerID:       c.ID,
		VehicleID:        v.ID,
		Kind:             in.Kind,
		Status:           models.StatusIntake,
		Description:      in.Description,
		InsuranceCompany: in.InsuranceCompany,
		PolicyNumber:     in.PolicyNumber,
		PreferredDate:    in.PreferredDate,
		Version:          1,
		LastEventAt:      now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	_, err = tx.Exec(ctx, `
INSERT INTO repairs (
  id, tracking_code, customer_id, vehicle_id, kind, status,
  description, insurance_company, policy_number, preferred_date,
  version, last_event_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`, r.ID, r.TrackingCode, r.CustomerID, r.VehicleID, string(r.Kind), string(r.Status),
		r.Description, r.InsuranceCompany, r.PolicyNumber, r.PreferredDate,
		r.Version, r.LastEventAt, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, trackingCodeConstraint) {
			return nil, models.ErrTrackingCodeTaken
		}
		return nil, errors.Wrap(err, "insert repair")
	}

	genesis := &models.LedgerEntry{
		ID:         uuid.NewString(),
		RepairID:   r.ID,
		Seq:        1,
		Status:     models.StatusIntake,
		Kind:       models.EntryKindGenesis,
		OccurredAt: now,
		Note:       in.Note,
		Actor:      in.Actor,
	}
	if err := insertEntry(ctx, tx, genesis); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}

	return &models.Snapshot{
		RepairDetail: models.RepairDetail{Repair: r, Customer: &c, Vehicle: &v},
		Ledger:       []*models.LedgerEntry{genesis},
	}, nil
}

func (s *Storage) TrackingCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM repairs WHERE tracking_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check tracking code")
	}
	return exists, nil
}

func (s *Storage) GetRepairDetail(ctx context.Context, id string) (*models.RepairDetail, error) {
	return getDetail(ctx, s.db, `WHERE r.id = $1`, id)
}

func (s *Storage) GetRepairDetailByTrackingCode(ctx context.Context, code string) (*models.RepairDetail, error) {
	return getDetail(ctx, s.db, `WHERE r.tracking_code = $1`, code)
}

func (s *Storage) ListRepairs(ctx context.Context, f models.RepairFilter) ([]*models.RepairListItem, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var status *string
	if f.Status != nil {
		v := string(*f.Status)
		status = &v
	}
	search := strings.TrimSpace(f.Search)

	rows, err := s.db.Query(ctx, `
SELECT`+detailColumns+detailFrom+`
WHERE ($1::text IS NULL OR r.status = $1)
  AND ($2 = '' OR
       r.tracking_code ILIKE '%' || $2 || '%' OR
       v.plate ILIKE '%' || $2 || '%' OR
       c.name ILIKE '%' || $2 || '%' OR
       c.phone LIKE '%' || $2 || '%')
ORDER BY r.created_at DESC, r.id
LIMIT $3 OFFSET $4
`, status, search, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select repairs")
	}
	defer rows.Close()

	var out []*models.RepairListItem
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.RepairListItem{Repair: d.Repair, Customer: d.Customer, Vehicle: d.Vehicle})
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM repairs GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "count repairs")
	}
	defer rows.Close()

	out := make(map[models.Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "scan count")
		}
		out[models.Status(status)] = n
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getDetail(ctx context.Context, q querier, where string, arg any) (*models.RepairDetail, error) {
	row := q.QueryRow(ctx, `SELECT`+detailColumns+detailFrom+"\n"+where, arg)
	d, err := scanDetail(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func scanDetail(row pgx.Row) (*models.RepairDetail, error) {
	var r models.Repair
	var c models.Customer
	var v models.Vehicle
	var kind, status string

	err := row.Scan(
		&r.ID, &r.TrackingCode, &r.CustomerID, &r.VehicleID, &kind, &status,
		&r.Description, &r.InsuranceCompany, &r.PolicyNumber, &r.PreferredDate,
		&r.ExpectedCompletionAt, &r.ActualCompletionAt,
		&r.Version, &r.LastEventAt, &r.CreatedAt, &r.UpdatedAt,
		&c.ID, &c.Name, &c.Phone, &c.Email,
		&v.ID, &v.Plate, &v.Brand, &v.Model, &v.Year, &v.Color,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan repair")
	}
	r.Kind = models.RepairKind(kind)
	r.Status = models.Status(status)

	return &models.RepairDetail{Repair: &r, Customer: &c, Vehicle: &v}, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
