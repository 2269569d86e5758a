package sqliterepairs

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/BearBump/RepairBox/internal/models"
	"github.com/google/uuid"
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

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Storage) CreateRepair(ctx context.Context, in models.RepairCreateInput, trackingCode string) (*models.Snapshot, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	var c models.Customer
	var email sql.NullString
	err = tx.QueryRowContext(ctx, `
INSERT INTO customers (id, name, phone, email, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (phone) DO UPDATE SET phone = excluded.phone
RETURNING id, name, phone, email
`, uuid.NewString(), in.Customer.Name, in.Customer.Phone, in.Customer.Email, formatTS(now)).
		Scan(&c.ID, &c.Name, &c.Phone, &email)
	if err != nil {
		return nil, errors.Wrap(err, "upsert customer")
	}
	c.Email = nullString(email)

	var v models.Vehicle
	var brand, model, color sql.NullString
	var year sql.NullInt64
	err = tx.QueryRowContext(ctx, `
INSERT INTO vehicles (id, plate, brand, model, year, color, customer_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (plate) DO UPDATE SET plate = excluded.plate
RETURNING id, plate, brand, model, year, color
`, uuid.NewString(), in.Vehicle.Plate, in.Vehicle.Brand, in.Vehicle.Model, in.Vehicle.Year, in.Vehicle.Color, c.ID, formatTS(now)).
		Scan(&v.ID, &v.Plate, &brand, &model, &year, &color)
	if err != nil {
		return nil, errors.Wrap(err, "upsert vehicle")
	}
	fillVehicle(&v, brand, model, color, year)

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

	_, err = tx.ExecContext(ctx, `
INSERT INTO repairs (
  id, tracking_code, customer_id, vehicle_id, kind, status,
  description, insurance_company, policy_number, preferred_date,
  version, last_event_at, created_at, updated_at
)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
`, r.ID, r.TrackingCode, r.CustomerID, r.VehicleID, string(r.Kind), string(r.Status),
		r.Description, r.InsuranceCompany, r.PolicyNumber, formatNullTS(r.PreferredDate),
		r.Version, formatTS(r.LastEventAt), formatTS(r.CreatedAt), formatTS(r.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err, "repairs.tracking_code") {
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

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit")
	}

	return &models.Snapshot{
		RepairDetail: models.RepairDetail{Repair: r, Customer: &c, Vehicle: &v},
		Ledger:       []*models.LedgerEntry{genesis},
	}, nil
}

func (s *Storage) TrackingCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM repairs WHERE tracking_code = ?)`, code).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check tracking code")
	}
	return exists, nil
}

func (s *Storage) GetRepairDetail(ctx context.Context, id string) (*models.RepairDetail, error) {
	return getDetail(ctx, s.db, `WHERE r.id = ?`, id)
}

func (s *Storage) GetRepairDetailByTrackingCode(ctx context.Context, code string) (*models.RepairDetail, error) {
	return getDetail(ctx, s.db, `WHERE r.tracking_code = ?`, code)
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

	var status any
	if f.Status != nil {
		status = string(*f.Status)
	}
	search := strings.TrimSpace(f.Search)

	// LIKE в sqlite уже регистронезависим для ASCII.
	rows, err := s.db.QueryContext(ctx, `
SELECT`+detailColumns+detailFrom+`
WHERE (?1 IS NULL OR r.status = ?1)
  AND (?2 = '' OR
       r.tracking_code LIKE '%' || ?2 || '%' OR
       v.plate LIKE '%' || ?2 || '%' OR
       c.name LIKE '%' || ?2 || '%' OR
       c.phone LIKE '%' || ?2 || '%')
ORDER BY r.created_at DESC, r.id
LIMIT ?3 OFFSET ?4
`, status, search, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select repairs")
	}
	defer func() { _ = rows.Close() }()

	var out []*models.RepairListItem
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.RepairListItem{Repair: d.Repair, Customer: d.Customer, Vehicle: d.Vehicle})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return out, nil
}

func (s *Storage) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM repairs GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "count repairs")
	}
	defer func() { _ = rows.Close() }()

	out := make(map[models.Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "scan count")
		}
		out[models.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return out, nil
}

func getDetail(ctx context.Context, q execQuerier, where string, arg any) (*models.RepairDetail, error) {
	row := q.QueryRowContext(ctx, `SELECT`+detailColumns+detailFrom+"\n"+where, arg)
	d, err := scanDetail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDetail(row rowScanner) (*models.RepairDetail, error) {
	var r models.Repair
	var c models.Customer
	var v models.Vehicle
	var kind, status, lastEventAt, createdAt, updatedAt string
	var description, insurance, policy, preferred, expected, actual sql.NullString
	var email, brand, model, color sql.NullString
	var year sql.NullInt64

	err := row.Scan(
		&r.ID, &r.TrackingCode, &r.CustomerID, &r.VehicleID, &kind, &status,
		&description, &insurance, &policy, &preferred,
		&expected, &actual,
		&r.Version, &lastEventAt, &createdAt, &updatedAt,
		&c.ID, &c.Name, &c.Phone, &email,
		&v.ID, &v.Plate, &brand, &model, &year, &color,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan repair")
	}

	r.Kind = models.RepairKind(kind)
	r.Status = models.Status(status)
	r.Description = nullString(description)
	r.InsuranceCompany = nullString(insurance)
	r.PolicyNumber = nullString(policy)
	c.Email = nullString(email)
	fillVehicle(&v, brand, model, color, year)

	if r.PreferredDate, err = parseNullTS(preferred); err != nil {
		return nil, err
	}
	if r.ExpectedCompletionAt, err = parseNullTS(expected); err != nil {
		return nil, err
	}
	if r.ActualCompletionAt, err = parseNullTS(actual); err != nil {
		return nil, err
	}
	if r.LastEventAt, err = parseTS(lastEventAt); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTS(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return nil, err
	}

	return &models.RepairDetail{Repair: &r, Customer: &c, Vehicle: &v}, nil
}

func fillVehicle(v *models.Vehicle, brand, model, color sql.NullString, year sql.NullInt64) {
	v.Brand = nullString(brand)
	v.Model = nullString(model)
	v.Color = nullString(color)
	if year.Valid {
		y := int(year.Int64)
		v.Year = &y
	}
}

func isUniqueViolation(err error, column string) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}
