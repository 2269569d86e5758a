package lifecycle

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/BearBump/RepairBox/internal/metrics"
	"github.com/BearBump/RepairBox/internal/models"
	"github.com/pkg/errors"
)

type IntakeInput struct {
	CustomerName  string
	CustomerPhone string
	CustomerEmail string

	Plate string
	Brand string
	Model string
	Year  *int
	Color string

	Kind             string
	Description      string
	InsuranceCompany string
	PolicyNumber     string
	PreferredDate    *time.Time

	Note  string
	Actor string
}

// CreateIntake creates the repair with a fresh tracking code and its genesis entry.
// Codes are retried against the store up to the configured budget.
func (s *Service) CreateIntake(ctx context.Context, in IntakeInput) (*models.Snapshot, error) {
	create, err := s.validateIntake(in)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return nil, errors.Wrap(err, "generate tracking code")
		}

		taken, err := s.repo.TrackingCodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			s.collision(code, attempt)
			continue
		}

		snap, err := s.repo.CreateRepair(ctx, create, code)
		if errors.Is(err, models.ErrTrackingCodeTaken) {
			// занят между проверкой и вставкой
			s.collision(code, attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.RepairsCreated.WithLabelValues(string(create.Kind)).Inc()
		slog.Info("repair created",
			"repair_id", snap.Repair.ID,
			"tracking_code", snap.Repair.TrackingCode,
			"kind", snap.Repair.Kind,
			"attempts", attempt,
		)
		return snap, nil
	}

	slog.Error("tracking code attempts exhausted", "attempts", s.maxAttempts, "tag", s.codes.Tag())
	return nil, errors.Wrapf(models.ErrTrackingCodeExhausted, "after %d attempts", s.maxAttempts)
}

func (s *Service) collision(code string, attempt int) {
	metrics.TrackingCodeCollisions.Inc()
	slog.Warn("tracking code collision", "tracking_code", code, "attempt", attempt)
}

func (s *Service) validateIntake(in IntakeInput) (models.RepairCreateInput, error) {
	var out models.RepairCreateInput

	name := strings.TrimSpace(in.CustomerName)
	if name == "" {
		return out, models.NewValidationError("customer.name", "is required")
	}
	phone := NormalizePhone(in.CustomerPhone)
	if phone == "" {
		return out, models.NewValidationError("customer.phone", "is required")
	}
	if len(strings.TrimPrefix(phone, "+")) < 6 {
		return out, models.NewValidationError("customer.phone", "is too short")
	}
	email := optional(in.CustomerEmail)
	if email != nil {
		if _, err := mail.ParseAddress(*email); err != nil {
			return out, models.NewValidationError("customer.email", "is not a valid address")
		}
	}

	plate := NormalizePlate(in.Plate)
	if plate == "" {
		return out, models.NewValidationError("vehicle.plate", "is required")
	}
	if in.Year != nil {
		maxYear := s.now().Year() + 1
		if *in.Year < 1900 || *in.Year > maxYear {
			return out, models.NewValidationError("vehicle.year", "is out of range")
		}
	}

	kind, err := models.ParseRepairKind(in.Kind)
	if err != nil {
		return out, err
	}

	out = models.RepairCreateInput{
		Customer: models.CustomerInput{Name: name, Phone: phone, Email: email},
		Vehicle: models.VehicleInput{
			Plate: plate,
			Brand: optional(in.Brand),
			Model: optional(in.Model),
			Year:  in.Year,
			Color: optional(in.Color),
		},
		Kind:             kind,
		Description:      optional(in.Description),
		InsuranceCompany: optional(in.InsuranceCompany),
		PolicyNumber:     optional(in.PolicyNumber),
		PreferredDate:    in.PreferredDate,
		Note:             optional(in.Note),
		Actor:            optional(in.Actor),
	}
	return out, nil
}

// NormalizePhone strips spaces, dots, dashes and brackets; a leading 00 becomes +.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.HasPrefix(out, "00") {
		out = "+" + out[2:]
	}
	return out
}

// NormalizePlate upper-cases and drops separators, so "ab 123-cd" and "AB123CD" match.
func NormalizePlate(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func optional(raw string) *string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	return &v
}
