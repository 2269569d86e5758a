package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/RepairBox/internal/metrics"
	"github.com/BearBump/RepairBox/internal/models"
	"github.com/pkg/errors"
)

type Outcome string

const (
	// OutcomeApplied: the status moved forward.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoop: same status, nothing to record.
	OutcomeNoop Outcome = "noop"
	// OutcomeNoted: same status, a note-only entry was appended.
	OutcomeNoted Outcome = "noted"
	// OutcomeCorrected: administrative correction applied.
	OutcomeCorrected Outcome = "corrected"
)

type TransitionRequest struct {
	RepairID string
	Status   string
	Note     string
	Actor    string

	// ExpectedStatus, when set, must equal the current status or the request
	// fails with ErrConcurrentModification.
	ExpectedStatus       string
	ExpectedCompletionAt *time.Time
}

type CorrectionRequest struct {
	RepairID       string
	Status         string
	Note           string
	Actor          string
	ExpectedStatus string
}

type TransitionResult struct {
	Repair   *models.Repair      `json:"repair"`
	Entry    *models.LedgerEntry `json:"entry,omitempty"`
	Previous models.Status       `json:"previousStatus"`
	Outcome  Outcome             `json:"outcome"`
}

// Transition applies a forward status change. Rules are checked in order:
// known status, repair exists and is not delivered, rank does not go back.
// Re-applying the current status is a no-op, or a note-only entry when a note is given.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	to, err := models.ParseStatus(req.Status)
	if err != nil {
		metrics.Transitions.WithLabelValues("invalid", "rejected").Inc()
		return nil, err
	}
	expected, err := parseExpected(req.ExpectedStatus)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.RepairID) == "" {
		return nil, models.NewValidationError("repairId", "is required")
	}

	detail, err := s.repo.GetRepairDetail(ctx, req.RepairID)
	if err != nil {
		return nil, err
	}
	cur := detail.Repair

	if expected != "" && expected != cur.Status {
		metrics.Transitions.WithLabelValues(string(to), "conflict").Inc()
		return nil, errors.Wrapf(models.ErrConcurrentModification, "expected %s, current %s", expected, cur.Status)
	}

	note := optional(req.Note)
	actor := optional(req.Actor)

	if to == cur.Status {
		if note == nil && req.ExpectedCompletionAt == nil {
			metrics.Transitions.WithLabelValues(string(to), "noop").Inc()
			return &TransitionResult{Repair: cur, Previous: cur.Status, Outcome: OutcomeNoop}, nil
		}

		repair, entry, err := s.repo.ApplyTransition(ctx, models.TransitionUpdate{
			RepairID:             cur.ID,
			ExpectedVersion:      cur.Version,
			Now:                  s.now(),
			Status:               cur.Status,
			Kind:                 models.EntryKindNote,
			Note:                 note,
			Actor:                actor,
			ExpectedCompletionAt: req.ExpectedCompletionAt,
		})
		if err != nil {
			s.countFailure(to, err)
			return nil, err
		}
		s.invalidate(ctx, repair.TrackingCode)
		metrics.Transitions.WithLabelValues(string(to), "note").Inc()
		return &TransitionResult{Repair: repair, Entry: entry, Previous: cur.Status, Outcome: OutcomeNoted}, nil
	}

	if cur.Status.Terminal() || to.Rank() < cur.Status.Rank() {
		metrics.Transitions.WithLabelValues(string(to), "rejected").Inc()
		return nil, &models.TransitionError{
			Code:   models.ErrRegressionNotAllowed,
			Repair: cur,
			From:   cur.Status,
			To:     to,
		}
	}

	repair, entry, err := s.repo.ApplyTransition(ctx, models.TransitionUpdate{
		RepairID:             cur.ID,
		ExpectedVersion:      cur.Version,
		Now:                  s.now(),
		Status:               to,
		Kind:                 models.EntryKindTransition,
		Note:                 note,
		Actor:                actor,
		ExpectedCompletionAt: req.ExpectedCompletionAt,
		SetActualCompletion:  to == models.StatusDelivered,
	})
	if err != nil {
		s.countFailure(to, err)
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(to), "applied").Inc()
	slog.Info("repair status changed",
		"repair_id", repair.ID,
		"from", cur.Status,
		"to", repair.Status,
		"seq", entry.Seq,
	)

	s.invalidate(ctx, repair.TrackingCode)
	s.emit(ctx, detail, cur.Status, repair, entry, false)

	return &TransitionResult{Repair: repair, Entry: entry, Previous: cur.Status, Outcome: OutcomeApplied}, nil
}

// Correct is the audited way back: it may move to any status, including out of
// DELIVERED, but needs a note and is recorded as a CORRECTION entry.
func (s *Service) Correct(ctx context.Context, req CorrectionRequest) (*TransitionResult, error) {
	to, err := models.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	expected, err := parseExpected(req.ExpectedStatus)
	if err != nil {
		return nil, err
	}
	note := optional(req.Note)
	if note == nil {
		return nil, models.NewValidationError("note", "is required for a correction")
	}
	if strings.TrimSpace(req.RepairID) == "" {
		return nil, models.NewValidationError("repairId", "is required")
	}

	detail, err := s.repo.GetRepairDetail(ctx, req.RepairID)
	if err != nil {
		return nil, err
	}
	cur := detail.Repair

	if expected != "" && expected != cur.Status {
		metrics.Transitions.WithLabelValues(string(to), "conflict").Inc()
		return nil, errors.Wrapf(models.ErrConcurrentModification, "expected %s, current %s", expected, cur.Status)
	}
	if to == cur.Status {
		return nil, models.NewValidationError("status", "correction must change the status")
	}

	repair, entry, err := s.repo.ApplyTransition(ctx, models.TransitionUpdate{
		RepairID:              cur.ID,
		ExpectedVersion:       cur.Version,
		Now:                   s.now(),
		Status:                to,
		Kind:                  models.EntryKindCorrection,
		Note:                  note,
		Actor:                 optional(req.Actor),
		SetActualCompletion:   to == models.StatusDelivered,
		ClearActualCompletion: to != models.StatusDelivered,
	})
	if err != nil {
		s.countFailure(to, err)
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(to), "corrected").Inc()
	slog.Warn("repair status corrected",
		"repair_id", repair.ID,
		"from", cur.Status,
		"to", repair.Status,
		"actor", req.Actor,
		"note", *note,
	)

	s.invalidate(ctx, repair.TrackingCode)
	s.emit(ctx, detail, cur.Status, repair, entry, true)

	return &TransitionResult{Repair: repair, Entry: entry, Previous: cur.Status, Outcome: OutcomeCorrected}, nil
}

func (s *Service) countFailure(to models.Status, err error) {
	result := "error"
	if errors.Is(err, models.ErrConcurrentModification) {
		result = "conflict"
	}
	metrics.Transitions.WithLabelValues(string(to), result).Inc()
}

func parseExpected(raw string) (models.Status, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	st, err := models.ParseStatus(raw)
	if err != nil {
		return "", models.NewValidationError("expectedStatus", "unknown status")
	}
	return st, nil
}
