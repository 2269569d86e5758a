package lifecycle

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/RepairBox/internal/metrics"
	"github.com/BearBump/RepairBox/internal/models"
	"github.com/BearBump/RepairBox/internal/services/timeline"
	"github.com/BearBump/RepairBox/internal/trackingcode"
	"github.com/pkg/errors"
)

// RepairView is the staff view of one repair.
type RepairView struct {
	*models.Snapshot
	Timeline timeline.Timeline `json:"timeline"`
}

// PublicView is what a customer sees by tracking code. It carries no customer
// data and no actor references.
type PublicView struct {
	TrackingCode         string            `json:"trackingCode"`
	Kind                 models.RepairKind `json:"kind"`
	Status               models.Status     `json:"status"`
	StatusLabel          string            `json:"statusLabel"`
	Vehicle              PublicVehicle     `json:"vehicle"`
	ExpectedCompletionAt *time.Time        `json:"expectedCompletionAt,omitempty"`
	ActualCompletionAt   *time.Time        `json:"actualCompletionAt,omitempty"`
	CreatedAt            time.Time         `json:"createdAt"`
	LastEventAt          time.Time         `json:"lastEventAt"`
	History              []PublicEntry     `json:"history"`
	Timeline             []timeline.Step   `json:"timeline"`
}

type PublicVehicle struct {
	Plate string  `json:"plate"`
	Brand *string `json:"brand,omitempty"`
	Model *string `json:"model,omitempty"`
}

type PublicEntry struct {
	Status     models.Status `json:"status"`
	Label      string        `json:"label"`
	OccurredAt time.Time     `json:"occurredAt"`
	Note       *string       `json:"note,omitempty"`
}

type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

type Stats struct {
	ByStatus   map[models.Status]int64 `json:"byStatus"`
	Total      int64                   `json:"total"`
	Intake     int64                   `json:"intake"`
	InProgress int64                   `json:"inProgress"`
	Ready      int64                   `json:"ready"`
	Open       int64                   `json:"open"`
}

// History yields the ledger of a repair oldest first. Nothing is read until the
// sequence is ranged over, and every range reads again.
func (s *Service) History(ctx context.Context, repairID string) iter.Seq2[*models.LedgerEntry, error] {
	return func(yield func(*models.LedgerEntry, error) bool) {
		entries, err := s.repo.ListLedger(ctx, repairID)
		if err != nil {
			yield(nil, err)
			return
		}
		if len(entries) == 0 {
			// у каждой заявки есть хотя бы GENESIS
			yield(nil, models.ErrNotFound)
			return
		}
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *Service) Detail(ctx context.Context, repairID string) (*RepairView, error) {
	snap, err := s.repo.GetSnapshot(ctx, repairID)
	if err != nil {
		return nil, err
	}
	return &RepairView{Snapshot: snap, Timeline: s.buildTimeline(snap)}, nil
}

func (s *Service) Timeline(ctx context.Context, repairID string) (timeline.Timeline, error) {
	v, err := s.Detail(ctx, repairID)
	if err != nil {
		return timeline.Timeline{}, err
	}
	return v.Timeline, nil
}

// PublicTracking looks a repair up by tracking code. Malformed and unknown codes
// both come back as ErrNotFound, and a malformed one never reaches the store.
func (s *Service) PublicTracking(ctx context.Context, rawCode string) (*PublicView, error) {
	code := trackingcode.Normalize(rawCode)
	if !s.codes.IsValid(code) {
		metrics.PublicLookups.WithLabelValues("malformed").Inc()
		return nil, models.ErrNotFound
	}

	if v, ok := s.cachedPublic(ctx, code); ok {
		metrics.PublicLookups.WithLabelValues("found").Inc()
		return v, nil
	}

	snap, err := s.repo.GetSnapshotByTrackingCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			metrics.PublicLookups.WithLabelValues("not_found").Inc()
			return nil, models.ErrNotFound
		}
		return nil, err
	}

	v := s.publicView(snap)
	s.storePublic(ctx, code, v)
	metrics.PublicLookups.WithLabelValues("found").Inc()
	return v, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*models.RepairListItem, error) {
	filter := models.RepairFilter{
		Search: strings.TrimSpace(f.Search),
		Limit:  f.Limit,
		Offset: f.Offset,
	}
	if strings.TrimSpace(f.Status) != "" {
		st, err := models.ParseStatus(f.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = &st
	}
	items, err := s.repo.ListRepairs(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.RepairListItem{}
	}
	return items, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	out := &Stats{ByStatus: make(map[models.Status]int64, len(models.StatusOrder))}
	for _, st := range models.StatusOrder {
		n := counts[st]
		out.ByStatus[st] = n
		out.Total += n

		switch {
		case st == models.StatusIntake:
			out.Intake += n
		case st == models.StatusReady:
			out.Ready += n
		case st.Rank() >= models.StatusAccepted.Rank() && st.Rank() <= models.StatusQualityCheck.Rank():
			out.InProgress += n
		}
		if !st.Terminal() {
			out.Open += n
		}
	}
	return out, nil
}

func (s *Service) buildTimeline(snap *models.Snapshot) timeline.Timeline {
	tl := timeline.Build(snap.Repair, snap.Ledger)
	if tl.Reconciled {
		metrics.TimelineReconciliations.Inc()
		slog.Error("timeline reconciled: status outside display sequence",
			"repair_id", snap.Repair.ID,
			"status", snap.Repair.Status,
			"entries", len(snap.Ledger),
		)
	}
	return tl
}

func (s *Service) publicView(snap *models.Snapshot) *PublicView {
	r := snap.Repair
	v := &PublicView{
		TrackingCode:         r.TrackingCode,
		Kind:                 r.Kind,
		Status:               r.Status,
		StatusLabel:          timeline.Label(r.Status),
		ExpectedCompletionAt: r.ExpectedCompletionAt,
		ActualCompletionAt:   r.ActualCompletionAt,
		CreatedAt:            r.CreatedAt,
		LastEventAt:          r.LastEventAt,
		History:              make([]PublicEntry, 0, len(snap.Ledger)),
		Timeline:             s.buildTimeline(snap).Steps,
	}
	if snap.Vehicle != nil {
		v.Vehicle = PublicVehicle{Plate: snap.Vehicle.Plate, Brand: snap.Vehicle.Brand, Model: snap.Vehicle.Model}
	}
	for _, e := range snap.Ledger {
		v.History = append(v.History, PublicEntry{
			Status:     e.Status,
			Label:      timeline.Label(e.Status),
			OccurredAt: e.OccurredAt,
			Note:       e.Note,
		})
	}
	return v
}

func (s *Service) cachedPublic(ctx context.Context, code string) (*PublicView, bool) {
	if s.cache == nil || s.trackingTTL <= 0 {
		return nil, false
	}
	b, ok, err := s.cache.Get(ctx, trackingKey(code))
	if err != nil {
		slog.Warn("tracking cache get failed", "tracking_code", code, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var v PublicView
	if json.Unmarshal(b, &v) != nil {
		return nil, false
	}
	return &v, true
}

func (s *Service) storePublic(ctx context.Context, code string, v *PublicView) {
	if s.cache == nil || s.trackingTTL <= 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, trackingKey(code), b, s.trackingTTL); err != nil {
		slog.Warn("tracking cache set failed", "tracking_code", code, "err", err)
	}
}

func (s *Service) invalidate(ctx context.Context, code string) {
	if s.cache == nil || s.trackingTTL <= 0 {
		return
	}
	if err := s.cache.Delete(ctx, trackingKey(code)); err != nil {
		slog.Warn("tracking cache delete failed", "tracking_code", code, "err", err)
	}
}

func trackingKey(code string) string {
	return "repair:track:" + code
}
