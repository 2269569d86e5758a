package repairs_api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/RepairBox/internal/models"
	"github.com/BearBump/RepairBox/internal/services/lifecycle"
	"github.com/go-chi/chi/v5"
)

// ActorHeader carries the staff member performing a write.
const ActorHeader = "X-Staff-Actor"

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type RepairsAPI struct {
	svc *lifecycle.Service
	rl  RateLimiter

	publicPerMinute int64
}

// New builds the API. rl may be nil, then public lookups are not limited.
func New(svc *lifecycle.Service, rl RateLimiter, publicPerMinute int64) *RepairsAPI {
	if publicPerMinute <= 0 {
		publicPerMinute = 30
	}
	return &RepairsAPI{svc: svc, rl: rl, publicPerMinute: publicPerMinute}
}

// Register mounts the staff routes under /api/v1 and the public tracking route.
func (a *RepairsAPI) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/intake", a.createIntake)
		r.Get("/stats", a.stats)

		r.Route("/repairs", func(r chi.Router) {
			r.Get("/", a.listRepairs)
			r.Get("/{id}", a.getRepair)
			r.Get("/{id}/timeline", a.getTimeline)
			r.Post("/{id}/transitions", a.transition)
			r.Post("/{id}/corrections", a.correct)
		})

		r.With(a.publicRateLimit).Get("/track/{code}", a.track)
	})
}

func (a *RepairsAPI) createIntake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := a.svc.CreateIntake(r.Context(), req.toInput(r.Header.Get(ActorHeader)))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, intakeResponse{ID: snap.Repair.ID, TrackingCode: snap.Repair.TrackingCode})
}

func (a *RepairsAPI) transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := a.svc.Transition(r.Context(), lifecycle.TransitionRequest{
		RepairID:             chi.URLParam(r, "id"),
		Status:               req.Status,
		Note:                 req.Note,
		Actor:                r.Header.Get(ActorHeader),
		ExpectedStatus:       req.ExpectedStatus,
		ExpectedCompletionAt: req.ExpectedCompletionAt,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *RepairsAPI) correct(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := a.svc.Correct(r.Context(), lifecycle.CorrectionRequest{
		RepairID:       chi.URLParam(r, "id"),
		Status:         req.Status,
		Note:           req.Note,
		Actor:          r.Header.Get(ActorHeader),
		ExpectedStatus: req.ExpectedStatus,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *RepairsAPI) listRepairs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	offset, err := intParam(q.Get("offset"), "offset")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	items, err := a.svc.List(r.Context(), lifecycle.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items})
}

func (a *RepairsAPI) getRepair(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *RepairsAPI) getTimeline(w http.ResponseWriter, r *http.Request) {
	tl, err := a.svc.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

func (a *RepairsAPI) stats(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// track is the public lookup. Anything but a hit answers with the same 404 body.
func (a *RepairsAPI) track(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.PublicTracking(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writePublicError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeServiceError(w, models.NewValidationError("body", "invalid json"))
		return false
	}
	return true
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, models.NewValidationError(name, "must be a non-negative integer")
	}
	return n, nil
}
