package repairs_api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BearBump/RepairBox/internal/models"
	"github.com/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		verr *models.ValidationError
		terr *models.TransitionError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: verr.Reason, Field: verr.Field})
	case errors.Is(err, models.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Message: err.Error()})
	case errors.As(err, &terr):
		code := "regression_not_allowed"
		if errors.Is(err, models.ErrTerminalState) {
			code = "terminal_state"
		}
		writeJSON(w, http.StatusConflict, errorResponse{Error: code, Message: err.Error(), Repair: terr.Repair})
	case errors.Is(err, models.ErrConcurrentModification):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "concurrent_modification", Message: err.Error()})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	default:
		slog.Error("request failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
	}
}

// writePublicError не раскрывает, был ли код неверным или просто неизвестным.
func writePublicError(w http.ResponseWriter, err error) {
	if !errors.Is(err, models.ErrNotFound) {
		slog.Error("public tracking failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
		return
	}
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}
