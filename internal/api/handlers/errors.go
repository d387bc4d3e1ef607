package handlers

import (
	"delivery-dispatch-service/internal/api/dto"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/services"
	"errors"
	"log/slog"
	"net/http"
)

type slotClosedResponse struct {
	Error  string                 `json:"error"`
	Window dto.SlotWindowResponse `json:"window"`
}

// writeServiceError maps engine errors to HTTP responses. Unknown errors are
// logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var closed *services.SlotClosedError

	switch {
	case errors.As(err, &closed):
		writeJSON(w, r, http.StatusUnprocessableEntity, slotClosedResponse{
			Error:  closed.Error(),
			Window: dto.FromWindow(closed.Window),
		})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrRouteNotFound),
		errors.Is(err, domain.ErrStopNotFound),
		errors.Is(err, domain.ErrDriverNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRouteAlreadyClaimed):
		writeError(w, r, http.StatusConflict, "route no longer available")
	case errors.Is(err, domain.ErrDriverAlreadyOnRoute),
		errors.Is(err, domain.ErrDriverOffline),
		errors.Is(err, domain.ErrRouteNotActive),
		errors.Is(err, domain.ErrStopNotPending),
		errors.Is(err, domain.ErrEarningsNotReady):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPickupNotCompleted):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), op+" failed", "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
