package handlers

import (
	"context"
	"delivery-dispatch-service/internal/api/dto"
	"delivery-dispatch-service/internal/domain"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type DriverService interface {
	GoOnline(ctx context.Context, driverID, slot string) (domain.DriverSession, error)
	GoOffline(ctx context.Context, driverID string) (domain.DriverSession, error)
	Heartbeat(ctx context.Context, driverID string) (domain.DriverSession, error)
	ListAvailable(ctx context.Context, driverID, slot string) ([]domain.Route, error)
}

type DriverHandler struct {
	Drivers DriverService
}

func (h *DriverHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req dto.SessionRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	s, err := h.Drivers.GoOnline(r.Context(), chi.URLParam(r, "driverID"), req.TimeSlot)
	if err != nil {
		writeServiceError(w, r, "go online", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromSession(s))
}

func (h *DriverHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Drivers.GoOffline(r.Context(), chi.URLParam(r, "driverID"))
	if err != nil {
		writeServiceError(w, r, "go offline", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromSession(s))
}

func (h *DriverHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	s, err := h.Drivers.Heartbeat(r.Context(), chi.URLParam(r, "driverID"))
	if err != nil {
		writeServiceError(w, r, "heartbeat", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromSession(s))
}

// ListRoutes shows the routes a driver can claim, oldest first.
func (h *DriverHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.Drivers.ListAvailable(r.Context(), chi.URLParam(r, "driverID"), r.URL.Query().Get("slot"))
	if err != nil {
		writeServiceError(w, r, "list available routes", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromRoutes(routes))
}
