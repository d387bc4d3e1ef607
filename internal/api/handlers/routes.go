package handlers

import (
	"context"
	"delivery-dispatch-service/internal/api/dto"
	"delivery-dispatch-service/internal/domain"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type RouteService interface {
	GetRoute(ctx context.Context, routeID string) (domain.Route, error)
	Claim(ctx context.Context, routeID, driverID string) (domain.Route, error)
	CompleteStop(ctx context.Context, routeID, stopID string) (domain.Route, error)
	FailStop(ctx context.Context, routeID, stopID, reason string) (domain.Route, error)
	GetEarnings(ctx context.Context, routeID string) (domain.EarningsRecord, error)
	CloseBatch(ctx context.Context, slot domain.TimeSlot) ([]domain.Route, error)
}

type RouteHandler struct {
	Routes RouteService
}

func (h *RouteHandler) Get(w http.ResponseWriter, r *http.Request) {
	route, err := h.Routes.GetRoute(r.Context(), chi.URLParam(r, "routeID"))
	if err != nil {
		writeServiceError(w, r, "get route", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromRoute(route))
}

func (h *RouteHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req dto.ClaimRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.DriverID) == "" {
		writeError(w, r, http.StatusBadRequest, "driver_id is required")
		return
	}

	route, err := h.Routes.Claim(r.Context(), chi.URLParam(r, "routeID"), req.DriverID)
	if err != nil {
		writeServiceError(w, r, "claim route", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromRoute(route))
}

func (h *RouteHandler) CompleteStop(w http.ResponseWriter, r *http.Request) {
	route, err := h.Routes.CompleteStop(r.Context(), chi.URLParam(r, "routeID"), chi.URLParam(r, "stopID"))
	if err != nil {
		writeServiceError(w, r, "complete stop", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromRoute(route))
}

func (h *RouteHandler) FailStop(w http.ResponseWriter, r *http.Request) {
	var req dto.FailStopRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	route, err := h.Routes.FailStop(r.Context(), chi.URLParam(r, "routeID"), chi.URLParam(r, "stopID"), req.Reason)
	if err != nil {
		writeServiceError(w, r, "fail stop", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromRoute(route))
}

func (h *RouteHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Routes.GetEarnings(r.Context(), chi.URLParam(r, "routeID"))
	if err != nil {
		writeServiceError(w, r, "get earnings", err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

// CloseBatch forces the slot's pending orders into routes now.
func (h *RouteHandler) CloseBatch(w http.ResponseWriter, r *http.Request) {
	slot, err := domain.ParseTimeSlot(chi.URLParam(r, "slot"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	routes, err := h.Routes.CloseBatch(r.Context(), slot)
	if err != nil {
		writeServiceError(w, r, "close batch", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromRoutes(routes))
}
