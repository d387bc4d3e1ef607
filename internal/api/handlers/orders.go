package handlers

import (
	"context"
	"delivery-dispatch-service/internal/api/dto"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/services"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	Submit(ctx context.Context, req services.OrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	Window(ctx context.Context, slot string) (domain.SlotWindow, error)
}

// OrderHandler is the checkout-facing side of the engine.
type OrderHandler struct {
	Orders OrderService
}

func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitOrderRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	o, err := h.Orders.Submit(r.Context(), req.ToService())
	if err != nil {
		writeServiceError(w, r, "submit order", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.FromOrder(o))
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(w, r, "get order", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromOrder(o))
}

// Window reports whether a delivery slot still accepts orders today.
func (h *OrderHandler) Window(w http.ResponseWriter, r *http.Request) {
	win, err := h.Orders.Window(r.Context(), chi.URLParam(r, "slot"))
	if err != nil {
		writeServiceError(w, r, "slot window", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromWindow(win))
}
