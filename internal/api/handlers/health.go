package handlers

import (
	"net/http"
)

// ConnCounter reports how many board feed clients are connected.
type ConnCounter interface {
	Len() int
}

type HealthHandler struct {
	Board ConnCounter
}

// Health is a liveness check that also reports connected board clients.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	res := map[string]any{"status": "ok"}
	if h.Board != nil {
		res["board_clients"] = h.Board.Len()
	}
	writeJSON(w, r, http.StatusOK, res)
}
