package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/Cother-2020/ProjectM/internal/orders"
	"github.com/go-chi/chi/v5"
)

type StatsHandler struct {
	Service *orders.Service
}

func (h *StatsHandler) Register(r chi.Router) {
	r.Get("/api/stats", h.get)
}

func (h *StatsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	st, err := h.Service.Stats(ctx, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
