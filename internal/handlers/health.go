package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/chemtrack/chemtrack/internal/store"
)

type HealthHandler struct {
	store store.TTLStore
}

func NewHealthHandler(s store.TTLStore) *HealthHandler {
	return &HealthHandler{store: s}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondWithJSON(w, code, map[string]string{
		"status":  status,
		"storage": h.store.Backend(),
	})
}
