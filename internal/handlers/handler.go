package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkellner/curator/internal/curator"
	"github.com/mkellner/curator/internal/domain"
	"github.com/mkellner/curator/internal/logger"
	"github.com/mkellner/curator/internal/store"
)

// CycleRunner is the curation surface the API needs.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*domain.CycleResult, error)
	State() curator.CycleState
	Status() (*curator.Status, error)
}

type Handler struct {
	Curator CycleRunner
	DB      *store.DB
	Log     *logger.Logger
}

func NewHandler(c CycleRunner, db *store.DB, log *logger.Logger) *Handler {
	return &Handler{
		Curator: c,
		DB:      db,
		Log:     log.WithComponent("api"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/refresh", h.Refresh)
	r.Get("/api/status", h.Status)
	r.Get("/api/cycles", h.Cycles)

	r.Get("/api/seeds", h.ListSeeds)
	r.Post("/api/seeds", h.AddSeed)
	r.Delete("/api/seeds/{kind}/{name}", h.RemoveSeed)

	r.Get("/healthz", h.Health)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Log.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, map[string]string{"error": msg})
}
