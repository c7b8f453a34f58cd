package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mkellner/curator/internal/constants"
	"github.com/mkellner/curator/internal/curator"
	"github.com/mkellner/curator/internal/domain"
	"github.com/mkellner/curator/internal/store"
)

// Refresh kicks off a curation cycle in the background. The cycle can
// take minutes, so the API only acknowledges the trigger; progress is
// visible through /api/status.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.Curator.State() != curator.StateIdle {
		h.respondError(w, http.StatusConflict, "a refresh cycle is already running")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.CycleTimeout)
		defer cancel()
		if _, err := h.Curator.RunCycle(ctx); err != nil {
			// Two near-simultaneous triggers can both pass the state
			// check; the loser is rejected by the cycle lock here.
			h.Log.Error("triggered refresh failed", "error", err)
		}
	}()

	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.Curator.Status()
	if err != nil {
		h.Log.Error("failed to build status", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	h.respondJSON(w, http.StatusOK, status)
}

func (h *Handler) Cycles(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	cycles, err := h.DB.ListCycleResults(limit)
	if err != nil {
		h.Log.Error("failed to list cycles", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load cycle history")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"cycles": cycles})
}

func (h *Handler) ListSeeds(w http.ResponseWriter, r *http.Request) {
	artists, err := h.DB.ListSeeds(domain.SeedArtist)
	if err != nil {
		h.Log.Error("failed to list seeds", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load seeds")
		return
	}
	songs, err := h.DB.ListSeeds(domain.SeedSong)
	if err != nil {
		h.Log.Error("failed to list seeds", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load seeds")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"artists": artists,
		"songs":   songs,
	})
}

func (h *Handler) AddSeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, ok := parseSeedKind(req.Kind)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "kind must be \"artist\" or \"song\"")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.respondError(w, http.StatusBadRequest, "name cannot be empty")
		return
	}

	if err := h.DB.AddSeed(domain.Seed{Name: req.Name, Kind: kind}); err != nil {
		if errors.Is(err, store.ErrSeedExists) {
			h.respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.Log.Error("failed to add seed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to add seed")
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]string{"name": req.Name, "kind": string(kind)})
}

func (h *Handler) RemoveSeed(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseSeedKind(chi.URLParam(r, "kind"))
	if !ok {
		h.respondError(w, http.StatusBadRequest, "kind must be \"artist\" or \"song\"")
		return
	}
	name := chi.URLParam(r, "name")

	if err := h.DB.RemoveSeed(name, kind); err != nil {
		if errors.Is(err, store.ErrSeedNotFound) {
			h.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.Log.Error("failed to remove seed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to remove seed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseSeedKind(s string) (domain.SeedKind, bool) {
	switch s {
	case "", string(domain.SeedArtist):
		return domain.SeedArtist, true
	case string(domain.SeedSong):
		return domain.SeedSong, true
	}
	return "", false
}
