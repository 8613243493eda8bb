package rest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/diamond/internal/backfill"
	"github.com/fortuna/diamond/internal/cache"
	"github.com/fortuna/diamond/internal/normalize"
	"github.com/fortuna/diamond/internal/store"
)

const gameStatusTTL = 30 * time.Second

// JobService enqueues and reports normalization jobs.
type JobService interface {
	Enqueue(ctx context.Context, req backfill.Request) (*backfill.Job, error)
	GetStatus(ctx context.Context) (*backfill.StatusSummary, error)
}

// GameStore reads back what is stored for a game.
type GameStore interface {
	GetGameStatus(ctx context.Context, gamePK int64) (*store.GameStatus, error)
}

// StatusCache caches game status lookups.
type StatusCache interface {
	GetJSON(ctx context.Context, key string, v interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
}

// StateTracker reports in-process normalization state.
type StateTracker interface {
	State(gamePK int64) (normalize.GameState, bool)
}

// Deps are the collaborators behind the API. Any of them may be nil.
type Deps struct {
	Jobs    JobService
	Games   GameStore
	Cache   StatusCache
	States  StateTracker
	Metrics http.Handler
	// Health checks run on GET /health, keyed by component name.
	Health map[string]func(ctx context.Context) error
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	deps Deps
}

// NewHandler creates a new handler
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.deps.Health))
	for name := range h.deps.Health {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.deps.Health[name](ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":  overall,
		"service": "diamond",
		"checks":  checks,
	})
}

type gameStatusResponse struct {
	*store.GameStatus
	State string `json:"state,omitempty"`
}

// GetGameStatus handles GET /api/v1/games/{gamePk}/status
func (h *Handler) GetGameStatus(w http.ResponseWriter, r *http.Request) {
	gamePK, err := strconv.ParseInt(mux.Vars(r)["gamePk"], 10, 64)
	if err != nil || gamePK <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid gamePk", err)
		return
	}

	resp := gameStatusResponse{GameStatus: &store.GameStatus{GamePK: gamePK}}
	if h.deps.States != nil {
		if state, ok := h.deps.States.State(gamePK); ok {
			resp.State = string(state)
		}
	}

	stored, err := h.lookupGameStatus(r.Context(), gamePK)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch game status", err)
		return
	}
	if stored != nil {
		resp.GameStatus = stored
	}

	if !resp.Stored && resp.State == "" {
		respondError(w, http.StatusNotFound, "Game not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) lookupGameStatus(ctx context.Context, gamePK int64) (*store.GameStatus, error) {
	if h.deps.Games == nil {
		return nil, nil
	}

	key := cache.GameStatusKey(gamePK)
	if h.deps.Cache != nil {
		var cached store.GameStatus
		found, err := h.deps.Cache.GetJSON(ctx, key, &cached)
		if err != nil {
			log.Printf("[api] cache read %s: %v", key, err)
		} else if found {
			return &cached, nil
		}
	}

	status, err := h.deps.Games.GetGameStatus(ctx, gamePK)
	if err != nil {
		return nil, err
	}

	if h.deps.Cache != nil && status.Stored {
		if err := h.deps.Cache.SetJSON(ctx, key, status, gameStatusTTL); err != nil {
			log.Printf("[api] cache write %s: %v", key, err)
		}
	}
	return status, nil
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}
