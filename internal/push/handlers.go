package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"chargesync/internal/models"
	"chargesync/internal/sources"
)

const maxPushBody = 4 << 20

// StatusSyncer is the part of the sync engine the push receiver drives.
type StatusSyncer interface {
	SyncStatuses(ctx context.Context, realtimeSource, chargepointSource string, statuses iter.Seq[models.StatusEvent]) (int, error)
}

// Handler dispatches inbound pushes to the matching source parser.
type Handler struct {
	registry *sources.Registry
	syncer   StatusSyncer
	// apiKeys maps data source ID to the bcrypt hash of its push key.
	apiKeys map[string]string
	logger  *zap.Logger
}

// NewHandler builds the push dispatch handler.
func NewHandler(registry *sources.Registry, syncer StatusSyncer, apiKeys map[string]string, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, syncer: syncer, apiKeys: apiKeys, logger: logger}
}

// NewRouter wires the push routes.
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /push/{source}", h.handlePush)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (h *Handler) handlePush(w http.ResponseWriter, r *http.Request) {
	sourceID := r.PathValue("source")

	src, err := h.registry.Get(sourceID)
	if err != nil || src.Push == nil {
		writeError(w, http.StatusNotFound, "unknown push source")
		return
	}

	if !h.authorize(sourceID, r.Header.Get("X-Api-Key")) {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	events, err := src.Push.ParsePush(body)
	if err != nil {
		h.logger.Warn("rejecting push payload",
			zap.String("data_source", sourceID),
			zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	accepted, err := h.syncer.SyncStatuses(r.Context(), src.ID, src.ChargepointSource(), slices.Values(events))
	if err != nil {
		h.logger.Error("failed to store pushed statuses",
			zap.String("data_source", sourceID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store statuses")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"received": len(events),
		"accepted": accepted,
	})
}

func (h *Handler) authorize(sourceID, key string) bool {
	hash, ok := h.apiKeys[sourceID]
	if !ok || key == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		h.logger.Warn("api key comparison failed", zap.Error(err))
	}
	return err == nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
