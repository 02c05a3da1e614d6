package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"log/slog"

	"github.com/JoeProAI/followlytics/internal/auth"
	"github.com/JoeProAI/followlytics/internal/models"
)

// TargetHandler serves tracked-target management routes.
type TargetHandler struct {
	targets   models.TargetRepository
	followers models.FollowerRepository
	logger    *slog.Logger
}

func NewTargetHandler(targets models.TargetRepository, followers models.FollowerRepository, logger *slog.Logger) *TargetHandler {
	return &TargetHandler{
		targets:   targets,
		followers: followers,
		logger:    logger,
	}
}

type targetRequest struct {
	Handle       string `json:"handle"`
	DisplayName  string `json:"display_name"`
	ScanSchedule string `json:"scan_schedule"`
}

// ListTargets returns the caller's tracked targets
// GET /api/targets
func (h *TargetHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := auth.GetUserIDFromContext(r.Context())

	targets, err := h.targets.List(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list targets", "error", err)
		http.Error(w, "Failed to list targets", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"targets": targets,
		"count":   len(targets),
	})
}

// AddTarget registers a new handle for follower tracking
// POST /api/targets
// Body: {"handle": "@JoeProAI", "display_name": "Joe", "scan_schedule": "0 */6 * * *"}
func (h *TargetHandler) AddTarget(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := auth.GetUserIDFromContext(r.Context())

	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	normalized, err := ValidateTarget(req.Handle, req.ScanSchedule)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := h.targets.GetByHandle(r.Context(), ownerID, normalized)
	if err != nil {
		h.logger.Error("failed to check existing target", "error", err)
		http.Error(w, "Failed to store target", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "Target already tracked", http.StatusConflict)
		return
	}

	target := &models.TrackedTarget{
		Handle:       normalized,
		OwnerID:      ownerID,
		DisplayName:  req.DisplayName,
		ScanSchedule: req.ScanSchedule,
	}
	if err := h.targets.Store(r.Context(), target); err != nil {
		h.logger.Error("failed to store target", "error", err)
		http.Error(w, "Failed to store target", http.StatusInternalServerError)
		return
	}

	h.logger.Info("added tracked target", "handle", normalized, "owner", ownerID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(target)
}

// GetTarget returns a specific tracked target
// GET /api/targets/:id
func (h *TargetHandler) GetTarget(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/targets/")

	target, err := h.loadOwned(w, r, id)
	if target == nil || err != nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(target)
}

// UpdateTarget updates display name and scan schedule
// PUT /api/targets/:id
func (h *TargetHandler) UpdateTarget(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/targets/")

	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	target, err := h.loadOwned(w, r, id)
	if target == nil || err != nil {
		return
	}

	if _, err := ValidateTarget(target.Handle, req.ScanSchedule); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	target.DisplayName = req.DisplayName
	target.ScanSchedule = req.ScanSchedule

	if err := h.targets.Store(r.Context(), target); err != nil {
		h.logger.Error("failed to update target", "error", err)
		http.Error(w, "Failed to update target", http.StatusInternalServerError)
		return
	}

	h.logger.Info("updated tracked target", "id", id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(target)
}

// DeleteTarget removes a target from tracking
// DELETE /api/targets/:id
func (h *TargetHandler) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/targets/")

	target, err := h.loadOwned(w, r, id)
	if target == nil || err != nil {
		return
	}

	if err := h.targets.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete target", "error", err)
		http.Error(w, "Failed to delete target", http.StatusInternalServerError)
		return
	}

	h.logger.Info("deleted tracked target", "id", id)

	w.WriteHeader(http.StatusNoContent)
}

// loadOwned fetches the target and enforces ownership; it writes the error
// response itself and returns nil when the caller should stop.
func (h *TargetHandler) loadOwned(w http.ResponseWriter, r *http.Request, id string) (*models.TrackedTarget, error) {
	target, err := h.targets.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get target", "error", err)
		http.Error(w, "Failed to get target", http.StatusInternalServerError)
		return nil, err
	}
	if target == nil {
		http.Error(w, "Target not found", http.StatusNotFound)
		return nil, nil
	}

	ownerID, _ := auth.GetUserIDFromContext(r.Context())
	if target.OwnerID != ownerID {
		http.Error(w, "Target not found", http.StatusNotFound)
		return nil, nil
	}

	return target, nil
}
