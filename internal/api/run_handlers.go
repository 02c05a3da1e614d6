package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/time/rate"

	"github.com/JoeProAI/followlytics/internal/ingestion"
	"github.com/JoeProAI/followlytics/internal/models"
	"github.com/JoeProAI/followlytics/internal/tracker"
)

// Manual run starts are throttled per target so a misbehaving client cannot
// hammer the extraction source.
const (
	runStartInterval = 30 * time.Second
	runStartBurst    = 2
)

// RunHandler serves the scan run lifecycle routes.
type RunHandler struct {
	manager *tracker.Manager
	runs    models.ScanRunRepository
	logger  *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewRunHandler(manager *tracker.Manager, runs models.ScanRunRepository, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		manager:  manager,
		runs:     runs,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (h *RunHandler) limiter(targetID string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[targetID]
	if !ok {
		l = rate.NewLimiter(rate.Every(runStartInterval), runStartBurst)
		h.limiters[targetID] = l
	}
	return l
}

// StartRun opens a new scan run for a target
// POST /api/targets/:id/runs
func (h *RunHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	targetID := strings.TrimPrefix(r.URL.Path, "/api/targets/")
	targetID = strings.TrimSuffix(targetID, "/runs")

	if !h.limiter(targetID).Allow() {
		http.Error(w, "Too many run starts for this target", http.StatusTooManyRequests)
		return
	}

	run, err := h.manager.StartRun(r.Context(), targetID)
	if err != nil {
		switch {
		case errors.Is(err, tracker.ErrTargetNotFound):
			http.Error(w, "Target not found", http.StatusNotFound)
		case errors.Is(err, tracker.ErrRunActive):
			http.Error(w, "Target already has a run in progress", http.StatusConflict)
		default:
			h.logger.Error("failed to start run", "target_id", targetID, "error", err)
			http.Error(w, "Failed to start run", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(run)
}

// ListRuns returns recent runs for a target
// GET /api/targets/:id/runs?limit=20
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	targetID := strings.TrimPrefix(r.URL.Path, "/api/targets/")
	targetID = strings.TrimSuffix(targetID, "/runs")

	limit := parsePositive(r.URL.Query().Get("limit"), 20, 100)

	runs, err := h.runs.ListByTarget(r.Context(), targetID, limit)
	if err != nil {
		h.logger.Error("failed to list runs", "target_id", targetID, "error", err)
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns the current state of a run
// GET /api/runs/:id
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")

	run, err := h.manager.GetRunStatus(r.Context(), runID)
	if err != nil {
		if errors.Is(err, tracker.ErrRunNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get run", "run_id", runID, "error", err)
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

type pageRequest struct {
	Profiles []ingestion.RawProfile `json:"profiles"`
}

// SubmitPage delivers one extracted page for a run
// POST /api/runs/:id/pages
// Body: {"profiles": [{"handle": "@alice", ...}, ...]}
func (h *RunHandler) SubmitPage(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID = strings.TrimSuffix(runID, "/pages")

	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	run, err := h.manager.SubmitPage(r.Context(), runID, req.Profiles)
	if err != nil {
		h.writeRunError(w, runID, err, "failed to submit page")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// CompleteRun finalizes a run: fold, gate, diff, commit
// POST /api/runs/:id/complete
func (h *RunHandler) CompleteRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID = strings.TrimSuffix(runID, "/complete")

	outcome, err := h.manager.CompleteRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, tracker.ErrEmptyRun) {
			http.Error(w, "Run extracted no profiles; marked failed", http.StatusUnprocessableEntity)
			return
		}
		h.writeRunError(w, runID, err, "failed to complete run")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}

type failRequest struct {
	Reason string `json:"reason"`
}

// FailRun marks a run failed
// POST /api/runs/:id/fail
// Body: {"reason": "browser session expired"}
func (h *RunHandler) FailRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID = strings.TrimSuffix(runID, "/fail")

	var req failRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		req.Reason = "failed by operator"
	}

	if err := h.manager.FailRun(r.Context(), runID, req.Reason); err != nil {
		h.writeRunError(w, runID, err, "failed to fail run")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     runID,
		"status": models.RunStatusFailed,
	})
}

func (h *RunHandler) writeRunError(w http.ResponseWriter, runID string, err error, logMsg string) {
	switch {
	case errors.Is(err, tracker.ErrRunNotFound):
		http.Error(w, "Run not found", http.StatusNotFound)
	case errors.Is(err, tracker.ErrRunTerminal):
		http.Error(w, "Run already finished", http.StatusConflict)
	default:
		h.logger.Error(logMsg, "run_id", runID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
