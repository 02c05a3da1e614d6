package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"log/slog"

	"github.com/JoeProAI/followlytics/internal/classifier"
	"github.com/JoeProAI/followlytics/internal/models"
)

// ReportHandler serves the read-side routes: unfollower lists, event history,
// behavioral patterns, and data-quality errors.
type ReportHandler struct {
	followers  models.FollowerRepository
	events     models.ChangeEventRepository
	quality    models.QualityErrorRepository
	classifier *classifier.Classifier
	logger     *slog.Logger
}

func NewReportHandler(followers models.FollowerRepository, events models.ChangeEventRepository, quality models.QualityErrorRepository, c *classifier.Classifier, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		followers:  followers,
		events:     events,
		quality:    quality,
		classifier: c,
		logger:     logger,
	}
}

func targetIDFromPath(path, suffix string) string {
	id := strings.TrimPrefix(path, "/api/targets/")
	return strings.TrimSuffix(id, suffix)
}

// ListUnfollowers returns unfollowed records, most recent first
// GET /api/targets/:id/unfollowers?limit=50&offset=0
func (h *ReportHandler) ListUnfollowers(w http.ResponseWriter, r *http.Request) {
	targetID := targetIDFromPath(r.URL.Path, "/unfollowers")

	limit := parsePositive(r.URL.Query().Get("limit"), 50, 200)
	offset := parsePositive(r.URL.Query().Get("offset"), 0, 1_000_000)

	records, err := h.followers.ListUnfollowed(r.Context(), targetID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list unfollowers", "target_id", targetID, "error", err)
		http.Error(w, "Failed to list unfollowers", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"unfollowers": records,
		"count":       len(records),
	})
}

// ListEvents returns a page of change events, most recent first
// GET /api/targets/:id/events?limit=50&offset=0
func (h *ReportHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	targetID := targetIDFromPath(r.URL.Path, "/events")

	limit := parsePositive(r.URL.Query().Get("limit"), 50, 200)
	offset := parsePositive(r.URL.Query().Get("offset"), 0, 1_000_000)

	events, total, err := h.events.ListByTarget(r.Context(), targetID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list events", "target_id", targetID, "error", err)
		http.Error(w, "Failed to list events", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"events": events,
		"count":  len(events),
		"total":  total,
	})
}

// GetPatterns returns the behavioral pattern report for a target
// GET /api/targets/:id/patterns
func (h *ReportHandler) GetPatterns(w http.ResponseWriter, r *http.Request) {
	targetID := targetIDFromPath(r.URL.Path, "/patterns")

	report, err := h.classifier.Classify(r.Context(), targetID)
	if err != nil {
		h.logger.Error("failed to classify target", "target_id", targetID, "error", err)
		http.Error(w, "Failed to build pattern report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// ListQualityErrors returns recent data-quality errors for a target
// GET /api/targets/:id/quality-errors?limit=50
func (h *ReportHandler) ListQualityErrors(w http.ResponseWriter, r *http.Request) {
	targetID := targetIDFromPath(r.URL.Path, "/quality-errors")

	limit := parsePositive(r.URL.Query().Get("limit"), 50, 200)

	errs, err := h.quality.ListByTarget(r.Context(), targetID, limit)
	if err != nil {
		h.logger.Error("failed to list quality errors", "target_id", targetID, "error", err)
		http.Error(w, "Failed to list quality errors", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": errs,
		"count":  len(errs),
	})
}
