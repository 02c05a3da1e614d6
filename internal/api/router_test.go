package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JoeProAI/followlytics/internal/auth"
	"github.com/JoeProAI/followlytics/internal/classifier"
	"github.com/JoeProAI/followlytics/internal/database"
	"github.com/JoeProAI/followlytics/internal/detection"
	"github.com/JoeProAI/followlytics/internal/metrics"
	"github.com/JoeProAI/followlytics/internal/models"
	"github.com/JoeProAI/followlytics/internal/tracker"
)

type apiFixture struct {
	server *httptest.Server
	token  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	targets := database.NewMemoryTargetRepository()
	followers := database.NewMemoryFollowerRepository()
	runs := database.NewMemoryScanRunRepository()
	events := database.NewMemoryChangeEventRepository()
	quality := database.NewMemoryQualityErrorRepository()

	collector, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("failed to build collector: %v", err)
	}

	manager := tracker.NewManager(
		targets, followers, runs, events, quality,
		detection.CoverageGate{Threshold: 0.80},
		collector, logger, 500,
	)
	patternClassifier := classifier.NewClassifier(events, 7, logger)

	authConfig := auth.Config{
		JWTSecret:     "test-secret",
		AdminPassword: "test-password",
		TokenDuration: time.Hour,
	}

	mux := http.NewServeMux()
	SetupRoutes(mux, manager, targets, followers, runs, events, quality, patternClassifier, authConfig, logger)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	token, err := auth.GenerateToken("admin", authConfig.JWTSecret, authConfig.TokenDuration)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	return &apiFixture{server: server, token: token}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestLogin(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Post(f.server.URL+"/api/auth/login", "application/json",
		bytes.NewBufferString(`{"password":"test-password"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var login LoginResponse
	decode(t, resp, &login)
	if login.Token == "" {
		t.Error("expected a token")
	}

	resp, err = http.Post(f.server.URL+"/api/auth/login", "application/json",
		bytes.NewBufferString(`{"password":"wrong"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", resp.StatusCode)
	}
}

func TestTargetsRequireAuth(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/api/targets")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}
}

func TestTargetAndRunLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	// Register a target.
	resp := f.do(t, http.MethodPost, "/api/targets", map[string]string{
		"handle":        "@JoeProAI",
		"display_name":  "Joe",
		"scan_schedule": "0 */6 * * *",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create target status = %d, want 201", resp.StatusCode)
	}
	var target models.TrackedTarget
	decode(t, resp, &target)
	if target.Handle != "joeproai" {
		t.Errorf("stored handle = %q, want normalized joeproai", target.Handle)
	}

	// Duplicate registration conflicts.
	resp = f.do(t, http.MethodPost, "/api/targets", map[string]string{"handle": "joeproai"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate target status = %d, want 409", resp.StatusCode)
	}

	// Start a run.
	resp = f.do(t, http.MethodPost, "/api/targets/"+target.ID+"/runs", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start run status = %d, want 201", resp.StatusCode)
	}
	var run models.ScanRun
	decode(t, resp, &run)

	// A second start conflicts while the first is in flight.
	resp = f.do(t, http.MethodPost, "/api/targets/"+target.ID+"/runs", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("concurrent run status = %d, want 409", resp.StatusCode)
	}

	// Deliver a page and complete.
	resp = f.do(t, http.MethodPost, "/api/runs/"+run.ID+"/pages", map[string]interface{}{
		"profiles": []map[string]interface{}{
			{"handle": "alice"},
			{"handle": "bob"},
		},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit page status = %d, want 200", resp.StatusCode)
	}

	resp = f.do(t, http.MethodPost, "/api/runs/"+run.ID+"/complete", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete run status = %d, want 200", resp.StatusCode)
	}
	var outcome tracker.RunOutcome
	decode(t, resp, &outcome)
	if !outcome.Trusted || outcome.NewFollows != 2 {
		t.Errorf("unexpected outcome: %+v", outcome)
	}

	// Run status is terminal now.
	resp = f.do(t, http.MethodGet, "/api/runs/"+run.ID, nil)
	var stored models.ScanRun
	decode(t, resp, &stored)
	if stored.Status != models.RunStatusCompleted {
		t.Errorf("run status = %s, want completed", stored.Status)
	}

	// Events are visible through the report route.
	resp = f.do(t, http.MethodGet, "/api/targets/"+target.ID+"/events", nil)
	var eventsPage struct {
		Total int `json:"total"`
	}
	decode(t, resp, &eventsPage)
	if eventsPage.Total != 2 {
		t.Errorf("total events = %d, want 2", eventsPage.Total)
	}

	// Pattern report is served even when empty.
	resp = f.do(t, http.MethodGet, "/api/targets/"+target.ID+"/patterns", nil)
	var report models.PatternReport
	decode(t, resp, &report)
	if report.TargetID != target.ID {
		t.Errorf("report target = %q, want %q", report.TargetID, target.ID)
	}
}

func TestAddTargetRejectsBadInput(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/targets", map[string]string{"handle": "  @  "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty-normalized handle status = %d, want 400", resp.StatusCode)
	}

	resp = f.do(t, http.MethodPost, "/api/targets", map[string]string{
		"handle":        "alice",
		"scan_schedule": "not a cron expression",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad schedule status = %d, want 400", resp.StatusCode)
	}
}
