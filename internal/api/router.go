package api

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/JoeProAI/followlytics/internal/auth"
	"github.com/JoeProAI/followlytics/internal/classifier"
	"github.com/JoeProAI/followlytics/internal/models"
	"github.com/JoeProAI/followlytics/internal/tracker"
)

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, manager *tracker.Manager, targetRepo models.TargetRepository, followerRepo models.FollowerRepository, runRepo models.ScanRunRepository, eventRepo models.ChangeEventRepository, qualityRepo models.QualityErrorRepository, patternClassifier *classifier.Classifier, authConfig auth.Config, logger *slog.Logger) {
	targetHandler := NewTargetHandler(targetRepo, followerRepo, logger)
	runHandler := NewRunHandler(manager, runRepo, logger)
	reportHandler := NewReportHandler(followerRepo, eventRepo, qualityRepo, patternClassifier, logger)
	authHandler := NewAuthHandler(authConfig, logger)

	authMiddleware := auth.Middleware(authConfig)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(authHandler.ValidateToken)).ServeHTTP(w, r)
	})

	// Target collection routes
	mux.HandleFunc("/api/targets", func(w http.ResponseWriter, r *http.Request) {
		// Handle CORS preflight
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
			return
		}

		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				targetHandler.ListTargets(w, r)
			case http.MethodPost:
				targetHandler.AddTarget(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// Target subroutes: runs, reports, and by-ID operations
	mux.HandleFunc("/api/targets/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/targets/" {
			http.NotFound(w, r)
			return
		}

		// Handle CORS preflight for subroutes
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
			return
		}

		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Handle /api/targets/:id/runs
			if strings.HasSuffix(r.URL.Path, "/runs") {
				switch r.Method {
				case http.MethodPost:
					runHandler.StartRun(w, r)
				case http.MethodGet:
					runHandler.ListRuns(w, r)
				default:
					http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				}
				return
			}

			// Handle /api/targets/:id/unfollowers
			if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/unfollowers") {
				reportHandler.ListUnfollowers(w, r)
				return
			}

			// Handle /api/targets/:id/events
			if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/events") {
				reportHandler.ListEvents(w, r)
				return
			}

			// Handle /api/targets/:id/patterns
			if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/patterns") {
				reportHandler.GetPatterns(w, r)
				return
			}

			// Handle /api/targets/:id/quality-errors
			if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/quality-errors") {
				reportHandler.ListQualityErrors(w, r)
				return
			}

			// Handle /api/targets/:id
			switch r.Method {
			case http.MethodGet:
				targetHandler.GetTarget(w, r)
			case http.MethodPut:
				targetHandler.UpdateTarget(w, r)
			case http.MethodDelete:
				targetHandler.DeleteTarget(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// Run subroutes: page delivery, completion, failure, status
	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/runs/" {
			http.NotFound(w, r)
			return
		}

		// Handle CORS preflight for subroutes
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
			return
		}

		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Handle /api/runs/:id/pages
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/pages") {
				runHandler.SubmitPage(w, r)
				return
			}

			// Handle /api/runs/:id/complete
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/complete") {
				runHandler.CompleteRun(w, r)
				return
			}

			// Handle /api/runs/:id/fail
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/fail") {
				runHandler.FailRun(w, r)
				return
			}

			// Handle /api/runs/:id
			if r.Method == http.MethodGet {
				runHandler.GetRun(w, r)
				return
			}

			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		})).ServeHTTP(w, r)
	})

	// CORS preflight
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	})
}
