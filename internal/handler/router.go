package handler

import (
	"net/http"
	"time"

	"github.com/dmarques/finsight-api/internal/domain"
	"github.com/dmarques/finsight-api/internal/infra/observability"
	"github.com/dmarques/finsight-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract defined for the FinSight frontend.
func NewRouter(insightsSvc *service.InsightsService, connectSvc *service.ConnectService, metrics *observability.Metrics, allowedOrigins []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(connectSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Link flow
		// POST /v1/link/token
		// POST /v1/link/exchange
		// =============================================
		r.Post("/link/token", createLinkTokenHandler(connectSvc, logger))
		r.Post("/link/exchange", exchangePublicTokenHandler(connectSvc, logger))

		// =============================================
		// 2. Analytics
		// GET /v1/analytics/{accessToken}
		// GET /v1/overview/{accessToken}
		// GET /v1/dashboard/{accessToken}
		// =============================================
		r.Get("/analytics/{accessToken}", getAnalyticsHandler(insightsSvc, metrics, logger))
		r.Get("/overview/{accessToken}", getOverviewHandler(insightsSvc, metrics, logger))
		r.Get("/dashboard/{accessToken}", getDashboardHandler(insightsSvc, metrics, logger))

		// =============================================
		// 3. Connect-a-bank flow
		// POST /v1/connect
		// GET  /v1/institutions/search
		// =============================================
		r.Post("/connect", connectHandler(connectSvc, logger))
		r.Get("/institutions/search", searchInstitutionsHandler(connectSvc, logger))

		// =============================================
		// 4. Aggregation users & members
		// =============================================
		r.Get("/users", listUsersHandler(connectSvc, logger))
		r.Delete("/users/{userGuid}", deleteUserHandler(connectSvc, logger))
		r.Get("/users/{userGuid}/members/{memberGuid}/status", memberStatusHandler(connectSvc, logger))

		// =============================================
		// 5. Operational metrics
		// GET /v1/metrics/ops
		// =============================================
		r.Get("/metrics/ops", opsMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(connectSvc *service.ConnectService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "finsight-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if connectSvc != nil {
			start := time.Now()
			_, err := connectSvc.ListUsers(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "mx", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func opsMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetOpsSnapshot())
	}
}
