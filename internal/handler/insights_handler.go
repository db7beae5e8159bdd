package handler

import (
	"net/http"

	"github.com/dmarques/finsight-api/internal/infra/observability"
	"github.com/dmarques/finsight-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Analytics — GET /v1/analytics/{accessToken}
// ============================================================

func getAnalyticsHandler(svc *service.InsightsService, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/analytics/{accessToken}")
		defer span.End()

		accessToken := chi.URLParam(r, "accessToken")
		if accessToken == "" {
			writeError(w, http.StatusBadRequest, "access token is required")
			return
		}

		result, err := svc.GetAnalytics(ctx, accessToken)
		if err != nil {
			metrics.IncrRequest("error")
			handleServiceError(w, err, logger)
			return
		}

		metrics.IncrRequest("success")
		writeJSON(w, http.StatusOK, result)
	}
}

// ============================================================
// Overview — GET /v1/overview/{accessToken}
// ============================================================

func getOverviewHandler(svc *service.InsightsService, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/overview/{accessToken}")
		defer span.End()

		accessToken := chi.URLParam(r, "accessToken")
		if accessToken == "" {
			writeError(w, http.StatusBadRequest, "access token is required")
			return
		}

		overview, err := svc.GetOverview(ctx, accessToken)
		if err != nil {
			metrics.IncrRequest("error")
			handleServiceError(w, err, logger)
			return
		}

		metrics.IncrRequest("success")
		writeJSON(w, http.StatusOK, overview)
	}
}

// ============================================================
// Dashboard — GET /v1/dashboard/{accessToken}
// ============================================================

func getDashboardHandler(svc *service.InsightsService, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/{accessToken}")
		defer span.End()

		accessToken := chi.URLParam(r, "accessToken")
		if accessToken == "" {
			writeError(w, http.StatusBadRequest, "access token is required")
			return
		}

		dashboard, err := svc.GetDashboard(ctx, accessToken)
		if err != nil {
			metrics.IncrRequest("error")
			handleServiceError(w, err, logger)
			return
		}

		metrics.IncrRequest("success")
		writeJSON(w, http.StatusOK, dashboard)
	}
}
