package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dmarques/finsight-api/internal/domain"
	"github.com/dmarques/finsight-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Link flow — POST /v1/link/token, POST /v1/link/exchange
// ============================================================

func createLinkTokenHandler(svc *service.ConnectService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/link/token")
		defer span.End()

		// The body is optional; an empty client user id gets generated.
		var req struct {
			ClientUserID string `json:"client_user_id"`
		}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&req)
		}

		linkToken, err := svc.CreateLinkToken(ctx, req.ClientUserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"link_token": linkToken})
	}
}

func exchangePublicTokenHandler(svc *service.ConnectService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/link/exchange")
		defer span.End()

		var req struct {
			PublicToken string `json:"public_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		accessToken, err := svc.ExchangePublicToken(ctx, req.PublicToken)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
	}
}

// ============================================================
// Connect-a-bank — POST /v1/connect
// ============================================================

func connectHandler(svc *service.ConnectService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/connect")
		defer span.End()

		var req domain.ConnectRequest
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&req)
		}
		span.SetAttributes(attribute.String("user.guid", req.UserGUID))

		resp, err := svc.Connect(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		status := http.StatusOK
		if resp.AggregationScheduled {
			status = http.StatusAccepted
		}
		writeJSON(w, status, resp)
	}
}

// ============================================================
// Institutions — GET /v1/institutions/search?q=
// ============================================================

func searchInstitutionsHandler(svc *service.ConnectService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/institutions/search")
		defer span.End()

		query := r.URL.Query().Get("q")
		institutions, err := svc.SearchInstitutions(ctx, query)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"institutions": institutions})
	}
}

// ============================================================
// Users & members
// ============================================================

func listUsersHandler(svc *service.ConnectService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users")
		defer span.End()

		users, err := svc.ListUsers(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	}
}

func deleteUserHandler(svc *service.ConnectService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/users/{userGuid}")
		defer span.End()

		userGUID := chi.URLParam(r, "userGuid")
		if err := svc.DeleteUser(ctx, userGUID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "user_guid": userGUID})
	}
}

func memberStatusHandler(svc *service.ConnectService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userGuid}/members/{memberGuid}/status")
		defer span.End()

		userGUID := chi.URLParam(r, "userGuid")
		memberGUID := chi.URLParam(r, "memberGuid")
		if userGUID == "" || memberGUID == "" {
			writeError(w, http.StatusBadRequest, "user and member GUIDs are required")
			return
		}

		status, err := svc.MemberStatus(ctx, userGUID, memberGUID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, status)
	}
}
