package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/OmorFaruk63/blogauth/middleware"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := a.engine.Ping(ctx); err != nil {
		a.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) adminPing(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"account_id": claims.AccountID,
	})
}
