package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bher20/enerbill/internal/api/swagger"
	"github.com/bher20/enerbill/internal/auth"
	"github.com/bher20/enerbill/internal/billing"
	"github.com/bher20/enerbill/internal/metrics"
	"github.com/bher20/enerbill/internal/notification"
	"github.com/bher20/enerbill/internal/storage"
)

// NewMux constructs the HTTP mux, wiring the billing service, storage-backed
// admin routes, auth, metrics, and health endpoints. authSvc and notifSvc may
// be nil; the affected routes then run unauthenticated (useful for tests
// and single-user deployments).
func NewMux(st storage.Storage, authSvc *auth.Service, notifSvc *notification.Service) *http.ServeMux {
	mux := http.NewServeMux()

	billingSvc := billing.NewService(st)

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			log.Printf("readyz: db ping failed: %v", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	// API docs.
	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))

	registerReportRoutes(mux, authSvc, billingSvc)
	registerContractRoutes(mux, authSvc, st, billingSvc)
	registerRateRoutes(mux, authSvc, st)
	if authSvc != nil {
		registerAuthRoutes(mux, authSvc, st)
	}
	if authSvc != nil && notifSvc != nil {
		registerNotificationRoutes(mux, authSvc, notifSvc)
	}

	return mux
}

// withAuth wraps a handler with the token middleware when auth is enabled.
func withAuth(authSvc *auth.Service, h http.HandlerFunc) http.Handler {
	if authSvc == nil {
		return h
	}
	return authSvc.Middleware(h)
}

// requirePermission checks the request token against the RBAC policy. With
// auth disabled every request is allowed.
func requirePermission(authSvc *auth.Service, r *http.Request, obj, act string) (int, bool) {
	if authSvc == nil {
		return 0, true
	}
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		return http.StatusUnauthorized, false
	}
	allowed, err := authSvc.Enforce(token.Role, obj, act)
	if err != nil || !allowed {
		return http.StatusForbidden, false
	}
	return 0, true
}

// accountID resolves the contract-owner id for the request. With auth enabled
// it comes from the token's user; otherwise the userId query parameter is
// required.
func accountID(authSvc *auth.Service, r *http.Request) (uint, error) {
	if authSvc != nil {
		token, ok := auth.TokenFromContext(r.Context())
		if !ok {
			return 0, errors.New("missing token")
		}
		return authSvc.AccountForToken(r.Context(), token)
	}
	raw := r.URL.Query().Get("userId")
	if raw == "" {
		return 0, errors.New("missing userId parameter")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.New("invalid userId parameter")
	}
	return uint(id), nil
}

// parseID extracts a numeric path segment.
func parseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response failed: %v", err)
	}
}

// writeError maps billing sentinel errors to status codes and records the
// error metric for the endpoint.
func writeError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, billing.ErrNotFound):
		metrics.RequestErrorsTotal.WithLabelValues(endpoint, "404").Inc()
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, billing.ErrInvalidInput):
		metrics.RequestErrorsTotal.WithLabelValues(endpoint, "400").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("%s failed: %v", endpoint, err)
		metrics.RequestErrorsTotal.WithLabelValues(endpoint, "500").Inc()
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// observe records the request counter and duration for an endpoint label.
// Call it at the top of a handler and defer the returned func.
func observe(endpoint string) func() {
	start := time.Now()
	metrics.RequestsTotal.WithLabelValues(endpoint).Inc()
	return func() {
		metrics.RequestDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// splitContractPath parses paths shaped like
// /api/v1/contracts/{id}/rest... and returns the id and remaining segments.
func splitContractPath(path string) (uint, []string, bool) {
	rest := strings.TrimPrefix(path, "/api/v1/contracts/")
	if rest == path {
		return 0, nil, false
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return 0, nil, false
	}
	id, ok := parseID(parts[0])
	if !ok {
		return 0, nil, false
	}
	return id, parts[1:], true
}
