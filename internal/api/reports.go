package api

import (
	"net/http"
	"time"

	"github.com/bher20/enerbill/internal/auth"
	"github.com/bher20/enerbill/internal/billing"
)

// registerReportRoutes wires the consumption and cost report endpoints:
//
//	GET /api/v1/contracts/{id}/consumption/daily?date=YYYY-MM-DD
//	GET /api/v1/contracts/{id}/consumption/hourly?date=YYYY-MM-DD
//	GET /api/v1/contracts/{id}/consumption/monthly?date=YYYY-MM-DD
//	GET /api/v1/contracts/{id}/cost/monthly?date=YYYY-MM-DD
//	GET /api/v1/contracts/{id}/cost/daily?date=YYYY-MM-DD
//	GET /api/v1/dashboard
func registerReportRoutes(mux *http.ServeMux, authSvc *auth.Service, svc *billing.Service) {
	mux.Handle("/api/v1/dashboard", withAuth(authSvc, func(w http.ResponseWriter, r *http.Request) {
		done := observe("/api/v1/dashboard")
		defer done()

		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if status, ok := requirePermission(authSvc, r, "reports", "read"); !ok {
			http.Error(w, http.StatusText(status), status)
			return
		}
		userID, err := accountID(authSvc, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp, err := svc.DashboardIndicators(r.Context(), userID, time.Now())
		if err != nil {
			writeError(w, "/api/v1/dashboard", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}))
}

// handleContractReports serves the per-contract report sub-paths. It is called
// from the contracts route once the path is known to carry a report segment.
func handleContractReports(w http.ResponseWriter, r *http.Request, authSvc *auth.Service, svc *billing.Service, contractID uint, parts []string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if status, ok := requirePermission(authSvc, r, "reports", "read"); !ok {
		http.Error(w, http.StatusText(status), status)
		return
	}
	userID, err := accountID(authSvc, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "missing date parameter", http.StatusBadRequest)
		return
	}

	endpoint := "/api/v1/contracts/{id}/" + parts[0] + "/" + parts[1]
	done := observe(endpoint)
	defer done()

	var resp any
	switch parts[0] + "/" + parts[1] {
	case "consumption/daily":
		resp, err = svc.DailyConsumption(r.Context(), contractID, userID, date)
	case "consumption/hourly":
		resp, err = svc.DailyHourlyConsumption(r.Context(), contractID, userID, date)
	case "consumption/monthly":
		resp, err = svc.MonthlyConsumption(r.Context(), contractID, userID, date)
	case "cost/monthly":
		resp, err = svc.MonthlyCost(r.Context(), contractID, userID, date)
	case "cost/daily":
		resp, err = svc.DaysOfMonthCost(r.Context(), contractID, userID, date)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, endpoint, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
