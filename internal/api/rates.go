package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bher20/enerbill/internal/auth"
	"github.com/bher20/enerbill/internal/storage"
	"github.com/bher20/enerbill/internal/tariff"
)

// registerRateRoutes wires tariff administration:
//
//	GET  /api/v1/rates                      list rates (?name= fetches one by name)
//	POST /api/v1/rates                      create a rate
//	POST /api/v1/rates/import               import a rate from a tariff PDF
//	GET  /api/v1/rates/{id}                 fetch one rate with discounts
//	POST /api/v1/rates/{id}/activate        clear the rate's end date
//	POST /api/v1/rates/{id}/deactivate      end the rate now
//	POST /api/v1/rates/{id}/discounts       attach a discount
//	POST /api/v1/discounts/{id}/activate
//	POST /api/v1/discounts/{id}/deactivate
func registerRateRoutes(mux *http.ServeMux, authSvc *auth.Service, st storage.Storage) {
	mux.Handle("/api/v1/rates", withAuth(authSvc, func(w http.ResponseWriter, r *http.Request) {
		done := observe("/api/v1/rates")
		defer done()

		switch r.Method {
		case http.MethodGet:
			if status, ok := requirePermission(authSvc, r, "rates", "read"); !ok {
				http.Error(w, http.StatusText(status), status)
				return
			}
			if name := r.URL.Query().Get("name"); name != "" {
				rate, err := st.GetRateByName(r.Context(), name)
				if err != nil {
					writeError(w, "/api/v1/rates", err)
					return
				}
				if rate == nil {
					http.Error(w, "rate not found", http.StatusNotFound)
					return
				}
				writeJSON(w, http.StatusOK, rate)
				return
			}
			list, err := st.ListRates(r.Context())
			if err != nil {
				writeError(w, "/api/v1/rates", err)
				return
			}
			if list == nil {
				list = []storage.Rate{}
			}
			writeJSON(w, http.StatusOK, list)

		case http.MethodPost:
			if status, ok := requirePermission(authSvc, r, "rates", "write"); !ok {
				http.Error(w, http.StatusText(status), status)
				return
			}
			var rate storage.Rate
			if err := json.NewDecoder(r.Body).Decode(&rate); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			if rate.Name == "" {
				http.Error(w, "name is required", http.StatusBadRequest)
				return
			}
			if rate.StartDate.IsZero() {
				rate.StartDate = time.Now()
			}
			created, err := st.CreateRate(r.Context(), rate)
			if err != nil {
				writeError(w, "/api/v1/rates", err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	mux.Handle("/api/v1/rates/import", withAuth(authSvc, func(w http.ResponseWriter, r *http.Request) {
		done := observe("/api/v1/rates/import")
		defer done()

		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if status, ok := requirePermission(authSvc, r, "rates", "write"); !ok {
			http.Error(w, http.StatusText(status), status)
			return
		}

		var req struct {
			Path string `json:"path"`
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Path == "" {
			http.Error(w, "path is required", http.StatusBadRequest)
			return
		}

		rate, err := tariff.ImportFromPDF(req.Path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Name != "" {
			rate.Name = req.Name
		}
		created, err := st.CreateRate(r.Context(), *rate)
		if err != nil {
			writeError(w, "/api/v1/rates/import", err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}))

	mux.Handle("/api/v1/rates/", withAuth(authSvc, func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/rates/"), "/"), "/")
		id, ok := parseID(parts[0])
		if !ok {
			http.NotFound(w, r)
			return
		}
		handleRate(w, r, authSvc, st, id, parts[1:])
	}))

	mux.Handle("/api/v1/discounts/", withAuth(authSvc, func(w http.ResponseWriter, r *http.Request) {
		done := observe("/api/v1/discounts/{id}")
		defer done()

		parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/discounts/"), "/"), "/")
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		id, ok := parseID(parts[0])
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if status, ok := requirePermission(authSvc, r, "rates", "write"); !ok {
			http.Error(w, http.StatusText(status), status)
			return
		}

		var err error
		switch parts[1] {
		case "activate":
			err = st.ActivateDiscount(r.Context(), id)
		case "deactivate":
			err = st.DeactivateDiscount(r.Context(), id, time.Now())
		default:
			http.NotFound(w, r)
			return
		}
		if err != nil {
			writeError(w, "/api/v1/discounts/{id}", err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func handleRate(w http.ResponseWriter, r *http.Request, authSvc *auth.Service, st storage.Storage, id uint, rest []string) {
	done := observe("/api/v1/rates/{id}")
	defer done()

	if len(rest) == 0 {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if status, ok := requirePermission(authSvc, r, "rates", "read"); !ok {
			http.Error(w, http.StatusText(status), status)
			return
		}
		rate, err := st.GetRate(r.Context(), id)
		if err != nil {
			writeError(w, "/api/v1/rates/{id}", err)
			return
		}
		if rate == nil {
			http.Error(w, "rate not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, rate)
		return
	}

	if len(rest) != 1 {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if status, ok := requirePermission(authSvc, r, "rates", "write"); !ok {
		http.Error(w, http.StatusText(status), status)
		return
	}

	switch rest[0] {
	case "activate":
		if err := st.ActivateRate(r.Context(), id); err != nil {
			writeError(w, "/api/v1/rates/{id}", err)
			return
		}
		w.WriteHeader(http.StatusOK)

	case "deactivate":
		if err := st.DeactivateRate(r.Context(), id, time.Now()); err != nil {
			writeError(w, "/api/v1/rates/{id}", err)
			return
		}
		w.WriteHeader(http.StatusOK)

	case "discounts":
		var d storage.Discount
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if d.Percentage < 0 || d.Percentage > 100 {
			http.Error(w, "percentage out of range", http.StatusBadRequest)
			return
		}
		d.RateID = id
		if d.StartDate.IsZero() {
			d.StartDate = time.Now()
		}
		created, err := st.CreateDiscount(r.Context(), d)
		if err != nil {
			writeError(w, "/api/v1/rates/{id}", err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		http.NotFound(w, r)
	}
}
