package api

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/bher20/enerbill/internal/auth"
	"github.com/bher20/enerbill/internal/billing"
	"github.com/bher20/enerbill/internal/metrics"
	"github.com/bher20/enerbill/internal/storage"
)

// readingDTO is the wire shape for a meter reading. Date is YYYY-MM-DD.
type readingDTO struct {
	Date   string  `json:"date"`
	Hour   int     `json:"hour"`
	Energy float64 `json:"energy"`
}

// registerContractRoutes wires the contract collection and everything nested
// under a contract id: the contract itself, its readings, and its reports.
func registerContractRoutes(mux *http.ServeMux, authSvc *auth.Service, st storage.Storage, svc *billing.Service) {
	mux.Handle("/api/v1/contracts", withAuth(authSvc, func(w http.ResponseWriter, r *http.Request) {
		done := observe("/api/v1/contracts")
		defer done()

		switch r.Method {
		case http.MethodGet:
			if status, ok := requirePermission(authSvc, r, "contracts", "read"); !ok {
				http.Error(w, http.StatusText(status), status)
				return
			}
			userID, err := accountID(authSvc, r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			activeOnly := r.URL.Query().Get("active") == "true"
			list, err := st.ListContractsByUser(r.Context(), userID, activeOnly)
			if err != nil {
				writeError(w, "/api/v1/contracts", err)
				return
			}
			if list == nil {
				list = []storage.Contract{}
			}
			writeJSON(w, http.StatusOK, list)

		case http.MethodPost:
			if status, ok := requirePermission(authSvc, r, "contracts", "write"); !ok {
				http.Error(w, http.StatusText(status), status)
				return
			}
			var c storage.Contract
			if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			if c.ContractNumber == "" {
				http.Error(w, "contractNumber is required", http.StatusBadRequest)
				return
			}
			dup, err := st.GetContractByNumber(r.Context(), c.ContractNumber)
			if err != nil {
				writeError(w, "/api/v1/contracts", err)
				return
			}
			if dup != nil {
				http.Error(w, "contract number already in use", http.StatusBadRequest)
				return
			}
			if c.RateID != nil {
				rate, err := st.GetRate(r.Context(), *c.RateID)
				if err != nil {
					writeError(w, "/api/v1/contracts", err)
					return
				}
				if rate == nil || rate.EndDate != nil {
					http.Error(w, "rate is not active", http.StatusBadRequest)
					return
				}
			}
			if c.UserID == 0 {
				userID, err := accountID(authSvc, r)
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				c.UserID = userID
			}
			created, err := st.CreateContract(r.Context(), c)
			if err != nil {
				writeError(w, "/api/v1/contracts", err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	mux.Handle("/api/v1/contracts/", withAuth(authSvc, func(w http.ResponseWriter, r *http.Request) {
		contractID, rest, ok := splitContractPath(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		switch {
		case len(rest) == 0:
			handleContract(w, r, authSvc, st, contractID)
		case len(rest) == 1 && rest[0] == "readings":
			handleReadings(w, r, authSvc, st, contractID)
		case len(rest) == 2 && (rest[0] == "consumption" || rest[0] == "cost"):
			handleContractReports(w, r, authSvc, svc, contractID, rest)
		default:
			http.NotFound(w, r)
		}
	}))
}

// handleContract serves GET and PUT for a single contract.
func handleContract(w http.ResponseWriter, r *http.Request, authSvc *auth.Service, st storage.Storage, contractID uint) {
	done := observe("/api/v1/contracts/{id}")
	defer done()

	userID, err := accountID(authSvc, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if status, ok := requirePermission(authSvc, r, "contracts", "read"); !ok {
			http.Error(w, http.StatusText(status), status)
			return
		}
		c, err := st.GetContract(r.Context(), contractID, userID)
		if err != nil {
			writeError(w, "/api/v1/contracts/{id}", err)
			return
		}
		if c == nil {
			http.Error(w, "contract not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, c)

	case http.MethodPut:
		if status, ok := requirePermission(authSvc, r, "contracts", "write"); !ok {
			http.Error(w, http.StatusText(status), status)
			return
		}
		existing, err := st.GetContract(r.Context(), contractID, userID)
		if err != nil {
			writeError(w, "/api/v1/contracts/{id}", err)
			return
		}
		if existing == nil {
			http.Error(w, "contract not found", http.StatusNotFound)
			return
		}
		var c storage.Contract
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		c.ID = contractID
		c.UserID = existing.UserID
		if err := st.UpdateContract(r.Context(), c); err != nil {
			writeError(w, "/api/v1/contracts/{id}", err)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleReadings serves GET (one day's readings) and POST (ingest) under a
// contract. POST accepts either a single reading object or an array; the
// batch path replaces any stored reading sharing a (date, hour) key.
func handleReadings(w http.ResponseWriter, r *http.Request, authSvc *auth.Service, st storage.Storage, contractID uint) {
	endpoint := "/api/v1/contracts/{id}/readings"
	done := observe(endpoint)
	defer done()

	userID, err := accountID(authSvc, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Readings are always scoped to a contract the caller owns.
	c, err := st.GetContract(r.Context(), contractID, userID)
	if err != nil {
		writeError(w, endpoint, err)
		return
	}
	if c == nil {
		http.Error(w, "contract not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if status, ok := requirePermission(authSvc, r, "contracts", "read"); !ok {
			http.Error(w, http.StatusText(status), status)
			return
		}
		date, err := billing.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, endpoint, err)
			return
		}
		list, err := st.ReadingsForDate(r.Context(), contractID, date)
		if err != nil {
			writeError(w, endpoint, err)
			return
		}
		if list == nil {
			list = []storage.Reading{}
		}
		writeJSON(w, http.StatusOK, list)

	case http.MethodPost:
		if status, ok := requirePermission(authSvc, r, "readings", "write"); !ok {
			http.Error(w, http.StatusText(status), status)
			return
		}

		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		var dtos []readingDTO
		if len(raw) > 0 && raw[0] == '[' {
			if err := json.Unmarshal(raw, &dtos); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
		} else {
			var one readingDTO
			if err := json.Unmarshal(raw, &one); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			dtos = []readingDTO{one}
		}
		if len(dtos) == 0 {
			http.Error(w, "empty readings batch", http.StatusBadRequest)
			return
		}

		readings := make([]storage.Reading, 0, len(dtos))
		for _, d := range dtos {
			date, err := billing.ParseDate(d.Date)
			if err != nil {
				writeError(w, endpoint, err)
				return
			}
			if d.Hour < 0 || d.Hour > 23 {
				http.Error(w, "hour out of range", http.StatusBadRequest)
				return
			}
			if math.IsNaN(d.Energy) || math.IsInf(d.Energy, 0) || d.Energy < 0 {
				http.Error(w, "invalid energy value", http.StatusBadRequest)
				return
			}
			readings = append(readings, storage.Reading{
				Date:       storage.DateOnly(date),
				Hour:       d.Hour,
				Energy:     d.Energy,
				ContractID: contractID,
			})
		}

		saved, err := st.ReplaceReadings(r.Context(), contractID, readings)
		if err != nil {
			writeError(w, endpoint, err)
			return
		}
		metrics.ReadingsIngestedTotal.WithLabelValues("api").Add(float64(len(saved)))
		writeJSON(w, http.StatusCreated, saved)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
