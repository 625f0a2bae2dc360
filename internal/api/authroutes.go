package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bher20/enerbill/internal/auth"
	"github.com/bher20/enerbill/internal/storage"
)

// registerAuthRoutes wires user registration, login, and API token
// management. Login returns a short-lived session token; named tokens with
// custom expirations are created through /api/v1/tokens.
func registerAuthRoutes(mux *http.ServeMux, authSvc *auth.Service, st storage.Storage) {
	// The middleware passes anonymous requests through, so the first-user
	// bootstrap below still works; it is needed here to resolve the bearer
	// token when an admin registers a privileged user.
	mux.Handle("/api/v1/auth/register", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Username  string `json:"username"`
			Password  string `json:"password"`
			Role      string `json:"role"`
			AccountID uint   `json:"accountId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Username == "" || req.Password == "" {
			http.Error(w, "username and password are required", http.StatusBadRequest)
			return
		}
		if req.Role == "" {
			req.Role = "viewer"
		}

		// Only an admin may create privileged users. The first user ever
		// registered becomes admin so a fresh install can bootstrap itself.
		users, err := st.ListUsers(r.Context())
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if len(users) == 0 {
			req.Role = "admin"
		} else if req.Role != "viewer" {
			token, ok := auth.TokenFromContext(r.Context())
			if !ok || token.Role != "admin" {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}

		u, err := authSvc.Register(r.Context(), req.Username, req.Password, req.Role, req.AccountID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	})))

	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		u, err := authSvc.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		expires, _ := auth.ParseExpirationDuration("24h")
		_, raw, err := authSvc.CreateToken(r.Context(), u.ID, "session", u.Role, expires)
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"token": raw,
			"user":  u,
		})
	})

	mux.Handle("/api/v1/auth/password", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		token, ok := auth.TokenFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.NewPassword == "" {
			http.Error(w, "newPassword is required", http.StatusBadRequest)
			return
		}

		if err := authSvc.ChangePassword(r.Context(), token.UserID, req.CurrentPassword, req.NewPassword); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})))

	mux.Handle("/api/v1/tokens", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.TokenFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		switch r.Method {
		case http.MethodGet:
			list, err := st.ListTokens(r.Context(), token.UserID)
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			if list == nil {
				list = []storage.Token{}
			}
			writeJSON(w, http.StatusOK, list)

		case http.MethodPost:
			var req struct {
				Name      string `json:"name"`
				ExpiresIn string `json:"expiresIn"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			if req.Name == "" {
				http.Error(w, "name is required", http.StatusBadRequest)
				return
			}
			expires, err := auth.ParseExpirationDuration(req.ExpiresIn)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			t, raw, err := authSvc.CreateToken(r.Context(), token.UserID, req.Name, token.Role, expires)
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"token":    raw,
				"metadata": t,
			})

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	mux.Handle("/api/v1/tokens/", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.TokenFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/api/v1/tokens/")
		if id == "" {
			http.NotFound(w, r)
			return
		}

		// Users may only revoke their own tokens; admins may revoke any.
		list, err := st.ListTokens(r.Context(), token.UserID)
		if err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		owned := false
		for _, t := range list {
			if t.ID == id {
				owned = true
				break
			}
		}
		if !owned && token.Role != "admin" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if err := st.DeleteToken(r.Context(), id); err != nil {
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})))
}
