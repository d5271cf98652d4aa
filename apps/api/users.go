package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/auth"
	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/db"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type SettingsRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// RegisterHandler creates an account. Passwords are bcrypt-hashed before
// they touch the store.
func RegisterHandler(users *db.UsersStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		req.Email = auth.NormalizeEmail(req.Email)
		if req.Email == "" || !strings.Contains(req.Email, "@") {
			http.Error(w, "valid email is required", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		if len(req.Password) < 6 {
			http.Error(w, "password must be at least 6 characters", http.StatusBadRequest)
			return
		}

		hashed, err := auth.HashPassword(req.Password)
		if err != nil {
			http.Error(w, "Failed to process password", http.StatusInternalServerError)
			return
		}

		user, err := users.Create(r.Context(), req.Email, req.Name, hashed)
		if err == db.ErrDuplicateEmail {
			http.Error(w, "email already registered", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

// LoginHandler verifies credentials and issues a session token. The token
// also authenticates websocket connections at the gateway.
func LoginHandler(users *db.UsersStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		user, err := users.GetByEmail(r.Context(), auth.NormalizeEmail(req.Email))
		if err == db.ErrNotFound {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err != nil {
			http.Error(w, "Failed to load user", http.StatusInternalServerError)
			return
		}

		if !auth.CheckPassword(user.HashedPassword, req.Password) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		token, err := auth.GenerateToken(user.ID, user.Email, user.Name)
		if err != nil {
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{Token: token})
	}
}

// SettingsHandler updates the principal's profile name and image.
func SettingsHandler(users *db.UsersStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		claims, ok := principal(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req SettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}

		user, err := users.UpdateProfile(r.Context(), claims.UserID, req.Name, req.Image)
		if err != nil {
			http.Error(w, "Failed to update profile", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

// UsersHandler lists every other account, for starting new conversations.
func UsersHandler(users *db.UsersStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := principal(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		list, err := users.List(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "Failed to list users", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}
