package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"nexus-backend/internal/httpx"
)

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func RegisterHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body credentials
		if err := httpx.Decode(r, &body); err != nil {
			http.Error(w, "email & password required", http.StatusBadRequest)
			return
		}

		grant, err := svc.SignUp(r.Context(), body.Email, body.Password)
		if errors.Is(err, ErrEmailTaken) {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		if err != nil {
			slog.Error("sign up failed", "error", err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, grant)
	}
}

func LoginHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body credentials
		if err := httpx.Decode(r, &body); err != nil {
			http.Error(w, "invalid login", http.StatusUnauthorized)
			return
		}

		grant, err := svc.SignIn(r.Context(), body.Email, body.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid login", http.StatusUnauthorized)
			return
		}
		if err != nil {
			slog.Error("sign in failed", "error", err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, grant)
	}
}

func MeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		u, err := svc.User(r.Context(), uid)
		if err != nil {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		sid, _ := SessionIDFromContext(r.Context())

		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"user_id":    u.ID,
			"email":      u.Email,
			"session_id": sid,
		})
	}
}
