package auth

import (
	"log/slog"
	"net/http"

	"nexus-backend/internal/httpx"
)

// LogoutHandler revokes the session behind the bearer token.
func LogoutHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		if err := svc.SignOut(r.Context(), token); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func DeleteAccountHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.DeleteAccount(r.Context(), uid); err != nil {
			slog.Error("delete account failed", "user_id", uid, "error", err)
			http.Error(w, "delete user failed", http.StatusInternalServerError)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
