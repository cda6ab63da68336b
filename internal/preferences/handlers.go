package preferences

import (
	"log/slog"
	"net/http"

	"nexus-backend/internal/auth"
	"nexus-backend/internal/httpx"
)

func GetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		prefs, err := svc.Load(r.Context(), uid)
		if err != nil {
			slog.Error("load preferences failed", "user_id", uid, "error", err)
			httpx.Error(w, http.StatusBadGateway, "preferences unavailable")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, prefs)
	}
}

// PutHandler replaces the preferences; omitted fields fall back to defaults.
func PutHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		body := Defaults()
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		saved, err := svc.Save(r.Context(), uid, body)
		if err != nil {
			slog.Error("save preferences failed", "user_id", uid, "error", err)
			httpx.Error(w, http.StatusBadGateway, "preferences not synced")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, saved)
	}
}

func TranslationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		language, dict := svc.Translations(r.Context(), uid)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"language":     language,
			"translations": dict,
		})
	}
}
