package journal

import (
	"errors"
	"log/slog"
	"net/http"

	"nexus-backend/internal/auth"
	"nexus-backend/internal/httpx"
)

// ListHandler serves GET /journal?q=.
func ListHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		entries, err := svc.Search(r.Context(), uid, r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, uid, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, entries)
	}
}

func SaveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body SaveEntryRequest
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		saved, err := svc.Save(r.Context(), uid, body.Entry())
		if err != nil {
			writeError(w, uid, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, saved)
	}
}

func DeleteHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Delete(r.Context(), uid, r.PathValue("id")); err != nil {
			writeError(w, uid, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// AnalyzeHandler serves POST /journal/{id}/analyze.
func AnalyzeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		entry, err := svc.Analyze(r.Context(), uid, r.PathValue("id"))
		if err != nil {
			writeError(w, uid, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, entry)
	}
}

func writeError(w http.ResponseWriter, uid string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "entry not found")
	case IsClientError(err):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoAnalyzer):
		httpx.Error(w, http.StatusServiceUnavailable, "analysis unavailable")
	default:
		slog.Error("journal request failed", "user_id", uid, "error", err)
		httpx.Error(w, http.StatusBadGateway, "journal not synced")
	}
}
