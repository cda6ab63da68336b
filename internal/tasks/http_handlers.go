package tasks

import (
	"net/http"

	"nexus-backend/internal/auth"
	"nexus-backend/internal/httpx"
)

// SaveTaskHandler creates or updates a task.
func SaveTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body SaveTaskRequest
		if err := httpx.Decode(r, &body); err != nil {
			writeError(w, uid, err)
			return
		}

		created := body.ID == "" || body.ID == NewTaskID
		saved, err := svc.Edit(r.Context(), uid, body)
		if err != nil {
			writeError(w, uid, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		httpx.WriteJSON(w, status, View{Task: saved, Completed: CompletedOn(saved, svc.Today())})
	}
}

// ToggleTaskHandler flips completion for ?date= (default: the current logical day).
func ToggleTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		view, err := svc.Toggle(r.Context(), uid, r.PathValue("id"), r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, uid, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, view)
	}
}

func DeleteTaskHandler(svc *Service) http.HandlerFunc {
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
