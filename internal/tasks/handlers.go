package tasks

import (
	"errors"
	"log/slog"
	"net/http"

	"nexus-backend/internal/auth"
	"nexus-backend/internal/httpx"
	"nexus-backend/internal/logicalday"
)

func ListTasksHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		all, err := svc.Tasks(r.Context(), uid)
		if err != nil {
			writeError(w, uid, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"tasks": all})
	}
}

// TodayHandler returns the tasks visible on the current logical day, grouped
// into pending buckets by preferred time plus the completed list.
func TodayHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		date, views, err := svc.TodayView(r.Context(), uid)
		if err != nil {
			writeError(w, uid, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, TodayResponse{Agenda: BuildAgenda(date, views), Tasks: views})
	}
}

func TimelineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		date := r.URL.Query().Get("date")
		if date == "" {
			date = svc.Today()
		}
		views, err := svc.TimelineView(r.Context(), uid, date)
		if err != nil {
			writeError(w, uid, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, TimelineResponse{Date: date, Today: svc.CalendarToday(), Tasks: views})
	}
}

func SummaryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		date, views, err := svc.TodayView(r.Context(), uid)
		if err != nil {
			writeError(w, uid, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, Summarize(date, views))
	}
}

func writeError(w http.ResponseWriter, uid string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "task not found")
	case errors.Is(err, logicalday.ErrInvalidDate), errors.Is(err, httpx.ErrInvalidBody):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPersistence):
		httpx.Error(w, http.StatusBadGateway, "storage unavailable, change rolled back")
	default:
		slog.Error("task request failed", "user_id", uid, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}
