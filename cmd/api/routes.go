package main

import (
	"net/http"

	"nexus-backend/internal/analytics"
	"nexus-backend/internal/assistant"
	"nexus-backend/internal/auth"
	"nexus-backend/internal/bootstrap"
	"nexus-backend/internal/journal"
	"nexus-backend/internal/preferences"
	"nexus-backend/internal/tasks"
)

type handlers struct {
	auth       *auth.Service
	tasks      *tasks.Service
	journal    *journal.Service
	prefs      *preferences.Service
	assistant  *assistant.Service
	bootstrap  *bootstrap.Service
	events     *analytics.Recorder
	limiter    *assistant.Limiter
	metrics    http.Handler
	middleware auth.Middleware
}

func routes(h handlers) *http.ServeMux {
	mux := http.NewServeMux()

	// signed-in routes
	authed := h.middleware.Wrap
	// signed-in routes that call the model
	model := func(next http.HandlerFunc) http.HandlerFunc {
		return h.middleware.Wrap(h.limiter.Wrap(next))
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", h.metrics)

	mux.HandleFunc("POST /auth/register", auth.RegisterHandler(h.auth))
	mux.HandleFunc("POST /auth/login", auth.LoginHandler(h.auth))
	mux.HandleFunc("POST /auth/logout", auth.LogoutHandler(h.auth))
	mux.HandleFunc("GET /auth/me", authed(auth.MeHandler(h.auth)))
	mux.HandleFunc("DELETE /auth/account", authed(auth.DeleteAccountHandler(h.auth)))

	mux.HandleFunc("GET /bootstrap", authed(bootstrap.Handler(h.bootstrap)))

	mux.HandleFunc("GET /tasks", authed(tasks.ListTasksHandler(h.tasks)))
	mux.HandleFunc("GET /tasks/today", authed(tasks.TodayHandler(h.tasks)))
	mux.HandleFunc("GET /tasks/timeline", authed(tasks.TimelineHandler(h.tasks)))
	mux.HandleFunc("POST /tasks", authed(tasks.SaveTaskHandler(h.tasks)))
	mux.HandleFunc("POST /tasks/{id}/toggle", authed(tasks.ToggleTaskHandler(h.tasks)))
	mux.HandleFunc("DELETE /tasks/{id}", authed(tasks.DeleteTaskHandler(h.tasks)))
	mux.HandleFunc("POST /tasks/parse", model(assistant.ParseTaskHandler(h.assistant)))
	mux.HandleFunc("POST /tasks/optimize", model(assistant.OptimizeHandler(h.assistant)))

	mux.HandleFunc("GET /journal", authed(journal.ListHandler(h.journal)))
	mux.HandleFunc("POST /journal", authed(journal.SaveHandler(h.journal)))
	mux.HandleFunc("DELETE /journal/{id}", authed(journal.DeleteHandler(h.journal)))
	mux.HandleFunc("POST /journal/{id}/analyze", model(journal.AnalyzeHandler(h.journal)))

	mux.HandleFunc("GET /preferences", authed(preferences.GetHandler(h.prefs)))
	mux.HandleFunc("PUT /preferences", authed(preferences.PutHandler(h.prefs)))
	mux.HandleFunc("GET /preferences/translations", authed(preferences.TranslationsHandler(h.prefs)))

	mux.HandleFunc("POST /assistant/command", model(assistant.CommandHandler(h.assistant)))
	mux.HandleFunc("GET /assistant/messages", authed(assistant.MessagesHandler(h.assistant)))
	mux.HandleFunc("POST /assistant/reflection", model(assistant.ReflectionHandler(h.assistant)))

	mux.HandleFunc("GET /analytics/summary", authed(tasks.SummaryHandler(h.tasks)))
	mux.HandleFunc("POST /analytics/app-opened", authed(analytics.AppOpenedHandler(h.events)))
	mux.HandleFunc("POST /analytics/view-opened", authed(analytics.ViewOpenedHandler(h.events)))
	mux.HandleFunc("POST /analytics/alarm-dismissed", authed(analytics.AlarmDismissedHandler(h.events)))

	return mux
}
