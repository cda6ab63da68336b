package assistant

import (
	"errors"
	"log/slog"
	"net/http"

	"nexus-backend/internal/ai"
	"nexus-backend/internal/auth"
	"nexus-backend/internal/httpx"
)

type commandRequest struct {
	Command string `json:"command" validate:"required"`
}

type parseRequest struct {
	Input  string `json:"input" validate:"required,max=4000"`
	Create bool   `json:"create"`
}

// CommandHandler serves POST /assistant/command.
func CommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body commandRequest
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := svc.HandleCommand(r.Context(), uid, body.Command)
		switch {
		case errors.Is(err, ErrEmptyCommand):
			httpx.Error(w, http.StatusBadRequest, err.Error())
		case err != nil:
			httpx.WriteJSON(w, http.StatusBadGateway, res)
		default:
			httpx.WriteJSON(w, http.StatusOK, res)
		}
	}
}

func MessagesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, svc.Transcripts().Messages(uid))
	}
}

// OptimizeHandler serves POST /tasks/optimize.
func OptimizeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		res, err := svc.Optimize(r.Context(), uid)
		if err != nil {
			httpx.WriteJSON(w, http.StatusBadGateway, res)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, res)
	}
}

// ParseTaskHandler serves POST /tasks/parse.
func ParseTaskHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body parseRequest
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		draft, created, err := svc.ParseTask(r.Context(), uid, body.Input, body.Create)
		switch {
		case errors.Is(err, ai.ErrRejected):
			httpx.Error(w, http.StatusUnprocessableEntity, "could not extract a task")
		case errors.Is(err, ai.ErrUnavailable):
			httpx.Error(w, http.StatusServiceUnavailable, "assistant unavailable")
		case err != nil:
			slog.Error("task parsing failed", "user_id", uid, "error", err)
			httpx.Error(w, http.StatusBadGateway, "task parsing failed")
		case created != nil:
			httpx.WriteJSON(w, http.StatusCreated, map[string]any{"draft": draft, "task": created})
		default:
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"draft": draft})
		}
	}
}

// ReflectionHandler serves POST /assistant/reflection.
func ReflectionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		text, err := svc.Reflection(r.Context(), uid)
		if err != nil {
			slog.Error("reflection failed", "user_id", uid, "error", err)
			httpx.Error(w, http.StatusBadGateway, "reflection unavailable")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"reflection": text})
	}
}
