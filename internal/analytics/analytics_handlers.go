package analytics

import (
	"encoding/json"
	"net/http"
)

var views = map[string]bool{"dashboard": true, "calendar": true, "journal": true, "history": true}

// app_opened: the client came to the foreground.
func AppOpenedHandler(rec *Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env := EnvelopeFromContext(r.Context())
		if env.UserID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			ColdStart bool   `json:"cold_start"`
			From      string `json:"from"` // push/deeplink/icon/unknown
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		props := map[string]any{
			"cold_start": body.ColdStart,
			"from":       body.From,
		}
		_ = rec.Log(r.Context(), env, "app_opened", props, env.SourceEventKey)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

// view_opened: a main tab was shown.
func ViewOpenedHandler(rec *Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env := EnvelopeFromContext(r.Context())
		if env.UserID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			View string `json:"view"`
			Date string `json:"date"` // timeline date, optional
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !views[body.View] {
			http.Error(w, "unknown view", http.StatusBadRequest)
			return
		}

		props := map[string]any{
			"view": body.View,
			"date": body.Date,
		}
		_ = rec.Log(r.Context(), env, "view_opened", props, env.SourceEventKey)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

// alarm_dismissed: the user stopped or snoozed a task alarm.
func AlarmDismissedHandler(rec *Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env := EnvelopeFromContext(r.Context())
		if env.UserID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			TaskID string `json:"task_id"`
			Action string `json:"action"` // stop/snooze/unknown
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		props := map[string]any{
			"task_id": body.TaskID,
			"action":  body.Action,
		}
		_ = rec.Log(r.Context(), env, "alarm_dismissed", props, env.SourceEventKey)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}
