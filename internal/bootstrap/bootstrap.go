// Package bootstrap serves everything a client needs on start in one round trip.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"nexus-backend/internal/auth"
	"nexus-backend/internal/httpx"
	"nexus-backend/internal/journal"
	"nexus-backend/internal/preferences"
	"nexus-backend/internal/tasks"
)

type Snapshot struct {
	LogicalDate  string                   `json:"logicalDate"`
	Tasks        []tasks.Task             `json:"tasks"`
	Today        []tasks.View             `json:"today"`
	Journal      []journal.Entry          `json:"journal"`
	Preferences  preferences.UIPreference `json:"preferences"`
	Language     string                   `json:"language"`
	Translations preferences.Dictionary   `json:"translations"`
}

type Service struct {
	tasks   *tasks.Service
	journal *journal.Service
	prefs   *preferences.Service
}

func NewService(ts *tasks.Service, js *journal.Service, prefs *preferences.Service) *Service {
	return &Service{tasks: ts, journal: js, prefs: prefs}
}

// Load reads the user's tasks, journal and preferences concurrently. The
// first failure cancels the rest.
func (s *Service) Load(ctx context.Context, userID string) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		all, err := s.tasks.Tasks(gctx, userID)
		if err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
		date, views, err := s.tasks.TodayView(gctx, userID)
		if err != nil {
			return fmt.Errorf("load today view: %w", err)
		}
		snap.Tasks, snap.LogicalDate, snap.Today = all, date, views
		return nil
	})
	g.Go(func() error {
		entries, err := s.journal.Search(gctx, userID, "")
		if err != nil {
			return fmt.Errorf("load journal: %w", err)
		}
		snap.Journal = entries
		return nil
	})
	g.Go(func() error {
		prefs, err := s.prefs.Load(gctx, userID)
		if err != nil {
			return fmt.Errorf("load preferences: %w", err)
		}
		snap.Preferences = prefs
		return nil
	})
	g.Go(func() error {
		snap.Language, snap.Translations = s.prefs.Translations(gctx, userID)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func Handler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		snap, err := svc.Load(r.Context(), uid)
		if err != nil {
			slog.Error("bootstrap failed", "user_id", uid, "error", err)
			httpx.Error(w, http.StatusBadGateway, "bootstrap unavailable")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, snap)
	}
}
