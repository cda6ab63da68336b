package journal

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"nexus-backend/internal/analytics"
	"nexus-backend/internal/logicalday"
)

// Analyzer reads an entry in the user's language.
type Analyzer interface {
	AnalyzeEntry(ctx context.Context, content, language string) (Analysis, error)
}

// LanguageSource reports a user's current display language.
type LanguageSource interface {
	Language(ctx context.Context, userID string) string
}

type Options struct {
	Clock     logicalday.Clock
	Location  *time.Location
	Analyzer  Analyzer
	Languages LanguageSource
	Events    *analytics.Recorder
}

type Service struct {
	store    Store
	clock    logicalday.Clock
	loc      *time.Location
	analyzer Analyzer
	langs    LanguageSource
	events   *analytics.Recorder
}

func NewService(store Store, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:    store,
		clock:    opts.Clock,
		loc:      loc,
		analyzer: opts.Analyzer,
		langs:    opts.Languages,
		events:   opts.Events,
	}
}

// Search returns the entries whose content contains query (ignoring case) or
// that carry a tag containing it, newest first. An empty query matches all.
func (s *Service) Search(ctx context.Context, userID, query string) ([]Entry, error) {
	all, err := s.store.ListEntries(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(all))
	lower := strings.ToLower(query)
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Content), lower) ||
			slices.ContainsFunc(e.Tags, func(tag string) bool { return strings.Contains(tag, query) }) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		return cmp.Compare(b.LastUpdated, a.LastUpdated)
	})
	return out, nil
}

// Save upserts an entry and stamps LastUpdated. An empty id gets a fresh one
// and an empty date becomes the current logical day.
func (s *Service) Save(ctx context.Context, userID string, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Date == "" {
		e.Date = logicalday.ResolveLogicalDate(s.clock.Now().In(s.loc))
	} else if _, err := logicalday.Parse(e.Date); err != nil {
		return Entry{}, err
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	e.LastUpdated = s.clock.Now().UnixMilli()

	if err := s.store.UpsertEntry(ctx, userID, e); err != nil {
		return Entry{}, err
	}
	s.events.Track(ctx, userID, "journal_saved", map[string]any{
		"entry_id":    e.ID,
		"content_len": len(strings.TrimSpace(e.Content)),
		"tag_count":   len(e.Tags),
	})
	return e, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteEntry(ctx, userID, id)
}

// Analyze runs the analyzer on a stored entry and saves mood, reflection and
// tags onto it. On any failure the stored entry is left as it was.
func (s *Service) Analyze(ctx context.Context, userID, id string) (Entry, error) {
	if s.analyzer == nil {
		return Entry{}, ErrNoAnalyzer
	}
	e, err := s.find(ctx, userID, id)
	if err != nil {
		return Entry{}, err
	}
	if strings.TrimSpace(e.Content) == "" {
		return Entry{}, ErrEmptyContent
	}

	language := "English"
	if s.langs != nil {
		language = s.langs.Language(ctx, userID)
	}
	a, err := s.analyzer.AnalyzeEntry(ctx, e.Content, language)
	if err != nil {
		return Entry{}, fmt.Errorf("analyze entry %s: %w", id, err)
	}

	e.Mood = a.Mood
	e.AIReflection = a.Reflection
	e.Tags = append([]string{}, a.Tags...)
	if err := s.store.UpsertEntry(ctx, userID, e); err != nil {
		return Entry{}, err
	}
	s.events.Track(ctx, userID, "journal_analyzed", map[string]any{"entry_id": e.ID, "mood": e.Mood})
	return e, nil
}

func (s *Service) find(ctx context.Context, userID, id string) (Entry, error) {
	all, err := s.store.ListEntries(ctx, userID)
	if err != nil {
		return Entry{}, err
	}
	i := slices.IndexFunc(all, func(e Entry) bool { return e.ID == id })
	if i < 0 {
		return Entry{}, ErrNotFound
	}
	return all[i], nil
}

// IsClientError reports whether err was caused by the request rather than a dependency.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyContent) || errors.Is(err, logicalday.ErrInvalidDate)
}
