package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
)

type Service struct {
	remote RemoteStore
	cache  AssetCache
	tr     Translator

	mu    sync.Mutex
	dicts map[string]Dictionary
}

func NewService(remote RemoteStore, cache AssetCache, tr Translator) *Service {
	return &Service{
		remote: remote,
		cache:  cache,
		tr:     tr,
		dicts:  make(map[string]Dictionary),
	}
}

// Load merges defaults, the remote row and the local asset cache. A cached
// background wins over a sentinel, an inline value or a missing one; a
// cached alarm only fills a missing remote alarm.
func (s *Service) Load(ctx context.Context, userID string) (UIPreference, error) {
	merged := Defaults()
	localBg, hasBg := s.cached(ctx, userID, BackgroundKey)
	localAlarm, hasAlarm := s.cached(ctx, userID, AlarmKey)

	raw, err := s.remote.Get(ctx, userID)
	if errors.Is(err, ErrNoPreferences) {
		if hasBg {
			merged.BackgroundImage = localBg
		}
		return merged, nil
	}
	if err != nil {
		return merged, err
	}

	var present struct {
		BackgroundImage   *string `json:"backgroundImage"`
		DefaultAlarmSound *string `json:"defaultAlarmSound"`
	}
	if err := json.Unmarshal(raw, &merged); err != nil {
		slog.Warn("stored preferences are corrupt, using defaults", "user_id", userID, "error", err)
		merged = Defaults()
	}
	_ = json.Unmarshal(raw, &present)

	remoteBg := ""
	if present.BackgroundImage != nil {
		remoteBg = *present.BackgroundImage
	}
	placeholder := remoteBg == LocalAssetSentinel
	inline := strings.HasPrefix(remoteBg, InlineDataPrefix)
	missing := remoteBg == ""

	switch {
	case hasBg && (placeholder || inline || missing):
		merged.BackgroundImage = localBg
	case placeholder || missing:
		merged.BackgroundImage = DefaultBackground
	}

	if hasAlarm && (present.DefaultAlarmSound == nil || *present.DefaultAlarmSound == "") {
		merged.DefaultAlarmSound = localAlarm
	}
	return merged, nil
}

// Save writes blobs to the asset cache and the rest to the remote row. An
// inline or oversized background is replaced remotely by LocalAssetSentinel;
// an inline alarm is omitted remotely. Plain values clear their cache key. A
// background that already is the sentinel leaves the cache alone.
func (s *Service) Save(ctx context.Context, userID string, p UIPreference) (UIPreference, error) {
	remote := p

	switch {
	case p.BackgroundImage == LocalAssetSentinel:
	case isBlob(p.BackgroundImage):
		if err := s.cache.Set(ctx, userID, BackgroundKey, p.BackgroundImage); err != nil {
			return p, fmt.Errorf("cache background: %w", err)
		}
		remote.BackgroundImage = LocalAssetSentinel
	default:
		s.evict(ctx, userID, BackgroundKey)
	}

	if isBlob(p.DefaultAlarmSound) {
		if err := s.cache.Set(ctx, userID, AlarmKey, p.DefaultAlarmSound); err != nil {
			return p, fmt.Errorf("cache alarm: %w", err)
		}
		remote.DefaultAlarmSound = ""
	} else {
		s.evict(ctx, userID, AlarmKey)
	}

	raw, err := json.Marshal(remote)
	if err != nil {
		return p, fmt.Errorf("encode preferences: %w", err)
	}
	if err := s.remote.Put(ctx, userID, raw); err != nil {
		return p, err
	}
	return p, nil
}

// Apply loads the current preferences, overlays patch and saves the result.
func (s *Service) Apply(ctx context.Context, userID string, patch Patch) (UIPreference, error) {
	cur, err := s.Load(ctx, userID)
	if err != nil {
		return cur, err
	}
	return s.Save(ctx, userID, patch.Apply(cur))
}

// Language reads the user's language at call time; English if unavailable.
func (s *Service) Language(ctx context.Context, userID string) string {
	p, err := s.Load(ctx, userID)
	if err != nil {
		slog.Warn("preferences unavailable, using default language", "user_id", userID, "error", err)
		return DefaultLanguage
	}
	return p.LanguageOrDefault()
}

// Translations returns the label dictionary for the user's current language.
// Successful translations are kept per language.
func (s *Service) Translations(ctx context.Context, userID string) (string, Dictionary) {
	language := s.Language(ctx, userID)
	return language, s.Dictionary(ctx, language)
}

func (s *Service) Dictionary(ctx context.Context, language string) Dictionary {
	if IsDefaultLanguage(language) || s.tr == nil {
		return DefaultTranslations()
	}

	key := strings.ToLower(strings.TrimSpace(language))
	s.mu.Lock()
	if d, ok := s.dicts[key]; ok {
		s.mu.Unlock()
		return maps.Clone(d)
	}
	s.mu.Unlock()

	d, ok := translate(ctx, s.tr, language)
	if ok {
		s.mu.Lock()
		s.dicts[key] = d
		s.mu.Unlock()
	}
	return maps.Clone(d)
}

func (s *Service) cached(ctx context.Context, userID, key string) (string, bool) {
	v, ok, err := s.cache.Get(ctx, userID, key)
	if err != nil {
		slog.Warn("asset cache read failed", "user_id", userID, "key", key, "error", err)
		return "", false
	}
	return v, ok && v != ""
}

func (s *Service) evict(ctx context.Context, userID, key string) {
	if err := s.cache.Delete(ctx, userID, key); err != nil {
		slog.Warn("asset cache delete failed", "user_id", userID, "key", key, "error", err)
	}
}
