package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const envelopeKey ctxKey = "analytics_envelope"

// Envelope is what we store with every event.
type Envelope struct {
	UserID         string
	SessionID      string
	Platform       string
	AppVersion     string
	DeviceLocale   string
	IPCountry      string
	SourceEventKey string
}

// FromRequest extracts event envelope fields from request.
// Backend-trustable fields only.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web", "desktop":
	default:
		platform = "unknown"
	}

	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	}

	return Envelope{
		SessionID:      strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:       platform,
		AppVersion:     strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale:   locale,
		SourceEventKey: SourceEventKeyFromRequest(r),
	}
}

// Client-provided idempotency key (optional).
// If present and duplicated, the insert is ignored.
func SourceEventKeyFromRequest(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

func WithEnvelope(ctx context.Context, env Envelope) context.Context {
	return context.WithValue(ctx, envelopeKey, env)
}

func EnvelopeFromContext(ctx context.Context) Envelope {
	env, ok := ctx.Value(envelopeKey).(Envelope)
	if !ok {
		return Envelope{Platform: "unknown"}
	}
	return env
}

// Middleware captures the request envelope so services deeper in the call
// chain can log events without seeing the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithEnvelope(r.Context(), FromRequest(r))))
	})
}

// Event is one row of analytics_events.
type Event struct {
	ID             string
	Name           string
	Time           time.Time
	UserID         string
	SessionID      string
	Platform       string
	AppVersion     string
	DeviceLocale   string
	IPCountry      string
	SourceEventKey string
	Properties     json.RawMessage
}

// Sink stores events. A duplicate SourceEventKey must be ignored, not failed.
type Sink interface {
	Insert(ctx context.Context, e Event) error
}

type Recorder struct {
	sink Sink
	now  func() time.Time
}

func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink, now: time.Now}
}

// Log inserts one analytics event.
// Never logs sensitive raw text; caller passes sanitized props.
func (r *Recorder) Log(ctx context.Context, env Envelope, eventName string, props any, sourceEventKey string) error {
	if r == nil || eventName == "" || env.UserID == "" {
		return nil
	}

	b, err := json.Marshal(props)
	if err != nil {
		// unmarshalable props must not break the core flow
		return nil
	}

	return r.sink.Insert(ctx, Event{
		ID:             uuid.NewString(),
		Name:           eventName,
		Time:           r.now().UTC(),
		UserID:         env.UserID,
		SessionID:      env.SessionID,
		Platform:       env.Platform,
		AppVersion:     env.AppVersion,
		DeviceLocale:   env.DeviceLocale,
		IPCountry:      env.IPCountry,
		SourceEventKey: sourceEventKey,
		Properties:     b,
	})
}

// Track logs an event for userID using the envelope carried by ctx.
// Failures are logged and swallowed.
func (r *Recorder) Track(ctx context.Context, userID, eventName string, props map[string]any) {
	if r == nil {
		return
	}
	env := EnvelopeFromContext(ctx)
	env.UserID = userID

	key := ""
	if env.SourceEventKey != "" {
		key = env.SourceEventKey + ":" + eventName
	}
	if err := r.Log(ctx, env, eventName, props, key); err != nil {
		slog.Warn("analytics event dropped", "event", eventName, "user_id", userID, "error", err)
	}
}

// SQLSink writes events to analytics_events.
type SQLSink struct {
	db *sql.DB
}

func NewSQLSink(db *sql.DB) (*SQLSink, error) {
	if db == nil {
		return nil, errors.New("analytics: nil db")
	}
	return &SQLSink{db: db}, nil
}

func (s *SQLSink) Insert(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics_events (
			id, event_name, event_time,
			user_id, session_id,
			platform, app_version, device_locale, ip_country,
			source_event_key,
			properties
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source_event_key) DO NOTHING
	`, e.ID, e.Name, e.Time.Format(time.RFC3339Nano),
		e.UserID, nullIfEmpty(e.SessionID),
		e.Platform, e.AppVersion, nullIfEmpty(e.DeviceLocale), nullIfEmpty(e.IPCountry),
		nullIfEmpty(e.SourceEventKey),
		string(e.Properties),
	)
	return err
}

// MemorySink keeps events in memory for the degraded mode and tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
	keys   map[string]struct{}
}

func NewMemorySink() *MemorySink {
	return &MemorySink{keys: make(map[string]struct{})}
}

func (m *MemorySink) Insert(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.SourceEventKey != "" {
		if _, dup := m.keys[e.SourceEventKey]; dup {
			return nil
		}
		m.keys[e.SourceEventKey] = struct{}{}
	}
	m.events = append(m.events, e)
	return nil
}

func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
