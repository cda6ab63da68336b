package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"nexus-backend/internal/auth"
)

const Greeting = "Nexus Core online. Identity verified. Awaiting command parameters."

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "ai"
	RoleSystem    Role = "system"
)

// Message is one transcript line. Timestamp is in Unix milliseconds.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Transcripts holds the append-only conversation of each signed-in user.
// Nothing is persisted; a transcript starts with the greeting.
type Transcripts struct {
	now func() time.Time

	mu    sync.Mutex
	lines map[string][]Message
}

func NewTranscripts(now func() time.Time) *Transcripts {
	if now == nil {
		now = time.Now
	}
	return &Transcripts{now: now, lines: make(map[string][]Message)}
}

func (t *Transcripts) Append(userID string, role Role, content string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seed(userID)
	m := Message{ID: uuid.NewString(), Role: role, Content: content, Timestamp: t.now().UnixMilli()}
	t.lines[userID] = append(t.lines[userID], m)
	return m
}

func (t *Transcripts) Messages(userID string) []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seed(userID)
	return append([]Message(nil), t.lines[userID]...)
}

func (t *Transcripts) Reset(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lines, userID)
}

// ResetOnSignOut clears a transcript when its session ends. It returns when
// ctx is done or the channel is closed.
func (t *Transcripts) ResetOnSignOut(ctx context.Context, events <-chan auth.SessionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == auth.SignedOut {
				t.Reset(ev.UserID)
			}
		}
	}
}

func (t *Transcripts) seed(userID string) {
	if _, ok := t.lines[userID]; ok {
		return
	}
	t.lines[userID] = []Message{{
		ID:        "greeting",
		Role:      RoleAssistant,
		Content:   Greeting,
		Timestamp: t.now().UnixMilli(),
	}}
}
