package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrSessionNotFound    = errors.New("auth: session not found")
	ErrSessionExpired     = errors.New("auth: session expired or revoked")
)

const DefaultSessionTTL = 30 * 24 * time.Hour

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}

func (s Session) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

// SessionEvent is delivered to subscribers whenever a session starts or ends.
type SessionEvent struct {
	Kind      EventKind
	UserID    string
	SessionID string
}

type Store interface {
	CreateUser(ctx context.Context, u User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	CreateSession(ctx context.Context, s Session) error
	SessionByID(ctx context.Context, id string) (Session, error)
	RevokeSession(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, id string) error
}

type Service struct {
	store  Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	subs map[int]chan SessionEvent
	next int
}

func NewService(store Store, secret []byte, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		store:  store,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
		subs:   make(map[int]chan SessionEvent),
	}
}

// Grant is what sign-up and sign-in hand back to the client.
type Grant struct {
	Token   string  `json:"token"`
	User    User    `json:"user"`
	Session Session `json:"session"`
}

func (s *Service) SignUp(ctx context.Context, email, password string) (Grant, error) {
	email = normalizeEmail(email)
	if _, err := s.store.UserByEmail(ctx, email); err == nil {
		return Grant{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return Grant{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Grant{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return Grant{}, err
	}
	return s.startSession(ctx, u)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Grant, error) {
	u, err := s.store.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return Grant{}, ErrInvalidCredentials
	}
	if err != nil {
		return Grant{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Grant{}, ErrInvalidCredentials
	}
	return s.startSession(ctx, u)
}

// CurrentSession validates a bearer token and the session row behind it.
func (s *Service) CurrentSession(ctx context.Context, token string) (Session, error) {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return Session{}, err
	}
	sess, err := s.store.SessionByID(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if sess.UserID != claims.Subject || !sess.Active(s.now()) {
		return Session{}, ErrSessionExpired
	}
	return sess, nil
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	sess, err := s.CurrentSession(ctx, token)
	if err != nil {
		return err
	}
	if err := s.store.RevokeSession(ctx, sess.ID); err != nil {
		return err
	}
	s.publish(SessionEvent{Kind: SignedOut, UserID: sess.UserID, SessionID: sess.ID})
	return nil
}

func (s *Service) User(ctx context.Context, id string) (User, error) {
	return s.store.UserByID(ctx, id)
}

// DeleteAccount removes the user and everything stored for them.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.publish(SessionEvent{Kind: SignedOut, UserID: userID})
	return nil
}

// Subscribe returns a channel of session changes and a func that stops delivery.
func (s *Service) Subscribe() (<-chan SessionEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan SessionEvent, 16)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Service) startSession(ctx context.Context, u User) (Grant, error) {
	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return Grant{}, err
	}
	token, err := GenerateToken(s.secret, sess, now)
	if err != nil {
		return Grant{}, err
	}
	s.publish(SessionEvent{Kind: SignedIn, UserID: u.ID, SessionID: sess.ID})
	return Grant{Token: token, User: u, Session: sess}, nil
}

func (s *Service) publish(ev SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("session event dropped, subscriber is full", "kind", ev.Kind, "user_id", ev.UserID)
		}
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
