package auth

import (
	"context"
	"net/http"
	"strings"

	"nexus-backend/internal/analytics"
)

type ctxKey string

const (
	userIDKey    ctxKey = "user_id"
	sessionIDKey ctxKey = "session_id"
)

type Middleware struct {
	svc *Service
}

func NewMiddleware(svc *Service) Middleware {
	return Middleware{svc: svc}
}

func (m Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		sess, err := m.svc.CurrentSession(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := WithUserID(r.Context(), sess.UserID)
		ctx = context.WithValue(ctx, sessionIDKey, sess.ID)

		// the analytics envelope carries the user too
		env := analytics.EnvelopeFromContext(ctx)
		env.UserID = sess.UserID
		if env.SessionID == "" {
			env.SessionID = sess.ID
		}
		ctx = analytics.WithEnvelope(ctx, env)

		next(w, r.WithContext(ctx))
	}
}

func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userIDKey).(string)
	return uid, ok && uid != ""
}

func SessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey).(string)
	return sid, ok && sid != ""
}
