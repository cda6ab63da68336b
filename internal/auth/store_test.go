package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-backend/internal/db"
)

func TestSQLStore(t *testing.T) {
	conn, err := sql.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "auth-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.MigrateUp(conn))

	store, err := NewSQLStore(conn)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	u := User{ID: "u1", Email: "ada@example.com", PasswordHash: "hash", CreatedAt: now}
	require.NoError(t, store.CreateUser(ctx, u))
	assert.ErrorIs(t, store.CreateUser(ctx, User{ID: "u2", Email: u.Email, PasswordHash: "x", CreatedAt: now}), ErrEmailTaken)

	got, err := store.UserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.CreatedAt.Equal(now))

	_, err = store.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	sess := Session{ID: "s1", UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.CreateSession(ctx, sess))

	loaded, err := store.SessionByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, loaded.Revoked)
	assert.True(t, loaded.ExpiresAt.Equal(sess.ExpiresAt))

	require.NoError(t, store.RevokeSession(ctx, sess.ID))
	loaded, err = store.SessionByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Revoked)
	assert.ErrorIs(t, store.RevokeSession(ctx, "missing"), ErrSessionNotFound)

	require.NoError(t, store.DeleteUser(ctx, u.ID))
	_, err = store.SessionByID(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.DeleteUser(ctx, u.ID), ErrUserNotFound)
}
