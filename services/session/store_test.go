package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harborside/authcore/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(userID uint, hash string) *Session {
	return &Session{
		ID:               uuid.New().String(),
		UserID:           userID,
		Platform:         PlatformWeb,
		IP:               "192.0.2.1",
		UserAgent:        "test-agent",
		RefreshTokenHash: hash,
		RefreshExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt:        time.Now(),
	}
}

func TestStore_CreateAndFind(t *testing.T) {
	db := testutils.SetupTestDB(t, &Session{})
	store := NewStore(db, nil)

	sess := newTestSession(1, "hash-1")
	require.NoError(t, store.Create(sess))

	t.Run("by id", func(t *testing.T) {
		got, err := store.FindByID(sess.ID)
		require.NoError(t, err)
		assert.Equal(t, sess.UserID, got.UserID)
		assert.Equal(t, PlatformWeb, got.Platform)
	})

	t.Run("by refresh hash", func(t *testing.T) {
		got, err := store.FindByRefreshHash("hash-1")
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.FindByID("missing")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("unknown hash", func(t *testing.T) {
		_, err := store.FindByRefreshHash("missing")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestStore_RefreshHashUnique(t *testing.T) {
	db := testutils.SetupTestDB(t, &Session{})
	store := NewStore(db, nil)

	require.NoError(t, store.Create(newTestSession(1, "same-hash")))
	assert.Error(t, store.Create(newTestSession(2, "same-hash")))
}

func TestStore_FindForUser(t *testing.T) {
	db := testutils.SetupTestDB(t, &Session{})
	store := NewStore(db, nil)

	sess := newTestSession(1, "hash-1")
	require.NoError(t, store.Create(sess))

	got, err := store.FindForUser(sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	// Another user must never see the session.
	_, err = store.FindForUser(sess.ID, 2)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_Rotate(t *testing.T) {
	db := testutils.SetupTestDB(t, &Session{})
	store := NewStore(db, nil)

	sess := newTestSession(1, "old-hash")
	require.NoError(t, store.Create(sess))

	now := time.Now()
	rotation := Rotation{
		NewHash:      "new-hash",
		NewExpiresAt: now.Add(48 * time.Hour),
		RotatedAt:    now,
		IP:           "198.51.100.7",
		UserAgent:    "rotated-agent",
	}

	rotated, err := store.Rotate(sess.ID, "old-hash", rotation)
	require.NoError(t, err)
	assert.True(t, rotated)

	got, err := store.FindByID(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.RefreshTokenHash)
	assert.Equal(t, "198.51.100.7", got.IP)
	assert.Equal(t, "rotated-agent", got.UserAgent)
	require.NotNil(t, got.LastRotatedAt)
	require.NotNil(t, got.SupersededTokenHash)
	assert.Equal(t, "old-hash", *got.SupersededTokenHash)

	t.Run("superseded hash resolves the session", func(t *testing.T) {
		found, err := store.FindBySupersededHash("old-hash")
		require.NoError(t, err)
		assert.Equal(t, sess.ID, found.ID)

		_, err = store.FindBySupersededHash("never-issued")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("stale hash loses the swap", func(t *testing.T) {
		rotated, err := store.Rotate(sess.ID, "old-hash", rotation)
		require.NoError(t, err)
		assert.False(t, rotated)
	})

	t.Run("revoked session cannot rotate", func(t *testing.T) {
		_, err := store.Revoke(sess.ID, time.Now())
		require.NoError(t, err)

		rotated, err := store.Rotate(sess.ID, "new-hash", Rotation{
			NewHash:      "newer-hash",
			NewExpiresAt: now.Add(72 * time.Hour),
			RotatedAt:    time.Now(),
		})
		require.NoError(t, err)
		assert.False(t, rotated)
	})
}

func TestStore_RevokeIsTerminalAndIdempotent(t *testing.T) {
	db := testutils.SetupTestDB(t, &Session{})
	store := NewStore(db, nil)

	sess := newTestSession(1, "hash-1")
	require.NoError(t, store.Create(sess))

	firstRevokedAt := time.Now().Add(-time.Minute)
	affected, err := store.Revoke(sess.ID, firstRevokedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// A second revocation must not touch the row or move the timestamp.
	affected, err = store.Revoke(sess.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	got, err := store.FindByID(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	assert.WithinDuration(t, firstRevokedAt, *got.RevokedAt, time.Second)
}

func TestStore_RevokeAllForUser(t *testing.T) {
	db := testutils.SetupTestDB(t, &Session{})
	store := NewStore(db, nil)

	require.NoError(t, store.Create(newTestSession(1, "hash-1")))
	require.NoError(t, store.Create(newTestSession(1, "hash-2")))
	require.NoError(t, store.Create(newTestSession(2, "hash-3")))

	affected, err := store.RevokeAllForUser(1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	sessions, err := store.ListActiveForUser(1, time.Now())
	require.NoError(t, err)
	assert.Empty(t, sessions)

	sessions, err = store.ListActiveForUser(2, time.Now())
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	// No live rows left for user 1; zero affected is not an error.
	affected, err = store.RevokeAllForUser(1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestStore_ListActiveForUser(t *testing.T) {
	db := testutils.SetupTestDB(t, &Session{})
	store := NewStore(db, nil)

	older := newTestSession(1, "hash-1")
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Create(older))

	newer := newTestSession(1, "hash-2")
	newer.CreatedAt = time.Now()
	require.NoError(t, store.Create(newer))

	expired := newTestSession(1, "hash-3")
	expired.RefreshExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Create(expired))

	revoked := newTestSession(1, "hash-4")
	require.NoError(t, store.Create(revoked))
	_, err := store.Revoke(revoked.ID, time.Now())
	require.NoError(t, err)

	sessions, err := store.ListActiveForUser(1, time.Now())
	require.NoError(t, err)

	require.Len(t, sessions, 2)
	assert.Equal(t, newer.ID, sessions[0].ID)
	assert.Equal(t, older.ID, sessions[1].ID)
}
