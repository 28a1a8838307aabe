package user

import (
	"testing"

	"github.com/harborside/authcore/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail(" User@Example.COM "))
	assert.Equal(t, "user@example.com", NormalizeEmail("user@example.com"))
}

func TestStore_CreateAndFind(t *testing.T) {
	db := testutils.SetupTestDB(t, &User{})
	store := NewStore(db, nil)

	u := &User{
		Email:        "Captain@Example.com",
		PasswordHash: "hash",
		Role:         "admin",
		Active:       true,
	}
	require.NoError(t, store.Create(u))
	assert.Equal(t, "captain@example.com", u.Email)

	t.Run("by email is case-insensitive", func(t *testing.T) {
		got, err := store.FindByEmail("CAPTAIN@example.COM")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "admin", got.Role)
	})

	t.Run("by id", func(t *testing.T) {
		got, err := store.FindByID(u.ID)
		require.NoError(t, err)
		assert.Equal(t, "captain@example.com", got.Email)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := store.FindByEmail("nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		err := store.Create(&User{Email: "captain@example.com", PasswordHash: "other"})
		assert.Error(t, err)
	})
}

func TestStore_CreateInactiveUserStaysInactive(t *testing.T) {
	db := testutils.SetupTestDB(t, &User{})
	store := NewStore(db, nil)

	require.NoError(t, store.Create(&User{
		Email:        "dormant@example.com",
		PasswordHash: "hash",
		Role:         "user",
		Active:       false,
	}))

	got, err := store.FindByEmail("dormant@example.com")
	require.NoError(t, err)
	assert.False(t, got.Active)
}
