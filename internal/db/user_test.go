package db

import (
	"context"
	"testing"

	"github.com/dotnet/mbmlbook-sub000/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateUser(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	t.Run("creates new user", func(t *testing.T) {
		user, err := GetOrCreateUser(ctx, pool, "test@example.com", "Test User")
		require.NoError(t, err)

		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "test@example.com", user.Email)
		assert.Equal(t, "Test User", user.DisplayName)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("returns existing user regardless of email case", func(t *testing.T) {
		first, err := GetOrCreateUser(ctx, pool, "owner@example.com", "Owner")
		require.NoError(t, err)

		second, err := GetOrCreateUser(ctx, pool, "  Owner@Example.COM ", "")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "owner@example.com", second.Email)
		assert.Equal(t, "Owner", second.DisplayName, "empty display name keeps the stored one")
	})

	t.Run("updates display name", func(t *testing.T) {
		first, err := GetOrCreateUser(ctx, pool, "renamed@example.com", "Old Name")
		require.NoError(t, err)

		second, err := GetOrCreateUser(ctx, pool, "renamed@example.com", "New Name")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "New Name", second.DisplayName)
	})

	t.Run("rejects empty email", func(t *testing.T) {
		_, err := GetOrCreateUser(ctx, pool, "   ", "Nobody")
		assert.ErrorIs(t, err, ErrEmptyEmail)
	})
}
