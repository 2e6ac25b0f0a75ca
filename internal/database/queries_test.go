package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestQueriesDB uses a temp file rather than ":memory:" so every pooled
// connection sees the same database.
func setupTestQueriesDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "queries.db"), DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.UpdateSetting(ctx, "site_name", "Morning Pages", "string"))
	require.NoError(t, db.UpdateSetting(ctx, "feeds", `["https://example.com/feed.xml"]`, "json"))
	return db
}

func TestGetSetting(t *testing.T) {
	db := setupTestQueriesDB(t)
	ctx := context.Background()

	t.Run("existing key", func(t *testing.T) {
		value, err := db.GetSetting(ctx, "site_name")
		require.NoError(t, err)
		assert.Equal(t, "Morning Pages", value)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := db.GetSetting(ctx, "non_existent_key")
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})
}

func TestUpdateSetting(t *testing.T) {
	db := setupTestQueriesDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpdateSetting(ctx, "site_name", "Evening Pages", "string"))
	value, err := db.GetSetting(ctx, "site_name")
	require.NoError(t, err)
	assert.Equal(t, "Evening Pages", value)

	var valueType string
	require.NoError(t, db.QueryRow("SELECT type FROM settings WHERE key = 'feeds'").Scan(&valueType))
	assert.Equal(t, "json", valueType)

	t.Run("empty type defaults to string", func(t *testing.T) {
		require.NoError(t, db.UpdateSetting(ctx, "plain", "v", ""))
		require.NoError(t, db.QueryRow("SELECT type FROM settings WHERE key = 'plain'").Scan(&valueType))
		assert.Equal(t, "string", valueType)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		err := db.UpdateSetting(ctx, "", "v", "string")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestDeleteSetting(t *testing.T) {
	db := setupTestQueriesDB(t)
	ctx := context.Background()

	require.NoError(t, db.DeleteSetting(ctx, "feeds"))
	_, err := db.GetSetting(ctx, "feeds")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, db.DeleteSetting(ctx, "feeds"), ErrNotFound)
}

func TestListSettings(t *testing.T) {
	db := setupTestQueriesDB(t)

	settings, err := db.ListSettings(context.Background())
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, "feeds", settings[0].Key)
	assert.Equal(t, "json", settings[0].Type)
	assert.Equal(t, "site_name", settings[1].Key)
	assert.False(t, settings[1].UpdatedAt.IsZero())
}
