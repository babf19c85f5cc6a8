package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "db", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestUsers(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			u, err := s.CreateUser(ctx, User{ID: "user_1", Email: "ann@example.com", DisplayName: "Ann", PasswordHash: "hash"})
			require.NoError(t, err)
			assert.False(t, u.CreatedAt.IsZero())

			_, err = s.CreateUser(ctx, User{ID: "user_2", Email: "ANN@example.com", DisplayName: "Other", PasswordHash: "hash"})
			assert.ErrorIs(t, err, ErrConflict)

			got, err := s.GetUserByEmail(ctx, "Ann@Example.com")
			require.NoError(t, err)
			assert.Equal(t, "user_1", got.ID)

			got, err = s.GetUser(ctx, "user_1")
			require.NoError(t, err)
			assert.Equal(t, "Ann", got.DisplayName)
			assert.True(t, u.CreatedAt.Equal(got.CreatedAt))

			_, err = s.GetUser(ctx, "user_missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLayoutsAndSnapshots(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.CreateLayout(ctx, Layout{ID: "layout_a", Name: "Front", OwnerID: "user_1"})
			require.NoError(t, err)
			_, err = s.CreateLayout(ctx, Layout{ID: "layout_b", Name: "Back", OwnerID: "user_1"})
			require.NoError(t, err)
			_, err = s.CreateLayout(ctx, Layout{ID: "layout_c", Name: "Other", OwnerID: "user_2"})
			require.NoError(t, err)

			_, err = s.CreateLayout(ctx, Layout{ID: "layout_a", Name: "Again", OwnerID: "user_1"})
			assert.ErrorIs(t, err, ErrConflict)

			_, err = s.LatestSnapshot(ctx, "layout_a")
			assert.ErrorIs(t, err, ErrNotFound)

			first, err := s.SaveSnapshot(ctx, "snap_1", "layout_a", json.RawMessage(`{"v":1}`))
			require.NoError(t, err)
			assert.Equal(t, 1, first.Version)
			second, err := s.SaveSnapshot(ctx, "snap_2", "layout_a", json.RawMessage(`{"v":2}`))
			require.NoError(t, err)
			assert.Equal(t, 2, second.Version)

			latest, err := s.LatestSnapshot(ctx, "layout_a")
			require.NoError(t, err)
			assert.Equal(t, "snap_2", latest.ID)
			assert.JSONEq(t, `{"v":2}`, string(latest.Document))

			_, err = s.SaveSnapshot(ctx, "snap_x", "layout_missing", json.RawMessage(`{}`))
			assert.ErrorIs(t, err, ErrNotFound)

			// the layout with the newest snapshot comes first
			list, err := s.ListLayouts(ctx, "user_1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "layout_a", list[0].ID)
			assert.Equal(t, "layout_b", list[1].ID)

			l, err := s.GetLayout(ctx, "layout_c")
			require.NoError(t, err)
			assert.Equal(t, "Other", l.Name)

			require.NoError(t, s.DeleteLayout(ctx, "layout_a"))
			_, err = s.GetLayout(ctx, "layout_a")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.LatestSnapshot(ctx, "layout_a")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.DeleteLayout(ctx, "layout_a"), ErrNotFound)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mongo", "")
	assert.Error(t, err)

	s, err := Open(context.Background(), "memory", "")
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
