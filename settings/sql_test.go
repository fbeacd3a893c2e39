package settings

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQL {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteLoadMissing(t *testing.T) {
	db := openTestSQLite(t)
	_, ok, err := db.Load(context.Background(), Key{Namespace: "roles", GuildID: 1, Name: "public_roles"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteUpsertAndList(t *testing.T) {
	ctx := context.Background()
	db := openTestSQLite(t)

	k := Key{Namespace: "roles", GuildID: 42, Name: "public_roles"}
	require.NoError(t, db.Save(ctx, k, []byte(`{"a":1}`)))
	require.NoError(t, db.Save(ctx, k, []byte(`{"b":2}`)))
	require.NoError(t, db.Save(ctx, Key{Namespace: "roles", GuildID: 42, Name: "other"}, []byte(`true`)))
	require.NoError(t, db.Save(ctx, Key{Namespace: "roles", GuildID: 43, Name: "public_roles"}, []byte(`{}`)))

	raw, ok, err := db.Load(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"b":2}`, string(raw))

	all, err := db.List(ctx, "roles", 42)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.JSONEq(t, `true`, string(all["other"]))
}

func TestSQLiteLargeGuildID(t *testing.T) {
	ctx := context.Background()
	db := openTestSQLite(t)

	k := Key{Namespace: "roles", GuildID: 1152921504606846977, Name: "k"}
	require.NoError(t, db.Save(ctx, k, []byte(`"v"`)))
	_, ok, err := db.Load(ctx, k)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteMigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")

	first, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, Key{Namespace: "n", GuildID: 1, Name: "k"}, []byte(`1`)))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	raw, ok, err := second.Load(ctx, Key{Namespace: "n", GuildID: 1, Name: "k"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(raw))
}

func TestOpenSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{
		Driver:  "sqlite",
		DSN:     filepath.Join(t.TempDir(), "nested", "settings.db"),
		Timeout: time.Second,
	})
	require.NoError(t, err)
	defer s.Close()

	k := Key{Namespace: "roles", GuildID: 42, Name: "public_roles"}
	require.NoError(t, s.Set(ctx, k, map[string]roleEntry{"vip": {ID: 7, Name: "VIP", Description: "VIP"}}))

	got, err := Get(ctx, s, k, map[string]roleEntry{})
	require.NoError(t, err)
	assert.Equal(t, roleEntry{ID: 7, Name: "VIP", Description: "VIP"}, got["vip"])
}

func TestSQLiteStoresSeeEachOthersWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")
	open := func() *Store {
		s, err := Open(ctx, Options{Driver: "sqlite", DSN: path, Timeout: time.Second})
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}
	running, operator := open(), open()
	require.NoError(t, running.Setup("roles"))

	k := Key{Namespace: "roles", GuildID: 42, Name: "public_roles"}
	require.NoError(t, running.Set(ctx, k, map[string]int{"a": 1}))
	got, err := Get(ctx, running, k, map[string]int{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, got)

	require.NoError(t, operator.Set(ctx, k, map[string]int{"b": 2}))
	got, err = Get(ctx, running, k, map[string]int{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b": 2}, got)
}
