package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.json")

	f, err := OpenFile(path, FileOptions{})
	require.NoError(t, err)
	k := Key{Namespace: "roles", GuildID: 42, Name: "public_roles"}
	require.NoError(t, f.Save(ctx, k, []byte(`{"vip":{"id":7,"name":"VIP","description":"VIP"}}`)))
	require.NoError(t, f.Close())

	reopened, err := OpenFile(path, FileOptions{})
	require.NoError(t, err)
	defer reopened.Close()

	raw, ok, err := reopened.Load(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"vip":{"id":7,"name":"VIP","description":"VIP"}}`, string(raw))

	_, ok, err = reopened.Load(ctx, Key{Namespace: "roles", GuildID: 43, Name: "public_roles"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileRejectsInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := OpenFile(path, FileOptions{})
	require.Error(t, err)
}

func TestFileRejectsInvalidValue(t *testing.T) {
	f, err := OpenFile(filepath.Join(t.TempDir(), "settings.json"), FileOptions{})
	require.NoError(t, err)
	defer f.Close()

	err = f.Save(context.Background(), Key{Namespace: "n", GuildID: 1, Name: "k"}, []byte("{"))
	require.Error(t, err)
}

func TestFileBackupPrunesOldCopies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	f, err := OpenFile(path, FileOptions{BackupCount: 2})
	require.NoError(t, err)
	defer f.Close()

	for i := 0; i < 4; i++ {
		require.NoError(t, f.Backup())
	}

	backups, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	assert.Len(t, backups, 2)
}

func TestFileInvalidBackupSchedule(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "settings.json"), FileOptions{BackupSchedule: "not a schedule"})
	require.Error(t, err)
}

func TestFileLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, err := OpenFile(filepath.Join(dir, "settings.json"), FileOptions{})
	require.NoError(t, err)
	defer f.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Save(ctx, Key{Namespace: "n", GuildID: int64(i), Name: "k"}, []byte(`1`)))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "settings.json", entries[0].Name())
}
