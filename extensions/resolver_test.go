package extensions

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "extensions/roles/roles.go", "package roles\n")
	writeFile(t, root, "extensions/roles/roles_test.go", "package roles\n")
	writeFile(t, root, "extensions/owner/owner.go", "package owner\n")
	writeFile(t, root, "extensions/ping.go", "package extensions\n")
	writeFile(t, root, "games/extension_pack/dice.go", "package extension_pack\n")
	writeFile(t, root, "games/extension_pack/roles/roles.go", "package roles\n")
	writeFile(t, root, "extensions/empty/README.md", "nothing here\n")
	writeFile(t, root, "_archive/extensions/owner/owner.go", "package owner\n")
	return root
}

func TestResolveSingleMatch(t *testing.T) {
	r, err := NewResolver([]string{newTree(t)}, "", nil)
	require.NoError(t, err)

	tests := map[string]string{
		"owner": "extensions/owner",
		"ping":  "extensions/ping",
		"dice":  "games/extension_pack/dice",
	}
	for name, want := range tests {
		got, err := r.Resolve(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	r, err := NewResolver([]string{newTree(t)}, "", nil)
	require.NoError(t, err)

	_, err = r.Resolve("roles")
	require.ErrorIs(t, err, ErrAmbiguousName)
	assert.Contains(t, err.Error(), "extensions/roles, games/extension_pack/roles")
}

func TestResolveNotFound(t *testing.T) {
	r, err := NewResolver([]string{newTree(t)}, "", nil)
	require.NoError(t, err)

	for _, name := range []string{"music", "empty", "", "roles_test"} {
		_, err = r.Resolve(name)
		require.ErrorIs(t, err, ErrNotFound, name)
	}
}

func TestResolveQualifiedName(t *testing.T) {
	r, err := NewResolver(nil, "", nil)
	require.NoError(t, err)

	got, err := r.Resolve("extensions/roles/")
	require.NoError(t, err)
	assert.Equal(t, "extensions/roles", got)

	_, err = r.Resolve("../etc/passwd")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManifestWins(t *testing.T) {
	root := newTree(t)
	manifest := filepath.Join(t.TempDir(), "extensions.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("extensions:\n  roles: extensions/roles\n"), 0o644))

	r, err := NewResolver([]string{root}, manifest, nil)
	require.NoError(t, err)

	got, err := r.Resolve("roles")
	require.NoError(t, err)
	assert.Equal(t, "extensions/roles", got)
}

func TestInvalidManifest(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "extensions.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("extensions: [unterminated"), 0o644))
	_, err := NewResolver(nil, manifest, nil)
	require.Error(t, err)
}

func TestResolveIsDeterministic(t *testing.T) {
	r, err := NewResolver([]string{newTree(t)}, "", nil)
	require.NoError(t, err)

	first, err := r.Resolve("owner")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		got, err := r.Resolve("owner")
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestInvalidateSeesNewExtensions(t *testing.T) {
	root := newTree(t)
	r, err := NewResolver([]string{root}, "", nil)
	require.NoError(t, err)

	_, err = r.Resolve("music")
	require.ErrorIs(t, err, ErrNotFound)

	writeFile(t, root, "extensions/music/music.go", "package music\n")
	require.NoError(t, r.Invalidate())

	got, err := r.Resolve("music")
	require.NoError(t, err)
	assert.Equal(t, "extensions/music", got)
}

func TestWatchInvalidatesCache(t *testing.T) {
	root := newTree(t)
	r, err := NewResolver([]string{root}, "", nil)
	require.NoError(t, err)

	_, err = r.Resolve("music")
	require.ErrorIs(t, err, ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// give the watcher time to register the tree
	time.Sleep(100 * time.Millisecond)
	writeFile(t, root, "extensions/music.go", "package extensions\n")

	require.Eventually(t, func() bool {
		got, err := r.Resolve("music")
		return err == nil && got == "extensions/music"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestDiscover(t *testing.T) {
	r, err := NewResolver([]string{newTree(t)}, "", nil)
	require.NoError(t, err)

	all, err := r.Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{"extensions/roles", "games/extension_pack/roles"}, all["roles"])
	assert.Equal(t, []string{"extensions/owner"}, all["owner"])
	_, ok := all["empty"]
	assert.False(t, ok)
}
