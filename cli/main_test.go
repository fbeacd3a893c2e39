package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	extensionRoots, manifestFile, driver, dsn, envFile = nil, "", "", "", ""
	listModules, listCommands, filterModule = false, false, ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestListCompiledExtensions(t *testing.T) {
	out, err := run(t, "list", "--modules")
	require.NoError(t, err)
	for _, want := range []string{"extensions/admin", "extensions/help", "extensions/owner", "Server Roles (extensions/roles)"} {
		assert.Contains(t, out, want)
	}

	out, err = run(t, "list", "--commands")
	require.NoError(t, err)
	assert.Contains(t, out, "📂 Server Roles")
	assert.Contains(t, out, ".role (roles) - Self-assign a role")
	assert.Contains(t, out, ".eload [hidden]")

	out, err = run(t, "list", "--filter", "roles")
	require.NoError(t, err)
	assert.Contains(t, out, "📊 Summary: 1 extensions, 3 commands")

	_, err = run(t, "list", "--filter", "music")
	require.Error(t, err)
}

func TestResolveAndDiscover(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "extensions", "roles", "roles.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("package roles\n"), 0o644))
	manifest := filepath.Join(root, "extensions.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("extensions:\n  helper: extensions/help\n"), 0o644))

	out, err := run(t, "resolve", "--root", root, "--manifest", manifest, "roles")
	require.NoError(t, err)
	assert.Equal(t, "extensions/roles\n", out)

	out, err = run(t, "resolve", "--root", root, "--manifest", manifest, "helper")
	require.NoError(t, err)
	assert.Equal(t, "extensions/help\n", out)

	_, err = run(t, "resolve", "--root", root, "--manifest", manifest, "music")
	require.Error(t, err)

	out, err = run(t, "discover", "--root", root, "--manifest", manifest)
	require.NoError(t, err)
	assert.Equal(t, "helper\n  extensions/help [compiled in]\nroles\n  extensions/roles [compiled in]\n", out)
}

func TestSettingsRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "settings.json")
	store := []string{"--driver", "file", "--dsn", file}

	_, err := run(t, append([]string{"settings", "set"}, append(store, "roles", "42", "public_roles", `{"vip":{"id":160175151009382401,"name":"VIP"}}`)...)...)
	require.NoError(t, err)

	out, err := run(t, append([]string{"settings", "get"}, append(store, "roles", "42", "public_roles")...)...)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"vip\": {\n    \"id\": 160175151009382401,\n    \"name\": \"VIP\"\n  }\n}\n", out)

	out, err = run(t, append([]string{"settings", "dump"}, append(store, "roles", "42")...)...)
	require.NoError(t, err)
	assert.Equal(t, "public_roles = {\"vip\":{\"id\":160175151009382401,\"name\":\"VIP\"}}\n", out)

	_, err = run(t, append([]string{"settings", "get"}, append(store, "roles", "7", "public_roles")...)...)
	require.Error(t, err)

	_, err = run(t, append([]string{"settings", "set"}, append(store, "roles", "42", "public_roles", "{not json")...)...)
	require.Error(t, err)
}

func TestMigrate(t *testing.T) {
	out, err := run(t, "migrate", "--driver", "sqlite", "--dsn", filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	assert.Equal(t, "Settings schema is up to date.\n", out)
}
