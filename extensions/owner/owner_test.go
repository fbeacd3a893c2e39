package owner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GuildBot/commands"
	"GuildBot/commands/commandtest"
	"GuildBot/extensions"
	"GuildBot/settings"
)

const ownerID = 99

type pingExtension struct{ fail bool }

func (p *pingExtension) Setup(_ context.Context, h *extensions.Host) error {
	if p.fail {
		panic("ping is broken")
	}
	return h.AddCommand(&commands.Command{
		Name:    "ping",
		Handler: func(ctx context.Context, c *commands.Context) error { return c.Send(ctx, "pong") },
	})
}

type fixture struct {
	manager    *extensions.Manager
	registry   *commands.Registry
	platform   *commandtest.Platform
	dispatcher *commands.Dispatcher
	brokenPing bool
}

func newFixture(t *testing.T, resolver *extensions.Resolver) *fixture {
	t.Helper()
	f := &fixture{registry: commands.NewRegistry(), platform: commandtest.NewPlatform()}

	catalog := extensions.NewCatalog()
	catalog.Register(extensions.Info{Path: Path, Factory: func() (extensions.Extension, error) { return &Owner{}, nil }})
	catalog.Register(extensions.Info{Path: "extensions/ping", Factory: func() (extensions.Extension, error) {
		return &pingExtension{fail: f.brokenPing}, nil
	}})

	f.manager = extensions.NewManager(extensions.Config{
		Catalog:  catalog,
		Commands: f.registry,
		Settings: settings.New(settings.NewMemory(), time.Second, nil),
		Resolver: resolver,
	})
	require.NoError(t, f.manager.Load(context.Background(), Path))
	f.dispatcher = commands.NewDispatcher(f.registry, f.platform, 0, nil)
	return f
}

func (f *fixture) dm(content string) error {
	msg := commandtest.DirectMessage(ownerID, content)
	msg.IsOwner = true
	return f.dispatcher.Dispatch(context.Background(), msg)
}

func TestLoadUnloadReload(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.dm("?eload extensions/ping"))
	assert.Equal(t, "**`SUCCESS`**", f.platform.Last())
	_, ok := f.registry.Lookup("ping")
	assert.True(t, ok)

	require.NoError(t, f.dm("?ereload extensions/ping"))
	assert.Equal(t, extensions.StateLoaded, f.manager.State("extensions/ping"))

	require.NoError(t, f.dm("?eunload extensions/ping"))
	assert.Equal(t, "**`SUCCESS`**", f.platform.Last())
	_, ok = f.registry.Lookup("ping")
	assert.False(t, ok)
}

func TestLifecycleErrorsArePaged(t *testing.T) {
	f := newFixture(t, nil)

	err := f.dm("?eunload extensions/ping")
	require.ErrorIs(t, err, extensions.ErrNotLoaded)
	assert.True(t, commands.IsHandled(err))

	last := f.platform.Last()
	assert.True(t, strings.HasPrefix(last, "**`ERROR:`** ExtensionNotLoaded - "), last)
	assert.True(t, strings.HasSuffix(last, "```"), last)
}

func TestPanickingSetupReportsStack(t *testing.T) {
	f := newFixture(t, nil)
	f.brokenPing = true

	err := f.dm("?eload extensions/ping")
	var loadErr *extensions.LoadError
	require.ErrorAs(t, err, &loadErr)

	text := strings.Join(f.platform.Texts(), "\n")
	assert.Contains(t, text, "**`ERROR:`** ExtensionFailed - ")
	assert.Contains(t, text, "ping is broken")
	assert.Contains(t, text, "goroutine")
	for _, page := range f.platform.Texts() {
		assert.LessOrEqual(t, len(page), commands.MaxMessageLength)
	}
	assert.Equal(t, extensions.StateUnloaded, f.manager.State("extensions/ping"))
}

func TestOwnerAndDMOnly(t *testing.T) {
	f := newFixture(t, nil)

	err := f.dispatcher.Dispatch(context.Background(), commandtest.DirectMessage(5, "?eload extensions/ping"))
	require.ErrorIs(t, err, commands.ErrNotOwner)

	msg := commandtest.GuildMessage(1, ownerID, "!eload extensions/ping")
	msg.IsOwner = true
	err = f.dispatcher.Dispatch(context.Background(), msg)
	require.ErrorIs(t, err, commands.ErrPrivateMessageOnly)

	assert.Equal(t, extensions.StateUnloaded, f.manager.State("extensions/ping"))
}

func TestResolvesShortNames(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"extensions/ping/ping.go", "extensions/owner/owner.go", "extensions/music.go", "more_extensions/music.go"} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("package x\n"), 0o644))
	}
	resolver, err := extensions.NewResolver([]string{root}, "", nil)
	require.NoError(t, err)
	f := newFixture(t, resolver)

	require.NoError(t, f.dm("?eload ping"))
	assert.Equal(t, extensions.StateLoaded, f.manager.State("extensions/ping"))

	err = f.dm("?eload radio")
	require.ErrorIs(t, err, extensions.ErrNotFound)
	assert.True(t, commands.IsHandled(err))
	assert.True(t, strings.HasPrefix(f.platform.Last(), "**`ERROR:`** ExtensionNotFound - "), f.platform.Last())

	err = f.dm("?eload music")
	require.ErrorIs(t, err, extensions.ErrAmbiguousName)
	assert.True(t, commands.IsHandled(err))
	last := f.platform.Last()
	assert.True(t, strings.HasPrefix(last, "**`ERROR:`** AmbiguousName - "), last)
	assert.Contains(t, last, "extensions/music, more_extensions/music")
}

func TestExtensionsListing(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.dm("?eload extensions/ping"))
	f.platform.Reset()

	require.NoError(t, f.dm("?extensions"))
	text := f.platform.Last()
	assert.Contains(t, text, "extensions/owner")
	assert.Contains(t, text, "extensions/ping")
	assert.Contains(t, text, "ping")
}

func TestNameReplace(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"😀", `\N{GRINNING FACE}`},
		{"a👍b", `a\N{THUMBS UP SIGN}b`},
		{"\U000F0000", `\U000f0000`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NameReplace(tt.in), tt.in)
	}
}

func TestErrorPagesTruncateHeaderOnRuneBoundary(t *testing.T) {
	msg := strings.Repeat("a", 196) + strings.Repeat("é", 20)
	pages := ErrorPages(errors.New(msg))
	require.NotEmpty(t, pages)
	header, _, _ := strings.Cut(pages[0], "\n")
	assert.True(t, utf8.ValidString(header), header)
	assert.Equal(t, "**`ERROR:`** *errors.errorString - "+strings.Repeat("a", 196)+"...", header)
}

func TestErrorPagesFallBackToType(t *testing.T) {
	pages := ErrorPages(errors.New("boom"))
	require.Len(t, pages, 1)
	assert.Equal(t, "**`ERROR:`** *errors.errorString - boom\n```\n*errors.errorString: boom\n```", pages[0])
}
