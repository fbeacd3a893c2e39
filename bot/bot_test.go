package bot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GuildBot/config"
	"GuildBot/extensions"
	"GuildBot/extensions/roles"
)

func newTestBot(t *testing.T, initial ...string) *Bot {
	t.Helper()
	manifest := filepath.Join(t.TempDir(), "extensions.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("extensions:\n  roles: extensions/roles\n"), 0o644))

	cfg := &config.Config{
		DiscordToken:      "test-token",
		OwnerID:           99,
		SettingsDriver:    "memory",
		StorageTimeout:    time.Second,
		ExtensionManifest: manifest,
		InitialExtensions: initial,
	}
	b, err := NewBot(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { b.Settings.Close() })
	b.Client.State.User = &discordgo.User{ID: "1", Username: "bot"}
	return b
}

func TestLoadInitialSkipsFailures(t *testing.T) {
	b := newTestBot(t, "extensions/missing", "roles", "nosuch")
	b.LoadInitial(context.Background())

	assert.Equal(t, extensions.StateLoaded, b.Extensions.State(roles.Path))
	assert.Equal(t, extensions.StateUnloaded, b.Extensions.State("extensions/missing"))
	_, ok := b.Commands.Lookup("role")
	assert.True(t, ok)

	b.Extensions.UnloadAll(context.Background())
	assert.Empty(t, b.Extensions.Loaded())
	assert.False(t, b.Settings.Registered(roles.Namespace))
}

func TestMessageConversion(t *testing.T) {
	b := newTestBot(t)

	msg, err := b.message(b.Client, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "1002",
		ChannelID: "20",
		Content:   "?help",
		Author:    &discordgo.User{ID: "99", Username: "owner"},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(1002), msg.ID)
	assert.Equal(t, int64(20), msg.ChannelID)
	assert.Zero(t, msg.GuildID)
	assert.Equal(t, int64(1), msg.BotID)
	assert.True(t, msg.IsOwner)
	assert.Equal(t, "owner", msg.Author.Name)

	_, err = b.message(b.Client, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:     "not-a-number",
		Author: &discordgo.User{ID: "5"},
	}})
	require.Error(t, err)
}

func TestNewBotRejectsUnknownDriver(t *testing.T) {
	_, err := NewBot(context.Background(), &config.Config{DiscordToken: "x", SettingsDriver: "redis"}, nil)
	require.Error(t, err)
}
