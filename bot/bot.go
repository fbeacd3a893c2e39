// Package bot wires the settings store, the command registry and the
// extension manager to a Discord session.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"GuildBot/commands"
	"GuildBot/config"
	"GuildBot/extensions"
	"GuildBot/settings"
	"GuildBot/utils"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// Bot is the service context shared by every handler.
type Bot struct {
	Config     *config.Config
	Settings   *settings.Store
	Commands   *commands.Registry
	Extensions *extensions.Manager
	Resolver   *extensions.Resolver
	Dispatcher *commands.Dispatcher
	Client     *discordgo.Session
	Log        *slog.Logger
}

// NewBot opens the settings store and prepares the session. Nothing
// connects to Discord until Run.
func NewBot(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	client.Identify.Intents = intents

	store, err := settings.Open(ctx, settings.Options{
		Driver:         cfg.SettingsDriver,
		DSN:            cfg.DatabaseURL,
		Timeout:        cfg.StorageTimeout,
		BackupSchedule: cfg.BackupSchedule,
		BackupCount:    cfg.BackupCount,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	resolver, err := extensions.NewResolver(cfg.ExtensionRoots, cfg.ExtensionManifest, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := commands.NewRegistry()
	b := &Bot{
		Config:   cfg,
		Settings: store,
		Commands: registry,
		Extensions: extensions.NewManager(extensions.Config{
			Commands: registry,
			Settings: store,
			Resolver: resolver,
			Logger:   logger,
		}),
		Resolver:   resolver,
		Dispatcher: commands.NewDispatcher(registry, newDiscordPlatform(client), cfg.ResponseTTL, logger),
		Client:     client,
		Log:        logger,
	}
	client.AddHandler(b.onReady)
	client.AddHandler(b.onMessageCreate)
	return b, nil
}

// Run connects, loads the initial extensions and blocks until ctx is done.
// On the way out every extension is unloaded and the store is closed.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Client.Open(); err != nil {
		return fmt.Errorf("open Discord session: %w", err)
	}
	b.LoadInitial(ctx)

	g, ctx := errgroup.WithContext(ctx)
	if b.Config.WatchExtensions {
		g.Go(func() error {
			if err := b.Resolver.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				b.Log.Warn("extension watcher stopped", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		b.Log.Info("shutdown signal received, cleaning up")
		return nil
	})
	err := g.Wait()

	shutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	b.Extensions.UnloadAll(shutdown)
	if cerr := b.Client.Close(); cerr != nil {
		b.Log.Warn("close Discord session", "error", cerr)
	}
	if cerr := b.Settings.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close settings: %w", cerr))
	}
	return err
}

// LoadInitial loads the configured extensions. A failing extension is
// logged and skipped.
func (b *Bot) LoadInitial(ctx context.Context) {
	for _, name := range b.Config.InitialExtensions {
		path, err := b.Resolver.Resolve(name)
		if err != nil {
			b.Log.Error("resolve initial extension", "name", name, "error", err)
			continue
		}
		if err := b.Extensions.Load(ctx, path); err != nil {
			b.Log.Error("load initial extension", "path", path, "error", err)
		}
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.Log.Info("connected", "user", r.User.Username, "guilds", len(r.Guilds))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	msg, err := b.message(s, m)
	if err != nil {
		b.Log.Debug("ignoring message", "error", err)
		return
	}
	// errors are reported to the user by the dispatcher
	_ = b.Dispatcher.Dispatch(context.Background(), msg)
}

// message converts a gateway event into a commands.Message.
func (b *Bot) message(s *discordgo.Session, m *discordgo.MessageCreate) (commands.Message, error) {
	var msg commands.Message
	var err error
	if msg.ID, err = utils.ParseSnowflake(m.ID); err != nil {
		return msg, err
	}
	if msg.ChannelID, err = utils.ParseSnowflake(m.ChannelID); err != nil {
		return msg, err
	}
	if msg.GuildID, err = utils.ParseSnowflake(m.GuildID); err != nil {
		return msg, err
	}
	if msg.Author.ID, err = utils.ParseSnowflake(m.Author.ID); err != nil {
		return msg, err
	}
	msg.BotID, _ = utils.ParseSnowflake(s.State.User.ID)
	msg.Author.Name = m.Author.Username
	msg.Content = m.Content
	msg.IsOwner = b.Config.OwnerID != 0 && msg.Author.ID == b.Config.OwnerID
	if msg.GuildID != 0 {
		msg.Permissions = newDiscordPlatform(s).permissions(m.Author.ID, m.ChannelID)
	}
	return msg, nil
}
