package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrUnknownRole is returned by a Platform when a role does not exist in
// the guild.
var ErrUnknownRole = errors.New("unknown role")

// User is the author of a message.
type User struct {
	ID   int64
	Name string
}

// Role is a guild role as seen by commands.
type Role struct {
	ID   int64
	Name string
}

// Mention renders the role as a chat mention.
func (r Role) Mention() string {
	return "<@&" + formatID(r.ID) + ">"
}

// Message is an inbound chat message. GuildID is zero for direct messages.
type Message struct {
	ID        int64
	ChannelID int64
	GuildID   int64
	Author    User
	Content   string

	// Permissions is the author's permission bit set in the channel.
	Permissions int64
	IsOwner     bool
	// BotID is the id of the bot account, used for mention prefixes.
	BotID int64
}

// Platform is what commands need from the chat service.
type Platform interface {
	Send(ctx context.Context, channelID int64, text string) (int64, error)
	SendDirect(ctx context.Context, userID int64, text string) error
	DeleteMessage(ctx context.Context, channelID, messageID int64) error

	// Role looks up a role by id; ErrUnknownRole if it does not exist.
	Role(ctx context.Context, guildID, roleID int64) (Role, error)
	// FindRole resolves a mention, a raw id or an exact role name;
	// ErrUnknownRole if nothing matches.
	FindRole(ctx context.Context, guildID int64, query string) (Role, error)

	MemberRoles(ctx context.Context, guildID, userID int64) ([]int64, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID int64) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID int64) error
}

// Context is one command invocation.
type Context struct {
	Message
	// Prefix is the prefix the message was invoked with.
	Prefix string
	// Invoked is the name or alias the user typed.
	Invoked string
	// Args is the raw text after the command name.
	Args    string
	Command *Command

	// InvocationID correlates log lines of one invocation.
	InvocationID string

	platform    Platform
	responseTTL time.Duration
	log         *slog.Logger
}

// NewContext builds an invocation context outside the dispatcher, mostly
// for tests and tools.
func NewContext(platform Platform, msg Message, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{Message: msg, platform: platform, log: logger}
}

// InGuild reports whether the invocation came from a guild channel.
func (c *Context) InGuild() bool { return c.GuildID != 0 }

func (c *Context) Platform() Platform { return c.platform }

func (c *Context) Logger() *slog.Logger { return c.log }

// ResponseTTL is how long guild responses stay before they are deleted.
// Zero keeps them.
func (c *Context) ResponseTTL() time.Duration { return c.responseTTL }

// Send replies in the invoking channel. In guilds the reply is deleted
// after the response TTL.
func (c *Context) Send(ctx context.Context, text string) error {
	id, err := c.platform.Send(ctx, c.ChannelID, text)
	if err != nil {
		return err
	}
	if c.InGuild() {
		c.deleteAfter(c.ChannelID, id, c.responseTTL)
	}
	return nil
}

// SendPages sends each page as its own message.
func (c *Context) SendPages(ctx context.Context, pages []string) error {
	for _, page := range pages {
		if err := c.Send(ctx, page); err != nil {
			return err
		}
	}
	return nil
}

// SendDirect messages the invoking user privately.
func (c *Context) SendDirect(ctx context.Context, text string) error {
	return c.platform.SendDirect(ctx, c.Author.ID, text)
}

// DeleteInvocation removes the invoking message after delay. It does
// nothing in direct messages, where the bot cannot delete user messages.
func (c *Context) DeleteInvocation(delay time.Duration) {
	if !c.InGuild() {
		return
	}
	c.deleteAfter(c.ChannelID, c.ID, delay)
}

func (c *Context) deleteAfter(channelID, messageID int64, delay time.Duration) {
	if delay <= 0 || messageID == 0 {
		return
	}
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.platform.DeleteMessage(ctx, channelID, messageID); err != nil {
			c.log.Debug("delete message", "channel", channelID, "message", messageID, "error", err)
		}
	})
}
