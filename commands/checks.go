package commands

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// GuildOnly rejects direct messages.
func GuildOnly() Check {
	return func(_ context.Context, c *Context) error {
		if !c.InGuild() {
			return ErrNoPrivateMessage
		}
		return nil
	}
}

// DMOnly rejects invocations from guild channels.
func DMOnly() Check {
	return func(_ context.Context, c *Context) error {
		if c.InGuild() {
			return ErrPrivateMessageOnly
		}
		return nil
	}
}

// OwnerOnly allows only the bot owner.
func OwnerOnly() Check {
	return func(_ context.Context, c *Context) error {
		if !c.IsOwner {
			return ErrNotOwner
		}
		return nil
	}
}

// RequirePermissions demands every bit of perms in the invoking channel.
// Administrators pass every permission check. In direct messages there are
// no permissions, so the command is treated as guild-only.
func RequirePermissions(perms int64) Check {
	return func(_ context.Context, c *Context) error {
		if !c.InGuild() {
			return ErrNoPrivateMessage
		}
		if c.Permissions&discordgo.PermissionAdministrator != 0 {
			return nil
		}
		if c.Permissions&perms != perms {
			return ErrMissingPermissions
		}
		return nil
	}
}
