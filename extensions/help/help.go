// Package help lists the commands of every loaded extension.
package help

import (
	"context"
	"fmt"
	"strings"

	"GuildBot/commands"
	"GuildBot/extensions"
)

const Path = "extensions/help"

// DirectMessageNotice is sent in the channel when help went to DMs.
const DirectMessageNotice = "I've sent you a Direct Message."

func init() {
	extensions.Register(extensions.Info{
		Path:        Path,
		Name:        "Help",
		Description: "Help system with command documentation",
		Factory:     func() (extensions.Extension, error) { return &Help{}, nil },
	})
}

type Help struct {
	registry *commands.Registry
}

func (h *Help) Setup(_ context.Context, host *extensions.Host) error {
	h.registry = host.Commands()
	return host.AddCommand(&commands.Command{
		Name:        "help",
		Aliases:     []string{"h"},
		Description: "Shows this message",
		Usage:       "[command|category]",
		Handler:     h.help,
	})
}

func (h *Help) help(ctx context.Context, c *commands.Context) error {
	arg := strings.TrimSpace(c.Args)
	if arg == "" {
		return h.deliver(ctx, c, h.Overview(c.Prefix))
	}

	if cmd, ok := h.registry.Lookup(arg); ok && !cmd.Hidden {
		return c.Send(ctx, Describe(c.Prefix, cmd))
	}
	if pages, ok := h.Category(c.Prefix, arg); ok {
		return h.deliver(ctx, c, pages)
	}
	return c.Send(ctx, fmt.Sprintf("No command called %q found.", arg))
}

// deliver sends pages privately when invoked in a guild and leaves a notice
// in the channel.
func (h *Help) deliver(ctx context.Context, c *commands.Context, pages []string) error {
	if !c.InGuild() {
		return c.SendPages(ctx, pages)
	}
	for _, page := range pages {
		if err := c.SendDirect(ctx, page); err != nil {
			return commands.Reply(err, "I couldn't send you a Direct Message. Do you have them disabled?")
		}
	}
	return c.Send(ctx, DirectMessageNotice)
}

// Overview renders all visible commands grouped by category.
func (h *Help) Overview(prefix string) []string {
	p := commands.NewPaginator("```", "```")
	category := "\x00"
	for _, cmd := range h.registry.Commands() {
		if cmd.Hidden {
			continue
		}
		if cmd.Category != category {
			category = cmd.Category
			name := category
			if name == "" {
				name = "No Category"
			}
			p.AddLine(name + ":")
		}
		p.AddLine(summary(cmd))
	}
	p.AddLine("")
	p.AddLine(fmt.Sprintf("Type %shelp command for more info on a command.", prefix))
	p.AddLine(fmt.Sprintf("You can also type %shelp category for more info on a category.", prefix))
	return p.Pages()
}

// Category renders the visible commands of one category, matched
// case-insensitively. It reports false when the category has none.
func (h *Help) Category(prefix, name string) ([]string, bool) {
	p := commands.NewPaginator("```", "```")
	found := false
	for _, cmd := range h.registry.Commands() {
		if cmd.Hidden || cmd.Category == "" || !strings.EqualFold(cmd.Category, name) {
			continue
		}
		if !found {
			p.AddLine(cmd.Category + ":")
			found = true
		}
		p.AddLine(summary(cmd))
	}
	if !found {
		return nil, false
	}
	p.AddLine("")
	p.AddLine(fmt.Sprintf("Type %shelp command for more info on a command.", prefix))
	return p.Pages(), true
}

// Describe renders the help of one command.
func Describe(prefix string, cmd *commands.Command) string {
	var b strings.Builder
	fmt.Fprintf(&b, "```\n%s%s\n", prefix, cmd.Signature())
	if cmd.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", cmd.Description)
	}
	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(&b, "\nAliases: %s\n", strings.Join(cmd.Aliases, ", "))
	}
	b.WriteString("```")
	return b.String()
}

func summary(cmd *commands.Command) string {
	line := "  " + cmd.Name
	if cmd.Description != "" {
		line = fmt.Sprintf("  %-16s %s", cmd.Name, cmd.Description)
	}
	return line
}
