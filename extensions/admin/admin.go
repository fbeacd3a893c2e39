// Package admin lets guild administrators disable and re-enable commands
// or whole categories in their server.
package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"GuildBot/commands"
	"GuildBot/extensions"
	"GuildBot/settings"
)

const (
	Path        = "extensions/admin"
	Namespace   = "admin"
	DisabledKey = "disabled"
)

var (
	ErrEssentialCommand = errors.New("command cannot be disabled")
	ErrInvalidTarget    = errors.New("invalid command or category")
)

// essential commands stay usable so a guild can always undo a disable.
var essential = []string{"help", "enable", "disable"}

func init() {
	extensions.Register(extensions.Info{
		Path:        Path,
		Name:        "Admin",
		Description: "Administrative commands for bot management",
		Factory:     func() (extensions.Extension, error) { return &Admin{}, nil },
	})
}

// Disabled is what a guild has turned off. Names are lower-case.
type Disabled struct {
	Commands   []string `json:"commands,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

func (d Disabled) list(kind string) []string {
	if kind == "category" {
		return d.Categories
	}
	return d.Commands
}

func (d *Disabled) set(kind string, names []string) {
	if kind == "category" {
		d.Categories = names
		return
	}
	d.Commands = names
}

type Admin struct {
	store    *settings.Store
	registry *commands.Registry
}

func (a *Admin) Setup(_ context.Context, h *extensions.Host) error {
	if err := h.UseNamespace(Namespace); err != nil {
		return err
	}
	a.store = h.Settings()
	a.registry = h.Commands()

	h.AddCheck("disabled", a.check)

	checks := []commands.Check{commands.GuildOnly(), commands.RequirePermissions(discordgo.PermissionAdministrator)}
	return h.AddCommand(
		&commands.Command{
			Name:        "disable",
			Description: "Disables a command or category",
			Usage:       "<command|category> <name>",
			Category:    "Admin",
			Checks:      checks,
			Handler:     a.disable,
		},
		&commands.Command{
			Name:        "enable",
			Description: "Enables a command or category",
			Usage:       "<command|category> <name>",
			Category:    "Admin",
			Checks:      checks,
			Handler:     a.enable,
		},
	)
}

func key(guildID int64) settings.Key {
	return settings.Key{Namespace: Namespace, GuildID: guildID, Name: DisabledKey}
}

// Disabled returns what the guild has turned off.
func (a *Admin) Disabled(ctx context.Context, guildID int64) (Disabled, error) {
	return settings.Get(ctx, a.store, key(guildID), Disabled{})
}

// IsDisabled reports whether cmd is off in the guild, by name or category.
func (a *Admin) IsDisabled(ctx context.Context, guildID int64, cmd *commands.Command) (bool, error) {
	name := strings.ToLower(cmd.Name)
	if slices.Contains(essential, name) {
		return false, nil
	}
	d, err := a.Disabled(ctx, guildID)
	if err != nil {
		return false, err
	}
	return slices.Contains(d.Commands, name) ||
		(cmd.Category != "" && slices.Contains(d.Categories, strings.ToLower(cmd.Category))), nil
}

func (a *Admin) check(ctx context.Context, c *commands.Context) error {
	if !c.InGuild() || c.Command == nil {
		return nil
	}
	off, err := a.IsDisabled(ctx, c.GuildID, c.Command)
	if err != nil {
		return err
	}
	if off {
		return commands.ErrCommandDisabled
	}
	return nil
}

func parseTarget(c *commands.Context) (kind, name string, err error) {
	args := commands.Fields(c.Args)
	if len(args) < 2 {
		return "", "", commands.BadArgument("usage: %s%s <command|category> <name>", c.Prefix, c.Command.Name)
	}
	kind, name = strings.ToLower(args[0]), strings.ToLower(args[1])
	if kind != "command" && kind != "category" {
		return "", "", commands.Reply(ErrInvalidTarget, "Invalid type. Use 'command' or 'category'.")
	}
	return kind, name, nil
}

func (a *Admin) disable(ctx context.Context, c *commands.Context) error {
	kind, name, err := parseTarget(c)
	if err != nil {
		return err
	}

	switch kind {
	case "command":
		cmd, ok := a.registry.Lookup(name)
		if !ok {
			return commands.Reply(ErrInvalidTarget, fmt.Sprintf("Command `%s` not found.", name))
		}
		name = strings.ToLower(cmd.Name)
		if slices.Contains(essential, name) {
			return commands.Reply(ErrEssentialCommand, "You cannot disable this command.")
		}
	case "category":
		if !a.categoryExists(name) {
			return commands.Reply(ErrInvalidTarget, "Invalid category.")
		}
	}

	if err := a.SetDisabled(ctx, c.GuildID, kind, name, true); err != nil {
		return err
	}
	c.Logger().Info("disabled", "type", kind, "name", name)
	return c.Send(ctx, fmt.Sprintf("Successfully disabled %s `%s`.", kind, name))
}

func (a *Admin) enable(ctx context.Context, c *commands.Context) error {
	kind, name, err := parseTarget(c)
	if err != nil {
		return err
	}
	if kind == "command" {
		if cmd, ok := a.registry.Lookup(name); ok {
			name = strings.ToLower(cmd.Name)
		}
	}

	d, err := a.Disabled(ctx, c.GuildID)
	if err != nil {
		return err
	}
	if !slices.Contains(d.list(kind), name) {
		return c.Send(ctx, fmt.Sprintf("%s `%s` was not disabled.", cases.Title(language.English).String(kind), name))
	}

	if err := a.SetDisabled(ctx, c.GuildID, kind, name, false); err != nil {
		return err
	}
	c.Logger().Info("enabled", "type", kind, "name", name)
	return c.Send(ctx, fmt.Sprintf("Successfully enabled %s `%s`.", kind, name))
}

// SetDisabled turns a command or category ("command" or "category") off or
// back on for the guild.
func (a *Admin) SetDisabled(ctx context.Context, guildID int64, kind, name string, off bool) error {
	name = strings.ToLower(name)
	_, err := settings.Update(ctx, a.store, key(guildID), Disabled{}, func(d Disabled) (Disabled, error) {
		names := slices.DeleteFunc(slices.Clone(d.list(kind)), func(n string) bool { return n == name })
		if off {
			names = append(names, name)
			slices.Sort(names)
		}
		d.set(kind, names)
		return d, nil
	})
	return err
}

func (a *Admin) categoryExists(name string) bool {
	for _, cmd := range a.registry.Commands() {
		if strings.EqualFold(cmd.Category, name) {
			return true
		}
	}
	return false
}
