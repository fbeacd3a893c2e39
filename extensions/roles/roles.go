// Package roles lets members toggle self-assignable roles that moderators
// publish per guild.
package roles

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"GuildBot/commands"
	"GuildBot/extensions"
	"GuildBot/settings"
)

const (
	// Path is the qualified extension path.
	Path = "extensions/roles"
	// Namespace is the settings namespace of this extension.
	Namespace = "roles"
	// PublicRolesKey stores the guild's map of key -> Entry.
	PublicRolesKey = "public_roles"

	// CommandDeleteDelay is how long invoking messages stay in the channel.
	CommandDeleteDelay = 10 * time.Second
)

var (
	ErrRoleNotFound      = errors.New("role not found")
	ErrRoleNotRegistered = errors.New("role not registered")
)

// Entry is one self-assignable role.
type Entry struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PublicRoles maps the operator-chosen key to its role.
type PublicRoles map[string]Entry

// Sorted returns the keys in order.
func (p PublicRoles) Sorted() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// byID returns the key of the entry for roleID.
func (p PublicRoles) byID(roleID int64) (string, bool) {
	for _, k := range p.Sorted() {
		if p[k].ID == roleID {
			return k, true
		}
	}
	return "", false
}

func init() {
	extensions.Register(extensions.Info{
		Path:        Path,
		Name:        "Server Roles",
		Description: "Self-assignable roles",
		Factory:     func() (extensions.Extension, error) { return New(), nil },
	})
}

// Roles is the role registry extension.
type Roles struct {
	store *settings.Store
}

func New() *Roles { return &Roles{} }

func (r *Roles) Setup(_ context.Context, h *extensions.Host) error {
	if err := h.UseNamespace(Namespace); err != nil {
		return err
	}
	r.store = h.Settings()

	return h.AddCommand(
		&commands.Command{
			Name:        "role",
			Aliases:     []string{"roles"},
			Description: "Self-assign a role",
			Usage:       "<role> | <role-key>",
			Category:    "Server Roles",
			Checks:      []commands.Check{commands.GuildOnly()},
			Handler:     r.role,
		},
		&commands.Command{
			Name:        "addpublicrole",
			Description: "Add a public role",
			Usage:       "<role> <key> <description>",
			Category:    "Server Roles",
			Checks:      []commands.Check{commands.GuildOnly(), commands.RequirePermissions(discordgo.PermissionManageRoles)},
			Handler:     r.addPublicRole,
		},
		&commands.Command{
			Name:        "removepublicrole",
			Description: "Remove a public role",
			Usage:       "<role>",
			Category:    "Server Roles",
			Checks:      []commands.Check{commands.GuildOnly(), commands.RequirePermissions(discordgo.PermissionManageRoles)},
			Handler:     r.removePublicRole,
		},
	)
}

func key(guildID int64) settings.Key {
	return settings.Key{Namespace: Namespace, GuildID: guildID, Name: PublicRolesKey}
}

// PublicRoles returns the guild's self-assignable roles.
func (r *Roles) PublicRoles(ctx context.Context, guildID int64) (PublicRoles, error) {
	return settings.Get(ctx, r.store, key(guildID), PublicRoles{})
}

func (r *Roles) role(ctx context.Context, c *commands.Context) error {
	c.DeleteInvocation(CommandDeleteDelay)

	arg := strings.TrimSpace(c.Args)
	if arg == "" || strings.EqualFold(arg, "list") {
		text, err := r.Listing(ctx, c.GuildID)
		if err != nil {
			return err
		}
		return c.Send(ctx, text)
	}

	added, entry, err := r.Toggle(ctx, c, arg)
	if err != nil {
		return err
	}
	verb := "removed from"
	if added {
		verb = "added to"
	}
	return c.Send(ctx, fmt.Sprintf("%s, you have been %s **%s**.", c.Author.Name, verb, entry.Name))
}

// Listing renders the guild's roles, one "`key`: name -- description" line
// each, sorted by key.
func (r *Roles) Listing(ctx context.Context, guildID int64) (string, error) {
	roles, err := r.PublicRoles(ctx, guildID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("I'm aware of the following roles:\n\n")
	for _, k := range roles.Sorted() {
		e := roles[k]
		fmt.Fprintf(&b, "`%s`: %s -- %s\n", k, e.Name, e.Description)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Toggle gives the invoking member the role named by arg, or takes it away
// if they already hold it. arg is a role reference (mention, id or exact
// name) or a registry key. It reports whether the role was added.
func (r *Roles) Toggle(ctx context.Context, c *commands.Context, arg string) (bool, Entry, error) {
	roles, err := r.PublicRoles(ctx, c.GuildID)
	if err != nil {
		return false, Entry{}, err
	}
	name := "role"
	if c.Command != nil {
		name = c.Command.Name
	}
	notFound := commands.Reply(ErrRoleNotFound, fmt.Sprintf(
		"I can't find that role. Try `%s%s list` for a list of self-assignable roles.", c.Prefix, name))

	k, ok := "", false
	if ref, err := c.Platform().FindRole(ctx, c.GuildID, arg); err == nil {
		k, ok = roles.byID(ref.ID)
	}
	if !ok {
		k = strings.ToLower(arg)
		_, ok = roles[k]
	}
	if !ok {
		return false, Entry{}, notFound
	}
	entry := roles[k]

	// the stored entry may point at a role that was deleted since
	if _, err := c.Platform().Role(ctx, c.GuildID, entry.ID); err != nil {
		if errors.Is(err, commands.ErrUnknownRole) {
			return false, entry, notFound
		}
		return false, entry, err
	}

	held, err := c.Platform().MemberRoles(ctx, c.GuildID, c.Author.ID)
	if err != nil {
		return false, entry, err
	}
	if slices.Contains(held, entry.ID) {
		return false, entry, c.Platform().RemoveMemberRole(ctx, c.GuildID, c.Author.ID, entry.ID)
	}
	return true, entry, c.Platform().AddMemberRole(ctx, c.GuildID, c.Author.ID, entry.ID)
}

func (r *Roles) addPublicRole(ctx context.Context, c *commands.Context) error {
	c.DeleteInvocation(CommandDeleteDelay)

	args := commands.SplitN(c.Args, 3)
	if len(args) < 3 {
		return commands.BadArgument("usage: addpublicrole <role> <key> <description>")
	}
	role, err := c.Platform().FindRole(ctx, c.GuildID, args[0])
	if err != nil {
		if errors.Is(err, commands.ErrUnknownRole) {
			return commands.BadArgument("unknown role %q", args[0])
		}
		return err
	}
	if err := r.AddPublicRole(ctx, c.GuildID, role, args[1], args[2]); err != nil {
		return err
	}
	c.Logger().Info("public role added", "role", role.ID, "key", strings.ToLower(args[1]))
	return nil
}

// AddPublicRole registers role under key, replacing any entry with the
// same key. Keys are stored lower-cased.
func (r *Roles) AddPublicRole(ctx context.Context, guildID int64, role commands.Role, k, description string) error {
	k = strings.ToLower(strings.TrimSpace(k))
	if k == "" {
		return commands.BadArgument("empty key")
	}
	_, err := settings.Update(ctx, r.store, key(guildID), PublicRoles{}, func(roles PublicRoles) (PublicRoles, error) {
		if roles == nil {
			roles = PublicRoles{}
		}
		roles[k] = Entry{ID: role.ID, Name: role.Name, Description: description}
		return roles, nil
	})
	return err
}

func (r *Roles) removePublicRole(ctx context.Context, c *commands.Context) error {
	c.DeleteInvocation(CommandDeleteDelay)

	arg := strings.TrimSpace(c.Args)
	if arg == "" {
		return commands.BadArgument("usage: removepublicrole <role>")
	}
	role, err := c.Platform().FindRole(ctx, c.GuildID, arg)
	if err != nil {
		if errors.Is(err, commands.ErrUnknownRole) {
			return commands.BadArgument("unknown role %q", arg)
		}
		return err
	}
	if err := r.RemovePublicRole(ctx, c.GuildID, role); err != nil {
		return err
	}
	c.Logger().Info("public role removed", "role", role.ID)
	return nil
}

// RemovePublicRole drops the entry for role. Nothing is written when the
// role is not registered.
func (r *Roles) RemovePublicRole(ctx context.Context, guildID int64, role commands.Role) error {
	_, err := settings.Update(ctx, r.store, key(guildID), PublicRoles{}, func(roles PublicRoles) (PublicRoles, error) {
		k, ok := roles.byID(role.ID)
		if !ok {
			return nil, commands.Reply(ErrRoleNotRegistered, fmt.Sprintf("%s is not in the list of self-assignable roles.", role.Name))
		}
		delete(roles, k)
		return roles, nil
	})
	return err
}
