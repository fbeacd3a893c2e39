// Package owner holds the bot owner's maintenance commands: extension
// lifecycle control and a few diagnostics. All of them are owner-only and
// work only in direct messages.
package owner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/runenames"

	"GuildBot/commands"
	"GuildBot/extensions"
)

const Path = "extensions/owner"

func init() {
	extensions.Register(extensions.Info{
		Path:        Path,
		Name:        "Owner",
		Description: "Bot owner commands",
		Factory:     func() (extensions.Extension, error) { return &Owner{}, nil },
	})
}

type Owner struct {
	manager  *extensions.Manager
	resolver *extensions.Resolver
}

func (o *Owner) Setup(_ context.Context, h *extensions.Host) error {
	o.manager = h.Manager()
	o.resolver = h.Resolver()

	checks := []commands.Check{commands.OwnerOnly(), commands.DMOnly()}
	return h.AddCommand(
		&commands.Command{
			Name:        "eload",
			Description: "Load an extension (e.g. 'owner').",
			Usage:       "<extension>",
			Category:    "Owner",
			Hidden:      true,
			Checks:      checks,
			Handler:     o.lifecycle(o.manager.Load),
		},
		&commands.Command{
			Name:        "eunload",
			Description: "Unload an extension (e.g. 'owner').",
			Usage:       "<extension>",
			Category:    "Owner",
			Hidden:      true,
			Checks:      checks,
			Handler:     o.lifecycle(o.manager.Unload),
		},
		&commands.Command{
			Name:        "ereload",
			Description: "Reload an extension (e.g. 'owner').",
			Usage:       "<extension>",
			Category:    "Owner",
			Hidden:      true,
			Checks:      checks,
			Handler:     o.lifecycle(o.manager.Reload),
		},
		&commands.Command{
			Name:        "extensions",
			Description: "List loaded extensions.",
			Category:    "Owner",
			Hidden:      true,
			Checks:      checks,
			Handler:     o.list,
		},
		&commands.Command{
			Name:        "emojiname",
			Description: "Print the Unicode string for a given emoji.",
			Usage:       "<emojis>",
			Category:    "Owner",
			Hidden:      true,
			Checks:      checks,
			Handler:     emojiName,
		},
	)
}

type transition func(ctx context.Context, path string) error

// lifecycle resolves the extension name and applies op to it. Lifecycle
// failures are reported to the owner as error pages.
func (o *Owner) lifecycle(op transition) commands.HandlerFunc {
	return func(ctx context.Context, c *commands.Context) error {
		name := strings.TrimSpace(c.Args)
		if name == "" {
			return commands.BadArgument("missing extension name")
		}

		path, err := o.resolve(name)
		if err != nil {
			return report(ctx, c, name, err)
		}
		if err := op(ctx, path); err != nil {
			return report(ctx, c, path, err)
		}
		return c.Send(ctx, "**`SUCCESS`**")
	}
}

// report pages err to the owner and marks it handled.
func report(ctx context.Context, c *commands.Context, extension string, err error) error {
	c.Logger().Info("extension command failed", "extension", extension, "error", err)
	if sendErr := c.SendPages(ctx, ErrorPages(err)); sendErr != nil {
		return sendErr
	}
	return commands.Handled(err)
}

func (o *Owner) resolve(name string) (string, error) {
	if o.resolver == nil {
		return name, nil
	}
	return o.resolver.Resolve(name)
}

func (o *Owner) list(ctx context.Context, c *commands.Context) error {
	loaded := o.manager.Loaded()
	if len(loaded) == 0 {
		return c.Send(ctx, "No extensions are loaded.")
	}
	p := commands.NewPaginator("```", "```")
	for _, st := range loaded {
		line := fmt.Sprintf("%-24s %-9s %s", st.Path, st.State, strings.Join(st.Commands, ", "))
		if !st.LoadedAt.IsZero() {
			line += fmt.Sprintf(" (since %s)", st.LoadedAt.UTC().Format(time.RFC3339))
		}
		p.AddLine(line)
	}
	return c.SendPages(ctx, p.Pages())
}

// ErrorPages renders err for the owner: a bold header naming the error
// followed by its cause chain and, for load failures, the stack, in code
// blocks.
func ErrorPages(err error) []string {
	header := err.Error()
	if len(header) > 200 {
		cut := 197
		for cut > 0 && !utf8.RuneStart(header[cut]) {
			cut--
		}
		header = header[:cut] + "..."
	}
	p := commands.NewPaginator(fmt.Sprintf("**`ERROR:`** %s - %s\n```", errorName(err), header), "```")

	for e := err; e != nil; e = errors.Unwrap(e) {
		p.AddLine(fmt.Sprintf("%T: %v", e, e))
	}
	var loadErr *extensions.LoadError
	if errors.As(err, &loadErr) && len(loadErr.Stack) > 0 {
		p.AddLine("")
		p.AddText(strings.TrimRight(string(loadErr.Stack), "\n"))
	}
	return p.Pages()
}

func errorName(err error) string {
	var loadErr *extensions.LoadError
	switch {
	case errors.Is(err, extensions.ErrAlreadyLoaded):
		return "ExtensionAlreadyLoaded"
	case errors.Is(err, extensions.ErrNotLoaded):
		return "ExtensionNotLoaded"
	case errors.Is(err, extensions.ErrAmbiguousName):
		return "AmbiguousName"
	case errors.Is(err, extensions.ErrNotFound):
		return "ExtensionNotFound"
	case errors.As(err, &loadErr):
		return "ExtensionFailed"
	}
	return fmt.Sprintf("%T", err)
}

func emojiName(ctx context.Context, c *commands.Context) error {
	if strings.TrimSpace(c.Args) == "" {
		return commands.BadArgument("missing emoji")
	}
	return c.Send(ctx, NameReplace(c.Args))
}

// NameReplace returns s with every non-ASCII rune replaced by its Unicode
// name, as \N{NAME}. Runes without a name are written as \UXXXXXXXX.
func NameReplace(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
			continue
		}
		if name := runenames.Name(r); name != "" && !strings.HasPrefix(name, "<") {
			fmt.Fprintf(&b, `\N{%s}`, name)
			continue
		}
		fmt.Fprintf(&b, `\U%08x`, r)
	}
	return b.String()
}
