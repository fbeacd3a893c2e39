package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

var (
	guildPrefixes  = []string{"! ", "!", ". ", "."}
	directPrefixes = []string{"? ", "?"}
)

// Prefixes returns the prefixes accepted for msg, longest match first.
// Guild messages may also address the bot by mention; direct messages
// additionally accept "?".
func Prefixes(msg Message) []string {
	if msg.GuildID == 0 {
		out := append([]string(nil), guildPrefixes...)
		return append(out, directPrefixes...)
	}
	var out []string
	if msg.BotID != 0 {
		id := strconv.FormatInt(msg.BotID, 10)
		out = append(out, "<@"+id+"> ", "<@!"+id+"> ", "<@"+id+">", "<@!"+id+">")
	}
	return append(out, guildPrefixes...)
}

// Dispatcher turns inbound messages into command invocations and reports
// failures to the user.
type Dispatcher struct {
	registry    *Registry
	platform    Platform
	responseTTL time.Duration
	log         *slog.Logger
}

// NewDispatcher returns a Dispatcher. Guild responses and the invoking
// messages of failed commands are deleted after responseTTL; zero keeps
// them.
func NewDispatcher(registry *Registry, platform Platform, responseTTL time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:    registry,
		platform:    platform,
		responseTTL: responseTTL,
		log:         logger.With("component", "dispatcher"),
	}
}

// Dispatch handles one message. Messages without a known prefix are
// ignored. The returned error has already been reported to the user and is
// only useful to callers that want to inspect the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	prefix, ok := matchPrefix(msg)
	if !ok {
		return nil
	}
	rest := strings.TrimSpace(msg.Content[len(prefix):])
	name, args := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		name, args = rest[:i], rest[i:]
	}
	if name == "" {
		return nil
	}

	c := &Context{
		Message:      msg,
		Prefix:       prefix,
		Invoked:      strings.ToLower(name),
		Args:         strings.TrimSpace(args),
		InvocationID: uuid.NewString(),
		platform:     d.platform,
		responseTTL:  d.responseTTL,
	}
	c.log = d.log.With("invocation", c.InvocationID, "command", c.Invoked, "guild", msg.GuildID, "user", msg.Author.ID)

	cmd, ok := d.registry.Lookup(name)
	if !ok {
		d.HandleError(ctx, c, ErrCommandNotFound)
		return ErrCommandNotFound
	}
	c.Command = cmd

	if err := d.invoke(ctx, c); err != nil {
		d.HandleError(ctx, c, err)
		return err
	}
	return nil
}

func matchPrefix(msg Message) (string, bool) {
	for _, p := range Prefixes(msg) {
		if strings.HasPrefix(msg.Content, p) {
			return p, true
		}
	}
	return "", false
}

func (d *Dispatcher) invoke(ctx context.Context, c *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in command %s: %v\n%s", c.Command.Name, r, debug.Stack())
		}
	}()

	for _, check := range d.registry.globalChecks() {
		if err := check(ctx, c); err != nil {
			return err
		}
	}
	if err := c.Command.runChecks(ctx, c); err != nil {
		return err
	}
	return c.Command.Handler(ctx, c)
}

// HandleError reports err to the invoking user. In guilds the invoking
// message is removed after the response TTL.
func (d *Dispatcher) HandleError(ctx context.Context, c *Context, err error) {
	var (
		inputErr *UserInputError
		userErr  *UserError
		reply    string
	)
	name := c.Invoked
	if c.Command != nil {
		name = c.Command.Name
	}

	switch {
	case IsHandled(err):
		c.log.Info("command error handled", "error", err)
	case errors.Is(err, ErrCommandNotFound):
		c.log.Info("unknown command")
		reply = fmt.Sprintf("That doesn't look like anything to me. [see `%shelp`]", c.Prefix)
	case errors.As(err, &inputErr):
		c.log.Info("bad command input", "error", err)
		reply = fmt.Sprintf("That argument doesn't look like anything to me. [see `%shelp %s`]", c.Prefix, name)
	case errors.Is(err, ErrCommandDisabled):
		reply = fmt.Sprintf("%s has been disabled.", name)
	case errors.Is(err, ErrNoPrivateMessage):
		if dmErr := c.SendDirect(ctx, fmt.Sprintf("%s cannot be used in Private Messages.", name)); dmErr != nil {
			c.log.Info("could not notify author", "error", dmErr)
		}
	case errors.Is(err, ErrCheckFailure):
		c.log.Info("command check failed", "error", err)
		reply = "You're off your loop, and that's not allowed."
	case errors.As(err, &userErr):
		reply = userErr.Message
	default:
		c.log.Warn("command failed", "error", err)
		reply = "Something went wrong, and I'm beginning to question the nature of my reality."
	}

	if reply != "" {
		if sendErr := c.Send(ctx, reply); sendErr != nil {
			c.log.Warn("could not send error reply", "error", sendErr)
		}
	}
	c.DeleteInvocation(d.responseTTL)
}
