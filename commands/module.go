package commands

import (
	"context"
	"strings"
)

// HandlerFunc runs a command. Returning an error hands it to the
// dispatcher's error handler, which decides what the user sees.
type HandlerFunc func(ctx context.Context, c *Context) error

// Check runs before a command's handler. A non-nil error aborts the
// invocation.
type Check func(ctx context.Context, c *Context) error

// Command is one entry of the command table.
type Command struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases"`
	Description string   `json:"description"`
	Usage       string   `json:"usage"`
	Category    string   `json:"category"`
	// Hidden commands are left out of help listings.
	Hidden bool `json:"hidden"`

	Checks  []Check     `json:"-"`
	Handler HandlerFunc `json:"-"`

	// Owner is the qualified path of the extension that registered the
	// command. Set by the registry.
	Owner string `json:"owner"`
}

// Names returns the command name followed by its aliases, lower-cased.
func (c *Command) Names() []string {
	names := make([]string, 0, 1+len(c.Aliases))
	names = append(names, strings.ToLower(c.Name))
	for _, a := range c.Aliases {
		names = append(names, strings.ToLower(a))
	}
	return names
}

// Signature is the usage line shown in help, e.g. "role [key|list]".
func (c *Command) Signature() string {
	if c.Usage == "" {
		return c.Name
	}
	return c.Name + " " + c.Usage
}

func (c *Command) runChecks(ctx context.Context, ic *Context) error {
	for _, check := range c.Checks {
		if err := check(ctx, ic); err != nil {
			return err
		}
	}
	return nil
}
