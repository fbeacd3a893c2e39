package commands

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrCommandExists is returned when a command name or alias is already
// taken by another command.
var ErrCommandExists = errors.New("command already registered")

type globalCheck struct {
	owner string
	name  string
	check Check
}

// Registry is the explicit command table. Every command and global check
// is owned by the extension that added it, so an extension's entries can
// be removed as a unit.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command // name -> command
	aliases  map[string]string   // alias -> name
	checks   []globalCheck
}

func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
	}
}

// Add registers cmd on behalf of owner. Nothing is registered if any of its
// names collides with an existing command.
func (r *Registry) Add(owner string, cmd *Command) error {
	if cmd.Name == "" || cmd.Handler == nil {
		return fmt.Errorf("command %q: name and handler are required", cmd.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names := cmd.Names()
	for _, n := range names {
		if _, ok := r.commands[n]; ok {
			return fmt.Errorf("%w: %s", ErrCommandExists, n)
		}
		if _, ok := r.aliases[n]; ok {
			return fmt.Errorf("%w: %s", ErrCommandExists, n)
		}
	}

	cmd.Owner = owner
	r.commands[names[0]] = cmd
	for _, alias := range names[1:] {
		r.aliases[alias] = names[0]
	}
	return nil
}

// AddCheck registers a check that runs before every command.
func (r *Registry) AddCheck(owner, name string, check Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, globalCheck{owner: owner, name: name, check: check})
}

// RemoveOwner drops every command and check registered by owner and
// returns the names of the removed commands.
func (r *Registry) RemoveOwner(owner string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for name, cmd := range r.commands {
		if cmd.Owner != owner {
			continue
		}
		delete(r.commands, name)
		removed = append(removed, name)
	}
	for alias, name := range r.aliases {
		if _, ok := r.commands[name]; !ok {
			delete(r.aliases, alias)
		}
	}
	r.checks = slices.DeleteFunc(r.checks, func(c globalCheck) bool { return c.owner == owner })

	slices.Sort(removed)
	return removed
}

// Lookup resolves a command by name or alias, case-insensitively.
func (r *Registry) Lookup(name string) (*Command, bool) {
	name = strings.ToLower(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return cmd, true
	}
	if actual, ok := r.aliases[name]; ok {
		cmd, ok := r.commands[actual]
		return cmd, ok
	}
	return nil, false
}

// Commands returns all commands sorted by category, then name.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	out := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Command) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// OwnedBy returns the names of commands registered by owner, sorted.
func (r *Registry) OwnedBy(owner string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, cmd := range r.commands {
		if cmd.Owner == owner {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (r *Registry) globalChecks() []Check {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Check, len(r.checks))
	for i, c := range r.checks {
		out[i] = c.check
	}
	return out
}
