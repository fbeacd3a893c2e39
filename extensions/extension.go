// Package extensions loads, unloads and reloads the bot's command modules
// and resolves their short names to qualified paths.
package extensions

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Extension is a loadable module. Setup registers its commands and
// settings namespaces through the Host; everything registered that way is
// released automatically on unload.
type Extension interface {
	Setup(ctx context.Context, h *Host) error
}

// Teardowner is implemented by extensions that hold resources the Host
// does not track. Teardown runs on unload and after a failed Setup.
type Teardowner interface {
	Teardown(ctx context.Context, h *Host) error
}

// Factory creates a fresh instance of an extension for each load.
type Factory func() (Extension, error)

// Info describes a compiled-in extension.
type Info struct {
	// Path is the qualified path, e.g. "extensions/roles".
	Path        string  `json:"path"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Factory     Factory `json:"-"`
}

// Catalog holds the extensions compiled into the binary, keyed by path.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Info
}

func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]Info)}
}

// Register adds or replaces an extension.
func (c *Catalog) Register(info Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[info.Path] = info
}

// Lookup returns the extension registered under path.
func (c *Catalog) Lookup(path string) (Info, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.entries[path]
	return info, ok
}

// All returns every registered extension sorted by path.
func (c *Catalog) All() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Info, 0, len(c.entries))
	for _, info := range c.entries {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Default is the catalog extension packages register into from init.
var Default = NewCatalog()

// Register adds an extension to the Default catalog.
func Register(info Info) {
	Default.Register(info)
}
