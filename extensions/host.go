package extensions

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"GuildBot/commands"
	"GuildBot/settings"
)

// Host is an extension's handle on the bot while it is loaded. It records
// what the extension registers so that unloading can undo all of it, even
// after a Setup that failed half way.
type Host struct {
	path    string
	manager *Manager
	log     *slog.Logger

	mu         sync.Mutex
	namespaces []string
}

func newHost(path string, m *Manager) *Host {
	return &Host{
		path:    path,
		manager: m,
		log:     m.log.With("extension", path),
	}
}

// Path is the qualified path the extension was loaded under.
func (h *Host) Path() string { return h.path }

func (h *Host) Logger() *slog.Logger { return h.log }

func (h *Host) Settings() *settings.Store { return h.manager.settings }

func (h *Host) Manager() *Manager { return h.manager }

func (h *Host) Resolver() *Resolver { return h.manager.resolver }

func (h *Host) Commands() *commands.Registry { return h.manager.commands }

// AddCommand registers commands owned by this extension. Registration
// stops at the first failure; commands added before it stay registered
// until the extension is released.
func (h *Host) AddCommand(cmds ...*commands.Command) error {
	for _, cmd := range cmds {
		if err := h.manager.commands.Add(h.path, cmd); err != nil {
			return fmt.Errorf("register command %s: %w", cmd.Name, err)
		}
	}
	return nil
}

// AddCheck registers a check that runs before every command while this
// extension is loaded.
func (h *Host) AddCheck(name string, check commands.Check) {
	h.manager.commands.AddCheck(h.path, name, check)
}

// UseNamespace sets up a settings namespace for the lifetime of the
// extension.
func (h *Host) UseNamespace(namespace string) error {
	if h.manager.settings == nil {
		return errors.New("no settings store configured")
	}
	if err := h.manager.settings.Setup(namespace); err != nil {
		return err
	}
	h.mu.Lock()
	h.namespaces = append(h.namespaces, namespace)
	h.mu.Unlock()
	return nil
}

// release removes the extension's commands and checks and tears down its
// namespaces in reverse order of setup.
func (h *Host) release() {
	if removed := h.manager.commands.RemoveOwner(h.path); len(removed) > 0 {
		h.log.Debug("commands removed", "commands", removed)
	}

	h.mu.Lock()
	namespaces := slices.Clone(h.namespaces)
	h.namespaces = nil
	h.mu.Unlock()

	slices.Reverse(namespaces)
	for _, ns := range namespaces {
		h.manager.settings.Teardown(ns)
	}
}
