package extensions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"GuildBot/commands"
	"GuildBot/settings"
)

var (
	ErrAlreadyLoaded = errors.New("extension already loaded")
	ErrNotLoaded     = errors.New("extension not loaded")
	ErrNotFound      = errors.New("extension not found")
	ErrAmbiguousName = errors.New("extension name is ambiguous")
)

// State is the lifecycle state of one extension path.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateUnloading
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateUnloading:
		return "unloading"
	default:
		return "unloaded"
	}
}

// LoadError is returned when an extension fails to initialise or its
// Setup fails. Stack is where the failure surfaced: the panicking frame
// for panics, the manager's call into the extension otherwise.
type LoadError struct {
	Path  string
	Err   error
	Stack []byte
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Config wires a Manager to the rest of the bot.
type Config struct {
	Catalog  *Catalog
	Commands *commands.Registry
	Settings *settings.Store
	Resolver *Resolver
	Logger   *slog.Logger
}

type loadedExtension struct {
	ext      Extension
	host     *Host
	loadedAt time.Time
}

// Manager owns the lifecycle of extensions. Transitions of one path are
// serialised; different paths load and unload concurrently.
type Manager struct {
	catalog  *Catalog
	commands *commands.Registry
	settings *settings.Store
	resolver *Resolver
	log      *slog.Logger

	mu     sync.Mutex
	states map[string]State
	loaded map[string]*loadedExtension
	locks  map[string]*pathLock
}

// pathLock serialises transitions of one path. It is dropped once nobody
// holds or waits for it.
type pathLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(cfg Config) *Manager {
	if cfg.Catalog == nil {
		cfg.Catalog = Default
	}
	if cfg.Commands == nil {
		cfg.Commands = commands.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		catalog:  cfg.Catalog,
		commands: cfg.Commands,
		settings: cfg.Settings,
		resolver: cfg.Resolver,
		log:      cfg.Logger.With("component", "extensions"),
		states:   make(map[string]State),
		loaded:   make(map[string]*loadedExtension),
		locks:    make(map[string]*pathLock),
	}
}

func (m *Manager) Catalog() *Catalog { return m.catalog }

func (m *Manager) Commands() *commands.Registry { return m.commands }

func (m *Manager) Resolver() *Resolver { return m.resolver }

// Load instantiates the extension at path and runs its Setup. If anything
// fails the extension is torn down and stays unloaded.
func (m *Manager) Load(ctx context.Context, path string) error {
	unlock := m.lockPath(path)
	defer unlock()
	return m.load(ctx, path)
}

// Unload tears the extension down. Teardown failures are logged, never
// returned: the extension always ends up unloaded.
func (m *Manager) Unload(ctx context.Context, path string) error {
	unlock := m.lockPath(path)
	defer unlock()
	return m.unload(ctx, path)
}

// Reload unloads then loads path. If the load half fails the extension is
// left unloaded and the load error is returned.
func (m *Manager) Reload(ctx context.Context, path string) error {
	unlock := m.lockPath(path)
	defer unlock()
	if err := m.unload(ctx, path); err != nil {
		return err
	}
	return m.load(ctx, path)
}

// State returns the current state of path.
func (m *Manager) State(path string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[path]
}

// Status describes one extension that is not unloaded.
type Status struct {
	Path     string
	State    State
	Commands []string
	LoadedAt time.Time
}

// Loaded lists extensions that are loaded or in transition, sorted by path.
func (m *Manager) Loaded() []Status {
	m.mu.Lock()
	out := make([]Status, 0, len(m.states))
	for path, state := range m.states {
		st := Status{Path: path, State: state}
		if le, ok := m.loaded[path]; ok {
			st.LoadedAt = le.loadedAt
		}
		out = append(out, st)
	}
	m.mu.Unlock()

	for i := range out {
		out[i].Commands = m.commands.OwnedBy(out[i].Path)
	}
	slices.SortFunc(out, func(a, b Status) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// UnloadAll unloads every loaded extension in reverse path order.
func (m *Manager) UnloadAll(ctx context.Context) {
	loaded := m.Loaded()
	slices.Reverse(loaded)
	for _, st := range loaded {
		if st.State != StateLoaded {
			continue
		}
		if err := m.Unload(ctx, st.Path); err != nil && !errors.Is(err, ErrNotLoaded) {
			m.log.Warn("unload on shutdown", "path", st.Path, "error", err)
		}
	}
}

func (m *Manager) lockPath(path string) func() {
	m.mu.Lock()
	l, ok := m.locks[path]
	if !ok {
		l = &pathLock{}
		m.locks[path] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, path)
		}
		m.mu.Unlock()
	}
}

// lockCount is the number of paths with a live transition lock.
func (m *Manager) lockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *Manager) setState(path string, s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == StateUnloaded {
		delete(m.states, path)
		delete(m.loaded, path)
		return
	}
	m.states[path] = s
}

// load runs with the path lock held.
func (m *Manager) load(ctx context.Context, path string) error {
	if m.State(path) == StateLoaded {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, path)
	}
	info, ok := m.catalog.Lookup(path)
	if !ok {
		return fmt.Errorf("%w: %s is not compiled in", ErrNotFound, path)
	}

	m.setState(path, StateLoading)
	start := time.Now()

	host := newHost(path, m)
	ext, err := m.setup(ctx, info, host)
	if err != nil {
		m.log.Warn("extension failed to load", "path", path, "error", err)
		m.teardown(ctx, ext, host)
		m.setState(path, StateUnloaded)
		return err
	}

	m.mu.Lock()
	m.loaded[path] = &loadedExtension{ext: ext, host: host, loadedAt: time.Now()}
	m.states[path] = StateLoaded
	m.mu.Unlock()

	m.log.Info("extension loaded", "path", path, "took", time.Since(start))
	return nil
}

// setup instantiates the extension and runs its Setup, turning panics into
// a *LoadError carrying the stack.
func (m *Manager) setup(ctx context.Context, info Info, host *Host) (ext Extension, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &LoadError{Path: info.Path, Err: fmt.Errorf("panic: %v", r), Stack: debug.Stack()}
		}
	}()

	if info.Factory == nil {
		return nil, &LoadError{Path: info.Path, Err: errors.New("no factory registered"), Stack: debug.Stack()}
	}
	ext, err = info.Factory()
	if err != nil {
		return nil, &LoadError{Path: info.Path, Err: err, Stack: debug.Stack()}
	}
	if err := ext.Setup(ctx, host); err != nil {
		return ext, &LoadError{Path: info.Path, Err: err, Stack: debug.Stack()}
	}
	return ext, nil
}

// unload runs with the path lock held.
func (m *Manager) unload(ctx context.Context, path string) error {
	m.mu.Lock()
	le, ok := m.loaded[path]
	if ok {
		m.states[path] = StateUnloading
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, path)
	}

	m.teardown(ctx, le.ext, le.host)
	m.setState(path, StateUnloaded)
	m.log.Info("extension unloaded", "path", path)
	return nil
}

// teardown runs the extension's own Teardown, if any, then releases what
// the host recorded. It never fails: errors and panics are logged.
func (m *Manager) teardown(ctx context.Context, ext Extension, host *Host) {
	ctx = context.WithoutCancel(ctx)

	if td, ok := ext.(Teardowner); ok {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("extension teardown panicked", "path", host.path, "panic", r, "stack", string(debug.Stack()))
				}
			}()
			if err := td.Teardown(ctx, host); err != nil {
				m.log.Error("extension teardown failed", "path", host.path, "error", err)
			}
		}()
	}
	host.release()
}
