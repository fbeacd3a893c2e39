package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrStorageUnavailable is returned when the persistence medium fails or a
// storage operation times out. The underlying cause is wrapped alongside it.
var ErrStorageUnavailable = errors.New("settings storage unavailable")

// DefaultTimeout bounds a single storage operation when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Key identifies one stored value: an extension namespace, a guild and a
// setting name within that namespace.
type Key struct {
	Namespace string
	GuildID   int64
	Name      string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Namespace, k.GuildID, k.Name)
}

// Store is the guild-scoped settings store shared by every extension.
// Values are persisted as JSON and never interpreted by the store.
type Store struct {
	backend Backend
	timeout time.Duration
	log     *slog.Logger
	// noCache is set for backends other processes write to.
	noCache bool

	locks keyLocks

	mu         sync.RWMutex
	namespaces map[string]int
	cache      map[Key][]byte
}

// New wraps an already opened backend.
func New(backend Backend, timeout time.Duration, logger *slog.Logger) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:    backend,
		timeout:    timeout,
		log:        logger.With("component", "settings"),
		noCache:    isShared(backend),
		namespaces: make(map[string]int),
		cache:      make(map[Key][]byte),
	}
}

// Setup registers a namespace with the store. Values of registered
// namespaces are cached in memory after the first read or write, unless the
// backend is shared with other processes. Setup is reference counted: each
// call must be paired with a Teardown.
func (s *Store) Setup(namespace string) error {
	if namespace == "" {
		return errors.New("settings: empty namespace")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces[namespace]++
	if s.namespaces[namespace] == 1 {
		s.log.Debug("namespace registered", "namespace", namespace)
	}
	return nil
}

// Teardown releases one Setup of the namespace. When the last reference is
// released the namespace's cached values are dropped. Tearing down a
// namespace that was never set up does nothing.
func (s *Store) Teardown(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.namespaces[namespace]
	if !ok {
		return
	}
	if n > 1 {
		s.namespaces[namespace] = n - 1
		return
	}
	delete(s.namespaces, namespace)
	for k := range s.cache {
		if k.Namespace == namespace {
			delete(s.cache, k)
		}
	}
	s.log.Debug("namespace released", "namespace", namespace)
}

// Registered reports whether the namespace is currently set up.
func (s *Store) Registered(namespace string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.namespaces[namespace] > 0
}

// Load returns the raw JSON stored under k and whether it exists.
func (s *Store) Load(ctx context.Context, k Key) ([]byte, bool, error) {
	if raw, ok := s.cached(k); ok {
		return raw, true, nil
	}

	unlock := s.locks.lock(k)
	defer unlock()
	return s.load(ctx, k)
}

// load reads through the cache. The caller holds the key lock.
func (s *Store) load(ctx context.Context, k Key) ([]byte, bool, error) {
	if raw, ok := s.cached(k); ok {
		return raw, true, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, ok, err := s.backend.Load(opCtx, k)
	if err != nil {
		return nil, false, unavailable("load", k, err)
	}
	if ok {
		s.remember(k, raw)
	}
	return raw, ok, nil
}

// Set replaces the whole value stored under k.
//
// Writes are not abandoned when ctx is cancelled: a write that has started
// commits, bounded only by the store timeout.
func (s *Store) Set(ctx context.Context, k Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", k, err)
	}

	unlock := s.locks.lock(k)
	defer unlock()
	return s.save(ctx, k, raw)
}

// save writes raw under k. The caller holds the key lock.
func (s *Store) save(ctx context.Context, k Key, raw []byte) error {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.backend.Save(opCtx, k, raw); err != nil {
		return unavailable("save", k, err)
	}
	s.remember(k, raw)
	return nil
}

// List returns every value stored for one guild in a namespace, keyed by
// setting name.
func (s *Store) List(ctx context.Context, namespace string, guildID int64) (map[string][]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	values, err := s.backend.List(opCtx, namespace, guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s/%d: %w", ErrStorageUnavailable, namespace, guildID, err)
	}
	return values, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) cached(k Key) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.cache[k]
	return raw, ok
}

func (s *Store) remember(k Key, raw []byte) {
	if s.noCache {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.namespaces[k.Namespace] > 0 {
		s.cache[k] = raw
	}
}

func unavailable(op string, k Key, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrStorageUnavailable, op, k, err)
}

// Get returns the value stored under k decoded as T, or def when nothing
// is stored. A missing key is never an error.
func Get[T any](ctx context.Context, s *Store, k Key, def T) (T, error) {
	raw, ok, err := s.Load(ctx, k)
	if err != nil || !ok {
		return def, err
	}
	return decode(k, raw, def)
}

// Update performs a read-modify-write of k while holding the key's lock, so
// concurrent updates of the same key never lose each other's changes. fn
// receives the current value (or def) and returns the value to store. If fn
// returns an error nothing is written and the error is returned unchanged.
func Update[T any](ctx context.Context, s *Store, k Key, def T, fn func(T) (T, error)) (T, error) {
	unlock := s.locks.lock(k)
	defer unlock()

	current := def
	raw, ok, err := s.load(ctx, k)
	if err != nil {
		return def, err
	}
	if ok {
		if current, err = decode(k, raw, def); err != nil {
			return def, err
		}
	}

	next, err := fn(current)
	if err != nil {
		return current, err
	}

	raw, err = json.Marshal(next)
	if err != nil {
		return current, fmt.Errorf("encode setting %s: %w", k, err)
	}
	if err := s.save(ctx, k, raw); err != nil {
		return current, err
	}
	return next, nil
}

func decode[T any](k Key, raw []byte, def T) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, fmt.Errorf("decode setting %s: %w", k, err)
	}
	return v, nil
}
