package extensions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Manifest maps short extension names to qualified paths. It is read from
// a YAML file of the form:
//
//	extensions:
//	  roles: extensions/roles
type Manifest struct {
	Extensions map[string]string `yaml:"extensions"`
}

// LoadManifest reads a manifest file. A missing file yields an empty
// manifest.
func LoadManifest(file string) (Manifest, error) {
	var m Manifest
	if file == "" {
		return m, nil
	}
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse manifest %s: %w", file, err)
	}
	return m, nil
}

// Resolver turns short extension names into qualified paths. The manifest
// is consulted first; names it does not list are searched for in the
// source trees under the configured roots, in any directory whose name
// contains "extension", either as <name>.go or as a <name>/ package.
type Resolver struct {
	roots        []string
	manifestFile string
	log          *slog.Logger

	mu       sync.RWMutex
	manifest Manifest
	cache    map[string][]string
}

// NewResolver reads the manifest and returns a Resolver over roots.
func NewResolver(roots []string, manifestFile string, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := LoadManifest(manifestFile)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		roots:        slices.Clone(roots),
		manifestFile: manifestFile,
		log:          logger.With("component", "resolver"),
		manifest:     m,
		cache:        make(map[string][]string),
	}, nil
}

// Resolve returns the qualified path for name. A name that already
// contains a slash is taken as qualified and returned cleaned.
func (r *Resolver) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrNotFound)
	}
	if strings.Contains(name, "/") {
		clean := path.Clean(name)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return clean, nil
	}

	r.mu.RLock()
	qualified, ok := r.manifest.Extensions[name]
	r.mu.RUnlock()
	if ok {
		return qualified, nil
	}

	candidates, err := r.candidates(name)
	if err != nil {
		return "", err
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %s", ErrAmbiguousName, name, strings.Join(candidates, ", "))
	}
}

func (r *Resolver) candidates(name string) ([]string, error) {
	r.mu.RLock()
	cached, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	all, err := r.scan()
	if err != nil {
		return nil, err
	}
	found := all[name]

	r.mu.Lock()
	r.cache[name] = found
	r.mu.Unlock()
	return found, nil
}

// Discover returns every extension found in the source trees, keyed by
// short name. Manifest entries are included.
func (r *Resolver) Discover() (map[string][]string, error) {
	all, err := r.scan()
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	for name, p := range r.manifest.Extensions {
		if !slices.Contains(all[name], p) {
			all[name] = append(all[name], p)
			slices.Sort(all[name])
		}
	}
	r.mu.RUnlock()
	return all, nil
}

// scan walks every root and collects candidates by short name. Results
// are sorted so resolution does not depend on directory order.
func (r *Resolver) scan() (map[string][]string, error) {
	found := make(map[string][]string)
	add := func(name, qualified string) {
		if !slices.Contains(found[name], qualified) {
			found[name] = append(found[name], qualified)
		}
	}

	for _, root := range r.roots {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == root {
					return err
				}
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if p != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			if !strings.Contains(d.Name(), "extension") {
				return nil
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			entries, err := os.ReadDir(p)
			if err != nil {
				return nil
			}
			for _, e := range entries {
				switch {
				case e.IsDir() && !skipDir(e.Name()) && hasGoFiles(filepath.Join(p, e.Name())):
					add(e.Name(), path.Join(rel, e.Name()))
				case !e.IsDir() && isSourceFile(e.Name()):
					n := strings.TrimSuffix(e.Name(), ".go")
					add(n, path.Join(rel, n))
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
	}

	for name := range found {
		slices.Sort(found[name])
	}
	return found, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" || name == "vendor"
}

func isSourceFile(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
}

func hasGoFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && isSourceFile(e.Name()) {
			return true
		}
	}
	return false
}

// Invalidate drops cached search results and re-reads the manifest.
func (r *Resolver) Invalidate() error {
	m, err := LoadManifest(r.manifestFile)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string][]string)
	if err != nil {
		return err
	}
	r.manifest = m
	return nil
}

// Watch invalidates the resolver whenever the source trees or the manifest
// change. It blocks until ctx is done.
func (r *Resolver) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range r.roots {
		r.watchTree(watcher, root)
	}
	if r.manifestFile != "" {
		if err := watcher.Add(filepath.Dir(r.manifestFile)); err != nil {
			r.log.Warn("watch manifest directory", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					r.watchTree(watcher, event.Name)
				}
			}
			if err := r.Invalidate(); err != nil {
				r.log.Warn("reload manifest", "error", err)
			}
			r.log.Debug("extension tree changed", "path", event.Name, "op", event.Op.String())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Warn("watcher error", "error", err)
		}
	}
}

func (r *Resolver) watchTree(w *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			r.log.Debug("watch directory", "path", p, "error", err)
		}
		return nil
	})
}
