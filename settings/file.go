package settings

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// FileOptions configures the JSON file backend.
type FileOptions struct {
	BackupSchedule string
	BackupCount    int
	Logger         *slog.Logger
}

// document is the on-disk layout: namespace -> guild id -> key -> value.
type document map[string]map[string]map[string]json.RawMessage

// File is a Backend that keeps every value in a single JSON document.
// Each Save rewrites the document through a temp file and a rename, so the
// file on disk is always either the old or the new document.
type File struct {
	path string
	opts FileOptions
	log  *slog.Logger

	mu           sync.Mutex
	doc          document
	lastChecksum [sha256.Size]byte

	scheduler *cron.Cron
}

// OpenFile loads path, creating an empty document if it does not exist.
func OpenFile(path string, opts FileOptions) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if opts.BackupCount <= 0 {
		opts.BackupCount = 3
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f := &File{
		path: path,
		opts: opts,
		log:  opts.Logger.With("component", "settings-file", "path", path),
		doc:  make(document),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := f.flush(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &f.doc); err != nil {
			return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
		}
		if f.doc == nil {
			f.doc = make(document)
		}
		if err := f.doc.compact(); err != nil {
			return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
		}
		f.lastChecksum = sha256.Sum256(data)
	}

	if opts.BackupSchedule != "" {
		f.scheduler = cron.New()
		if _, err := f.scheduler.AddFunc(opts.BackupSchedule, func() {
			if err := f.Backup(); err != nil {
				f.log.Warn("settings backup failed", "error", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid backup schedule %q: %w", opts.BackupSchedule, err)
		}
		f.scheduler.Start()
	}
	return f, nil
}

// compact strips the indentation the document was written with so values
// read back are byte-identical to what was saved.
func (d document) compact() error {
	for _, guilds := range d {
		for _, values := range guilds {
			for name, v := range values {
				var buf bytes.Buffer
				if err := json.Compact(&buf, v); err != nil {
					return err
				}
				values[name] = buf.Bytes()
			}
		}
	}
	return nil
}

func (f *File) Load(ctx context.Context, k Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.doc[k.Namespace][guildKey(k.GuildID)][k.Name]
	return v, ok, nil
}

func (f *File) Save(ctx context.Context, k Key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("setting %s is not valid JSON", k)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	guilds, ok := f.doc[k.Namespace]
	if !ok {
		guilds = make(map[string]map[string]json.RawMessage)
		f.doc[k.Namespace] = guilds
	}
	g := guildKey(k.GuildID)
	values, ok := guilds[g]
	if !ok {
		values = make(map[string]json.RawMessage)
		guilds[g] = values
	}
	prev, had := values[k.Name]
	values[k.Name] = append(json.RawMessage(nil), value...)

	if err := f.flush(); err != nil {
		if had {
			values[k.Name] = prev
		} else {
			delete(values, k.Name)
		}
		return err
	}
	return nil
}

func (f *File) List(ctx context.Context, namespace string, guildID int64) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]byte)
	for name, v := range f.doc[namespace][guildKey(guildID)] {
		out[name] = v
	}
	return out, nil
}

// Close stops the backup schedule. Every Save is already on disk.
func (f *File) Close() error {
	if f.scheduler != nil {
		<-f.scheduler.Stop().Done()
	}
	return nil
}

// Backup copies the current document to a timestamped sibling file and
// prunes all but the newest BackupCount copies.
func (f *File) Backup() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read for backup: %w", err)
	}
	name := fmt.Sprintf("%s.backup.%s", f.path, time.Now().UTC().Format("20060102_150405.000000000"))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	f.pruneBackups()
	return nil
}

func (f *File) pruneBackups() {
	matches, err := filepath.Glob(f.path + ".backup.*")
	if err != nil || len(matches) <= f.opts.BackupCount {
		return
	}
	// timestamps sort lexically
	slices.Sort(matches)
	for _, old := range matches[:len(matches)-f.opts.BackupCount] {
		if err := os.Remove(old); err != nil {
			f.log.Warn("remove old backup", "file", old, "error", err)
		}
	}
}

// flush writes the document to disk. The caller holds f.mu.
func (f *File) flush() error {
	data, err := json.MarshalIndent(f.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	sum := sha256.Sum256(data)
	if sum == f.lastChecksum {
		return nil
	}
	if err := writeFileAtomic(f.path, data); err != nil {
		return err
	}
	f.lastChecksum = sum
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}

	written, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read back %s: %w", path, err)
	}
	if !bytes.Equal(written, data) {
		return fmt.Errorf("verify %s: content mismatch", path)
	}
	return nil
}

func guildKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
