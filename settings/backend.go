package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Backend persists raw JSON values, one record per Key. Save must replace
// the record atomically.
type Backend interface {
	Load(ctx context.Context, k Key) ([]byte, bool, error)
	Save(ctx context.Context, k Key, value []byte) error
	List(ctx context.Context, namespace string, guildID int64) (map[string][]byte, error)
	Close() error
}

// shared is implemented by backends that other processes can write, such
// as a database botctl also connects to. Stores never cache their values.
type shared interface {
	Shared() bool
}

func isShared(b Backend) bool {
	s, ok := b.(shared)
	return ok && s.Shared()
}

// Options selects and configures a backend for Open.
type Options struct {
	// Driver is one of sqlite, postgres, file or memory.
	Driver string
	// DSN is the database file, connection string or JSON document path.
	DSN     string
	Timeout time.Duration

	// BackupSchedule is a cron expression for rotating backups of the file
	// backend. Empty disables backups.
	BackupSchedule string
	BackupCount    int

	Logger *slog.Logger
}

// Open opens the configured backend, applies schema migrations where the
// backend has a schema, and returns a ready Store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(opts.Driver) {
	case "", "sqlite", "sqlite3":
		backend, err = OpenSQLite(ctx, opts.DSN)
	case "postgres", "postgresql":
		backend, err = OpenPostgres(ctx, opts.DSN)
	case "file", "json":
		backend, err = OpenFile(opts.DSN, FileOptions{
			BackupSchedule: opts.BackupSchedule,
			BackupCount:    opts.BackupCount,
			Logger:         logger,
		})
	case "memory":
		backend = NewMemory()
	default:
		return nil, fmt.Errorf("settings: unknown driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s backend: %w", ErrStorageUnavailable, opts.Driver, err)
	}

	logger.Info("settings store opened", "driver", opts.Driver)
	return New(backend, opts.Timeout, logger), nil
}
