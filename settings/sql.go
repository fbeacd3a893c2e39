package settings

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQL is a Backend over the guild_settings table. It serves both the
// sqlite and postgres drivers; only placeholders differ.
type SQL struct {
	db      *sql.DB
	dialect goose.Dialect

	loadQuery string
	saveQuery string
	listQuery string
}

// OpenSQLite opens (creating if needed) a sqlite database file and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	if path == "" {
		path = "data/settings.db"
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return newSQL(ctx, db, goose.DialectSQLite3)
}

// OpenPostgres connects with lib/pq and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, errors.New("postgres: DATABASE_URL is not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return newSQL(ctx, db, goose.DialectPostgres)
}

func newSQL(ctx context.Context, db *sql.DB, dialect goose.Dialect) (*SQL, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQL{db: db, dialect: dialect}
	p := placeholders(dialect)
	s.loadQuery = fmt.Sprintf(`SELECT value FROM guild_settings WHERE namespace = %s AND guild_id = %s AND setting_key = %s`, p[0], p[1], p[2])
	s.saveQuery = fmt.Sprintf(`INSERT INTO guild_settings (namespace, guild_id, setting_key, value, updated_at)
VALUES (%s, %s, %s, %s, CURRENT_TIMESTAMP)
ON CONFLICT (namespace, guild_id, setting_key)
DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, p[0], p[1], p[2], p[3])
	s.listQuery = fmt.Sprintf(`SELECT setting_key, value FROM guild_settings WHERE namespace = %s AND guild_id = %s ORDER BY setting_key`, p[0], p[1])
	return s, nil
}

func placeholders(dialect goose.Dialect) []string {
	if dialect == goose.DialectPostgres {
		return []string{"$1", "$2", "$3", "$4"}
	}
	return []string{"?", "?", "?", "?"}
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *SQL) Load(ctx context.Context, k Key) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.loadQuery, k.Namespace, k.GuildID, k.Name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *SQL) Save(ctx context.Context, k Key, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.saveQuery, k.Namespace, k.GuildID, k.Name, string(value)); err != nil {
		return fmt.Errorf("upsert setting %s: %w", k, err)
	}
	return nil
}

func (s *SQL) List(ctx context.Context, namespace string, guildID int64) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, s.listQuery, namespace, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = []byte(value)
	}
	return out, rows.Err()
}

// Shared reports true: the database is also written by botctl and other
// bot processes, so values must be read from it every time.
func (s *SQL) Shared() bool { return true }

func (s *SQL) Close() error {
	return s.db.Close()
}
