package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
)

// migrationFile matches YYYYMMDD_HHMMSS_description.up.sql and .down.sql.
var migrationFile = regexp.MustCompile(`^(\d{8}_\d{6})_([A-Za-z0-9_]+)\.(up|down)\.sql$`)

// ErrInvalidMigrations is returned when the migration files are inconsistent.
var ErrInvalidMigrations = errors.New("database: invalid migration set")

// Source is a directory of migration files.
type Source struct {
	FS  fs.FS
	Dir string // "." for the root of FS
}

var (
	sourceMu   sync.RWMutex
	registered Source
)

// RegisterMigrations sets the source Migrate reads. The top-level migrations
// package registers its embedded SQL files; tests register an fstest.MapFS.
// A nil fsys means there is nothing to migrate.
func RegisterMigrations(fsys fs.FS, dir string) {
	if dir == "" {
		dir = "."
	}
	sourceMu.Lock()
	registered = Source{FS: fsys, Dir: dir}
	sourceMu.Unlock()
}

func registeredSource() Source {
	sourceMu.RLock()
	defer sourceMu.RUnlock()
	return registered
}

// Migration is one schema change with its optional rollback.
type Migration struct {
	// Version is the YYYYMMDD_HHMMSS filename prefix.
	Version string

	// Name is the description part of the filename.
	Name string

	UpSQL   string
	DownSQL string
}

// MigrationRecord represents a row in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// Load reads and validates the migrations in s, oldest first.
// A down file without an up file, or two files for the same version and
// direction, is ErrInvalidMigrations.
func (s Source) Load() ([]Migration, error) {
	if s.FS == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(s.FS, s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading migration dir: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, isUp, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		body, err := fs.ReadFile(s.FS, path.Join(s.Dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if m.Name != name {
			return nil, fmt.Errorf("%w: version %s has files %q and %q", ErrInvalidMigrations, version, m.Name, name)
		}

		target := &m.DownSQL
		if isUp {
			target = &m.UpSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("%w: duplicate %s", ErrInvalidMigrations, entry.Name())
		}
		*target = string(body)
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if strings.TrimSpace(m.UpSQL) == "" {
			return nil, fmt.Errorf("%w: %s_%s has no up SQL", ErrInvalidMigrations, m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int {
		return strings.Compare(a.Version, b.Version)
	})

	return migrations, nil
}

// parseMigrationFilename splits a migration filename into version,
// description and direction. ok is false for files that are not migrations.
func parseMigrationFilename(filename string) (version, name string, isUp, ok bool) {
	m := migrationFile.FindStringSubmatch(filename)
	if m == nil {
		return "", "", false, false
	}
	return m[1], m[2], m[3] == "up", true
}

// Migrate applies all pending migrations from the registered source,
// oldest first.
//
// Each migration runs in its own transaction. If migration N fails,
// migrations before it stay committed, N is rolled back and later ones are
// not attempted. Re-running Migrate after fixing the failure continues
// from N.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If any migration fails (that migration is rolled back)
func (db *DB) Migrate(ctx context.Context) error {
	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, m := range pending {
		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return fmt.Errorf("executing SQL: %w", err)
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				m.Version, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// MigrateDown rolls back the most recently applied migration.
// It returns the rolled back version, or "" when nothing was applied.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - string: Version rolled back
//   - error: If the migration has no down SQL or the rollback fails
func (db *DB) MigrateDown(ctx context.Context) (string, error) {
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", nil
	}
	latest := applied[len(applied)-1].Version

	all, err := registeredSource().Load()
	if err != nil {
		return "", fmt.Errorf("loading migrations: %w", err)
	}
	idx := slices.IndexFunc(all, func(m Migration) bool { return m.Version == latest })
	if idx < 0 {
		return "", fmt.Errorf("migration %s not found in source", latest)
	}
	m := all[idx]
	if strings.TrimSpace(m.DownSQL) == "" {
		return "", fmt.Errorf("migration %s has no down SQL", latest)
	}

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
			return fmt.Errorf("executing down SQL: %w", err)
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("rolling back %s (%s): %w", m.Version, m.Name, err)
	}
	return m.Version, nil
}

// GetMigrationStatus returns the applied migrations and the ones still
// pending from the registered source. It creates the schema_migrations
// table when missing.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - applied: Applied migrations, oldest first
//   - pending: Pending migrations, oldest first
//   - error: If the source is invalid or the query fails
func (db *DB) GetMigrationStatus(ctx context.Context) (applied []MigrationRecord, pending []Migration, err error) {
	all, err := registeredSource().Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}

	applied, err = db.appliedMigrations(ctx)
	if err != nil {
		return nil, nil, err
	}

	done := make(map[string]struct{}, len(applied))
	for _, r := range applied {
		done[r.Version] = struct{}{}
	}
	for _, m := range all {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}

	return applied, pending, nil
}

// appliedMigrations ensures schema_migrations exists and returns its rows.
func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		"SELECT version, applied_at FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		var appliedAt string
		if err := rows.Scan(&r.Version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // written by Migrate
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return records, nil
}
