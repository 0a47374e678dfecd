// Package migrations applies the forward-only SQL schema for the reminder store.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"
)

//go:embed sql/*.sql
var embedded embed.FS

// Files returns the embedded migration files rooted at their directory.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return sub
}

// Migration is one SQL file and, if applied, when.
type Migration struct {
	Version   string
	Name      string
	AppliedAt *time.Time
}

// Migrator tracks applied versions in schema_migrations.
type Migrator struct {
	db     *sql.DB
	files  fs.FS
	logger *slog.Logger
}

// Open connects to PostgreSQL through lib/pq.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// New creates a Migrator over the given files (normally Files()).
func New(db *sql.DB, files fs.FS, logger *slog.Logger) *Migrator {
	return &Migrator{
		db:     db,
		files:  files,
		logger: logger.With("component", "migrations"),
	}
}

// Up applies every pending migration, each in its own transaction.
// Returns the versions applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	all, err := List(m.files)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, mig := range Pending(all, applied) {
		if err := m.apply(ctx, mig); err != nil {
			return done, err
		}
		m.logger.Info("migration applied", "version", mig.Version, "name", mig.Name)
		done = append(done, mig.Version)
	}

	return done, nil
}

// Status returns every known migration with its applied time, if any.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	all, err := List(m.files)
	if err != nil {
		return nil, err
	}

	for i := range all {
		if at, ok := applied[all[i].Version]; ok {
			at := at
			all[i].AppliedAt = &at
		}
	}
	return all, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var version string
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	raw, err := fs.ReadFile(m.files, mig.Name)
	if err != nil {
		return fmt.Errorf("read %s: %w", mig.Name, err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", mig.Name, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(raw)); err != nil {
		return fmt.Errorf("apply %s: %w", mig.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
		mig.Version, mig.Name,
	); err != nil {
		return fmt.Errorf("record %s: %w", mig.Name, err)
	}

	return tx.Commit()
}

// List returns the .sql files in files sorted by name.
// The version is the file name up to the first underscore.
func List(files fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		version, _, _ := strings.Cut(strings.TrimSuffix(e.Name(), ".sql"), "_")
		out = append(out, Migration{Version: version, Name: e.Name()})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Pending filters out migrations whose version is already applied.
func Pending(all []Migration, applied map[string]time.Time) []Migration {
	var out []Migration
	for _, mig := range all {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		out = append(out, mig)
	}
	return out
}
