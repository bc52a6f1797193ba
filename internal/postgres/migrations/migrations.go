package migrations

import (
	"context"
	"embed"
	"io/fs"
	"sort"

	"github.com/jmoiron/sqlx"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
)

//go:embed *.sql
var files embed.FS

// Migration is one embedded schema file
type Migration struct {
	Version string
	SQL     string
}

// List returns the embedded migrations in version order
func List() ([]Migration, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := files.ReadFile(name)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, Migration{Version: name, SQL: string(data)})
	}
	return migrations, nil
}

// Apply runs every migration not yet recorded in schema_migrations, each in
// its own transaction
func Apply(ctx context.Context, db *sqlx.DB, log *logger.Logger) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create the migrations table").
			Mark(ierr.ErrDatabase)
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read applied migrations").
			Mark(ierr.ErrDatabase)
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	migrations, err := List()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		log.Infow("applying migration", "version", m.Version)
		if err := applyOne(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(ctx context.Context, db *sqlx.DB, m Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return ierr.WithError(err).
			WithHintf("Migration %s failed", m.Version).
			Mark(ierr.ErrDatabase)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	return nil
}
