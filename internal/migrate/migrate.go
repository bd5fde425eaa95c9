// Package migrate applies the SQL files under ops/migrations to a
// PostgreSQL database. Applied files are recorded by name, so reruns are
// idempotent; each file executes inside its own transaction.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	migrationsTable = "schema_migrations"
	seedsTable      = "schema_seeds"

	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// Runner applies migration and seed files from disk.
type Runner struct {
	db            *sql.DB
	migrationsDir string
	seedsDir      string
}

func New(db *sql.DB, migrationsDir, seedsDir string) *Runner {
	return &Runner{db: db, migrationsDir: migrationsDir, seedsDir: seedsDir}
}

// Up applies every pending *.up.sql in lexical order.
func (r *Runner) Up(ctx context.Context) error {
	return r.applyPending(ctx, r.migrationsDir, upSuffix, migrationsTable)
}

// Seed applies every pending seed file. Seeds run once, like migrations;
// the files themselves should still be written to tolerate existing rows.
func (r *Runner) Seed(ctx context.Context) error {
	return r.applyPending(ctx, r.seedsDir, ".sql", seedsTable)
}

// Down rolls back the most recently applied migration using its
// *.down.sql counterpart.
func (r *Runner) Down(ctx context.Context) error {
	applied, err := r.Applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return errors.New("migrate: nothing to roll back")
	}
	last := applied[len(applied)-1]
	down := filepath.Join(r.migrationsDir, strings.TrimSuffix(last, upSuffix)+downSuffix)
	if _, err := os.Stat(down); err != nil {
		return fmt.Errorf("migrate: %s has no down file", last)
	}
	if err := r.runFile(ctx, down); err != nil {
		return fmt.Errorf("migrate: roll back %s: %w", last, err)
	}
	_, err = r.db.ExecContext(ctx, `delete from `+migrationsTable+` where name = $1`, last)
	return err
}

// Applied returns applied migration file names in application order.
func (r *Runner) Applied(ctx context.Context) ([]string, error) {
	if err := r.ensureBookkeeping(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `select name from `+migrationsTable+` order by applied_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *Runner) applyPending(ctx context.Context, dir, suffix, table string) error {
	if err := r.ensureBookkeeping(ctx); err != nil {
		return err
	}
	done, err := r.recordedNames(ctx, table)
	if err != nil {
		return err
	}
	files, err := listSQL(dir, suffix)
	if err != nil {
		return err
	}
	for _, name := range files {
		if done[name] {
			continue
		}
		if err := r.runFile(ctx, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx,
			`insert into `+table+`(name, applied_at) values ($1, $2)`,
			name, time.Now().UTC()); err != nil {
			return err
		}
	}
	return nil
}

// runFile executes one SQL file in a single transaction.
func (r *Runner) runFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Runner) ensureBookkeeping(ctx context.Context) error {
	for _, table := range []string{migrationsTable, seedsTable} {
		ddl := `create table if not exists ` + table + ` (
			name text primary key,
			applied_at timestamptz not null default now()
		)`
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) recordedNames(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `select name from `+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		done[name] = true
	}
	return done, rows.Err()
}

// listSQL returns matching file names from a flat directory, sorted so the
// numeric prefixes decide application order. A missing directory is empty,
// not an error; the seeds directory is optional.
func listSQL(dir, suffix string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// splitStatements cuts a file into statements on semicolons outside single
// quotes. Dollar-quoted bodies are not handled; the schema files here do
// not use them.
func splitStatements(src string) []string {
	var (
		stmts   []string
		start   int
		inQuote bool
	)
	flush := func(end int) {
		if s := strings.TrimSpace(src[start:end]); s != "" {
			stmts = append(stmts, s)
		}
	}
	for i, r := range src {
		switch r {
		case '\'':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(src))
	return stmts
}
