package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	migrationsDir     = "sql/migrations"
	migrationLockKey  = int64(47110925)
	migrationTimeout  = 5 * time.Second
	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	migrationsFS embed.FS

	// 0003_catalog.up.sql -> версия, имя, направление.
	migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

func (m migration) String() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// migrationStep задаёт миграцию и направление её выполнения.
type migrationStep struct {
	migration
	up bool
}

// migrationState сводит встроенные миграции с записями schema_migrations.
type migrationState struct {
	known   []migration
	applied map[int64]bool
}

func (st migrationState) latest() int64 {
	var version int64
	for v := range st.applied {
		version = max(version, v)
	}
	return version
}

func (st migrationState) pending() []migration {
	var out []migration
	for _, m := range st.known {
		if !st.applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

// planUp берёт первые steps неприменённых миграций; steps<=0 означает все.
func (st migrationState) planUp(steps int) []migrationStep {
	pending := st.pending()
	if steps > 0 && steps < len(pending) {
		pending = pending[:steps]
	}
	plan := make([]migrationStep, 0, len(pending))
	for _, m := range pending {
		plan = append(plan, migrationStep{migration: m, up: true})
	}
	return plan
}

// planDown откатывает steps последних применённых версий, начиная с новейшей.
// Версия без встроенного скрипта останавливает откат до каких-либо изменений.
func (st migrationState) planDown(steps int) ([]migrationStep, error) {
	versions := make([]int64, 0, len(st.applied))
	for v := range st.applied {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	slices.Reverse(versions)
	if steps < len(versions) {
		versions = versions[:steps]
	}

	byVersion := make(map[int64]migration, len(st.known))
	for _, m := range st.known {
		byVersion[m.Version] = m
	}
	plan := make([]migrationStep, 0, len(versions))
	for _, v := range versions {
		m, ok := byVersion[v]
		if !ok {
			return nil, fmt.Errorf("cannot rollback unknown migration version %d", v)
		}
		plan = append(plan, migrationStep{migration: m})
	}
	return plan, nil
}

// MigrateUp применяет up-миграции.
// steps=0 означает "применить все доступные".
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withMigrationLock(ctx, func(conn *sql.Conn, st migrationState) error {
		return runSteps(ctx, conn, st.planUp(steps))
	})
}

// MigrateDown откатывает миграции; steps<=0 откатывает одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withMigrationLock(ctx, func(conn *sql.Conn, st migrationState) error {
		plan, err := st.planDown(steps)
		if err != nil {
			return err
		}
		return runSteps(ctx, conn, plan)
	})
}

// PendingMigrations возвращает имена неприменённых миграций в порядке применения.
func (s *Store) PendingMigrations(ctx context.Context) ([]string, error) {
	st, err := s.migrationState(ctx)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, m := range st.pending() {
		names = append(names, m.String())
	}
	return names, nil
}

// MigrationStatus возвращает текущую версию и количество применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	st, err := s.migrationState(ctx)
	if err != nil {
		return 0, 0, err
	}
	return st.latest(), len(st.applied), nil
}

func (s *Store) migrationState(ctx context.Context) (migrationState, error) {
	if s == nil || s.db == nil {
		return migrationState{}, errStoreNotInitialized
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return migrationState{}, fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()
	return readMigrationState(ctx, conn)
}

// withMigrationLock держит advisory lock на выделенном соединении,
// чтобы параллельные запуски не применяли одну версию дважды.
func (s *Store) withMigrationLock(ctx context.Context, fn func(*sql.Conn, migrationState) error) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	st, err := readMigrationState(ctx, conn)
	if err != nil {
		return err
	}
	return fn(conn, st)
}

func readMigrationState(ctx context.Context, conn *sql.Conn) (migrationState, error) {
	known, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return migrationState{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()
	if _, err := conn.ExecContext(queryCtx, migrationTableDDL); err != nil {
		return migrationState{}, fmt.Errorf("ensure migration table: %w", err)
	}

	rows, err := conn.QueryContext(queryCtx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return migrationState{}, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return migrationState{}, fmt.Errorf("scan applied migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return migrationState{}, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return migrationState{known: known, applied: applied}, nil
}

func runSteps(ctx context.Context, conn *sql.Conn, plan []migrationStep) error {
	for _, step := range plan {
		if err := runStep(ctx, conn, step); err != nil {
			return err
		}
	}
	return nil
}

// runStep выполняет скрипт и запись в schema_migrations в одной транзакции.
func runStep(ctx context.Context, conn *sql.Conn, step migrationStep) error {
	direction, script := "down", step.DownSQL
	record, args := `DELETE FROM schema_migrations WHERE version = $1`, []any{step.Version}
	if step.up {
		direction, script = "up", step.UpSQL
		record, args = `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, []any{step.Version, step.Name}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s migration %s: %w", direction, step, err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute %s migration %s: %w", direction, step, err)
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record %s migration %s: %w", direction, step, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %s: %w", direction, step, err)
	}
	return nil
}

func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		if err := addMigrationFile(fsys, byVersion, entry.Name()); err != nil {
			return nil, err
		}
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b migration) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})
	return migrations, nil
}

func addMigrationFile(fsys fs.FS, byVersion map[int64]*migration, base string) error {
	parts := migrationFilePattern.FindStringSubmatch(base)
	if parts == nil {
		return fmt.Errorf("invalid migration file name: %s", base)
	}
	version, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fmt.Errorf("parse migration version from %s: %w", base, err)
	}
	name, direction := parts[2], parts[3]

	raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, base))
	if err != nil {
		return fmt.Errorf("read migration file %s: %w", base, err)
	}
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return fmt.Errorf("migration file is empty: %s", base)
	}

	m, ok := byVersion[version]
	if !ok {
		m = &migration{Version: version, Name: name}
		byVersion[version] = m
	}
	if m.Name != name {
		return fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, m.Name, name)
	}

	slot := &m.DownSQL
	if direction == "up" {
		slot = &m.UpSQL
	}
	if *slot != "" {
		return fmt.Errorf("duplicate %s migration for version %d", direction, version)
	}
	*slot = body
	return nil
}
