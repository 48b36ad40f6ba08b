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
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	migrationsDir = "sql/migrations"
	// Ключ advisory-lock, под которым сериализуются параллельные запуски миграций.
	migrationLockKey  = int64(7004201)
	migrationLockWait = 5 * time.Second

	schemaMigrationsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	embeddedMigrations embed.FS

	// 0001_catalog.up.sql -> версия, имя, направление.
	migrationNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)
)

type direction string

const (
	directionUp   direction = "up"
	directionDown direction = "down"
)

// migration — пара up/down-скриптов одной версии схемы.
type migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

func (m migration) label() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

func (m migration) script(dir direction) string {
	if dir == directionDown {
		return m.Down
	}
	return m.Up
}

// MigrationState описывает состояние схемы.
type MigrationState struct {
	Version int64
	Applied int
	Pending int
}

// MigrateUp применяет не более steps ещё не применённых миграций; 0 означает все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.migrate(ctx, directionUp, steps)
}

// MigrateDown откатывает последние steps миграций. Значение <= 0 откатывает одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.migrate(ctx, directionDown, steps)
}

// MigrationStatus возвращает текущую версию и число применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	state, err := s.MigrationState(ctx)
	if err != nil {
		return 0, 0, err
	}
	return state.Version, state.Applied, nil
}

// MigrationState дополнительно считает встроенные миграции, которые ещё не применены.
func (s *Store) MigrationState(ctx context.Context) (MigrationState, error) {
	if s == nil || s.db == nil {
		return MigrationState{}, errStoreNotInitialized
	}

	migrations, err := readMigrations(embeddedMigrations)
	if err != nil {
		return MigrationState{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, schemaMigrationsDDL); err != nil {
		return MigrationState{}, fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedVersions(queryCtx, s.db)
	if err != nil {
		return MigrationState{}, err
	}

	return stateOf(migrations, applied), nil
}

// stateOf сводит встроенные миграции и применённые версии в MigrationState.
func stateOf(migrations []migration, applied []int64) MigrationState {
	state := MigrationState{Applied: len(applied)}
	for _, version := range applied {
		if version > state.Version {
			state.Version = version
		}
	}
	state.Pending = len(planUp(migrations, applied, 0))
	return state
}

func (s *Store) migrate(ctx context.Context, dir direction, steps int) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	migrations, err := readMigrations(embeddedMigrations)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	unlock, err := lockMigrations(ctx, conn)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := conn.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	var plan []migration
	switch dir {
	case directionUp:
		plan = planUp(migrations, applied, steps)
	case directionDown:
		if plan, err = planDown(migrations, applied, steps); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported migration direction: %s", dir)
	}

	for _, m := range plan {
		if err := execMigration(ctx, conn, m, dir); err != nil {
			return err
		}
	}
	return nil
}

func lockMigrations(ctx context.Context, conn *sql.Conn) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, migrationLockWait)
	defer cancel()

	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	return func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}, nil
}

// planUp возвращает неприменённые миграции по возрастанию версии, не больше steps (0 означает все).
func planUp(migrations []migration, applied []int64, steps int) []migration {
	done := make(map[int64]struct{}, len(applied))
	for _, version := range applied {
		done[version] = struct{}{}
	}

	var plan []migration
	for _, m := range migrations {
		if _, ok := done[m.Version]; ok {
			continue
		}
		plan = append(plan, m)
		if steps > 0 && len(plan) == steps {
			break
		}
	}
	return plan
}

// planDown возвращает steps последних применённых миграций от новой к старой.
// Применённая версия без встроенного скрипта считается ошибкой.
func planDown(migrations []migration, applied []int64, steps int) ([]migration, error) {
	byVersion := make(map[int64]migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	versions := append([]int64(nil), applied...)
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
	if steps < len(versions) {
		versions = versions[:steps]
	}

	plan := make([]migration, 0, len(versions))
	for _, version := range versions {
		m, ok := byVersion[version]
		if !ok {
			return nil, fmt.Errorf("cannot rollback unknown migration version %d", version)
		}
		plan = append(plan, m)
	}
	return plan, nil
}

// execMigration выполняет скрипт и учёт в schema_migrations в одной транзакции.
func execMigration(ctx context.Context, conn *sql.Conn, m migration, dir direction) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s migration %s: %w", dir, m.label(), err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.script(dir)); err != nil {
		return fmt.Errorf("execute %s migration %s: %w", dir, m.label(), err)
	}

	if dir == directionUp {
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
	}
	if err != nil {
		return fmt.Errorf("record %s migration %s: %w", dir, m.label(), err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %s: %w", dir, m.label(), err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func appliedVersions(ctx context.Context, q queryer) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

// readMigrations собирает пары up/down из каталога sql/migrations.
func readMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		version, name, dir, err := parseMigrationName(entry.Name())
		if err != nil {
			return nil, err
		}

		raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", entry.Name(), err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", entry.Name())
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if m.Name != name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, m.Name, name)
		}

		target := &m.Up
		if dir == directionDown {
			target = &m.Down
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", dir, version)
		}
		*target = body
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.label())
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func parseMigrationName(file string) (int64, string, direction, error) {
	matches := migrationNamePattern.FindStringSubmatch(file)
	if matches == nil {
		return 0, "", "", fmt.Errorf("invalid migration file name: %s", file)
	}
	version, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, "", "", fmt.Errorf("parse migration version from %s: %w", file, err)
	}
	return version, matches[2], direction(matches[3]), nil
}
