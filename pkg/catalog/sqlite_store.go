package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// GetActionPackage retrieves an action package by ID
func (s *SQLiteStore) GetActionPackage(ctx context.Context, id string) (*ActionPackage, error) {
	query := `
		SELECT id, name, directory, dependency_hash, env_json, created_at, updated_at
		FROM action_packages
		WHERE id = ?
	`

	pkg := &ActionPackage{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&pkg.ID,
		&pkg.Name,
		&pkg.Directory,
		&pkg.DependencyHash,
		&pkg.EnvJSON,
		&pkg.CreatedAt,
		&pkg.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("action package %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action package: %w", err)
	}

	return pkg, nil
}

// GetActionPackageByName retrieves an action package by its unique name
func (s *SQLiteStore) GetActionPackageByName(ctx context.Context, name string) (*ActionPackage, error) {
	query := `
		SELECT id, name, directory, dependency_hash, env_json, created_at, updated_at
		FROM action_packages
		WHERE name = ?
	`

	pkg := &ActionPackage{}
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&pkg.ID,
		&pkg.Name,
		&pkg.Directory,
		&pkg.DependencyHash,
		&pkg.EnvJSON,
		&pkg.CreatedAt,
		&pkg.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("action package %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action package by name: %w", err)
	}

	return pkg, nil
}

// ListActionPackages lists all action packages ordered by name
func (s *SQLiteStore) ListActionPackages(ctx context.Context) ([]*ActionPackage, error) {
	query := `
		SELECT id, name, directory, dependency_hash, env_json, created_at, updated_at
		FROM action_packages
		ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list action packages: %w", err)
	}
	defer rows.Close()

	pkgs := []*ActionPackage{}
	for rows.Next() {
		pkg := &ActionPackage{}
		err := rows.Scan(
			&pkg.ID,
			&pkg.Name,
			&pkg.Directory,
			&pkg.DependencyHash,
			&pkg.EnvJSON,
			&pkg.CreatedAt,
			&pkg.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action package: %w", err)
		}
		pkgs = append(pkgs, pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating action packages: %w", err)
	}

	return pkgs, nil
}

// InsertActionPackage inserts a new action package within a transaction
func (s *SQLiteStore) InsertActionPackage(ctx context.Context, tx *sql.Tx, pkg *ActionPackage) error {
	query := `
		INSERT INTO action_packages (id, name, directory, dependency_hash, env_json)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		pkg.ID,
		pkg.Name,
		pkg.Directory,
		pkg.DependencyHash,
		pkg.EnvJSON,
	)

	if err != nil {
		return fmt.Errorf("failed to insert action package: %w", err)
	}

	return nil
}

// UpdateActionPackage overwrites all fields of an existing action package.
// The ID is never changed.
func (s *SQLiteStore) UpdateActionPackage(ctx context.Context, tx *sql.Tx, pkg *ActionPackage) error {
	query := `
		UPDATE action_packages
		SET name = ?, directory = ?, dependency_hash = ?, env_json = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := tx.ExecContext(ctx, query,
		pkg.Name,
		pkg.Directory,
		pkg.DependencyHash,
		pkg.EnvJSON,
		pkg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update action package: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("action package %s: %w", pkg.ID, ErrNotFound)
	}

	return nil
}

// GetAction retrieves an action by ID
func (s *SQLiteStore) GetAction(ctx context.Context, id string) (*Action, error) {
	query := `
		SELECT id, action_package_id, name, docs, file, lineno,
			   input_schema, output_schema, enabled, is_consequential,
			   created_at, updated_at
		FROM actions
		WHERE id = ?
	`

	action := &Action{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&action.ID,
		&action.ActionPackageID,
		&action.Name,
		&action.Docs,
		&action.File,
		&action.LineNo,
		&action.InputSchema,
		&action.OutputSchema,
		&action.Enabled,
		&action.IsConsequential,
		&action.CreatedAt,
		&action.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("action %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action: %w", err)
	}

	return action, nil
}

// ListActionsByPackage lists all actions belonging to an action package
func (s *SQLiteStore) ListActionsByPackage(ctx context.Context, actionPackageID string) ([]*Action, error) {
	query := `
		SELECT id, action_package_id, name, docs, file, lineno,
			   input_schema, output_schema, enabled, is_consequential,
			   created_at, updated_at
		FROM actions
		WHERE action_package_id = ?
		ORDER BY name ASC
	`

	return s.queryActions(ctx, query, actionPackageID)
}

// ListActions lists all actions across all action packages
func (s *SQLiteStore) ListActions(ctx context.Context) ([]*Action, error) {
	query := `
		SELECT id, action_package_id, name, docs, file, lineno,
			   input_schema, output_schema, enabled, is_consequential,
			   created_at, updated_at
		FROM actions
		ORDER BY action_package_id ASC, name ASC
	`

	return s.queryActions(ctx, query)
}

func (s *SQLiteStore) queryActions(ctx context.Context, query string, args ...interface{}) ([]*Action, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	actions := []*Action{}
	for rows.Next() {
		action := &Action{}
		err := rows.Scan(
			&action.ID,
			&action.ActionPackageID,
			&action.Name,
			&action.Docs,
			&action.File,
			&action.LineNo,
			&action.InputSchema,
			&action.OutputSchema,
			&action.Enabled,
			&action.IsConsequential,
			&action.CreatedAt,
			&action.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, action)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return actions, nil
}

// InsertAction inserts a new action within a transaction
func (s *SQLiteStore) InsertAction(ctx context.Context, tx *sql.Tx, action *Action) error {
	query := `
		INSERT INTO actions (
			id, action_package_id, name, docs, file, lineno,
			input_schema, output_schema, enabled, is_consequential
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		action.ID,
		action.ActionPackageID,
		action.Name,
		action.Docs,
		action.File,
		action.LineNo,
		action.InputSchema,
		action.OutputSchema,
		action.Enabled,
		action.IsConsequential,
	)

	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}

	return nil
}

// UpdateAction overwrites all fields of an existing action.
// The ID is never changed.
func (s *SQLiteStore) UpdateAction(ctx context.Context, tx *sql.Tx, action *Action) error {
	query := `
		UPDATE actions
		SET action_package_id = ?, name = ?, docs = ?, file = ?, lineno = ?,
			input_schema = ?, output_schema = ?, enabled = ?, is_consequential = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := tx.ExecContext(ctx, query,
		action.ActionPackageID,
		action.Name,
		action.Docs,
		action.File,
		action.LineNo,
		action.InputSchema,
		action.OutputSchema,
		action.Enabled,
		action.IsConsequential,
		action.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update action: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("action %s: %w", action.ID, ErrNotFound)
	}

	return nil
}

// DisableAction sets the enabled flag of an action to false.
// No other field is touched.
func (s *SQLiteStore) DisableAction(ctx context.Context, tx *sql.Tx, id string) error {
	query := `UPDATE actions SET enabled = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to disable action: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("action %s: %w", id, ErrNotFound)
	}

	return nil
}
