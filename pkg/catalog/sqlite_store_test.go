package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

// setupTestStore creates a SQLite store backed by a temp file for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "catalog.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { store.Close() })

	return store
}

func testPackage(name string) *ActionPackage {
	return &ActionPackage{
		ID:             uuid.New().String(),
		Name:           name,
		Directory:      name,
		DependencyHash: "hash-" + name,
		EnvJSON:        `{"PYTHON_EXE":"/usr/bin/python"}`,
	}
}

func testAction(pkgID, name string) *Action {
	return &Action{
		ID:              uuid.New().String(),
		ActionPackageID: pkgID,
		Name:            name,
		Docs:            "does " + name,
		File:            "actions.py",
		LineNo:          10,
		InputSchema:     `{"type":"object"}`,
		OutputSchema:    `{"type":"string"}`,
		Enabled:         true,
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "catalog.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests that the catalog tables exist after migration
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()

	tables := []string{"action_packages", "actions"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

// TestActionPackageCRUD tests action package operations
func TestActionPackageCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	pkg := testPackage("greeter")

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}
	if err := store.InsertActionPackage(ctx, tx, pkg); err != nil {
		t.Fatalf("failed to insert action package: %v", err)
	}
	if err := store.CommitTx(tx); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	got, err := store.GetActionPackageByName(ctx, "greeter")
	if err != nil {
		t.Fatalf("failed to get action package by name: %v", err)
	}
	if got.ID != pkg.ID {
		t.Errorf("expected id %s, got %s", pkg.ID, got.ID)
	}
	if got.DependencyHash != pkg.DependencyHash {
		t.Errorf("expected hash %s, got %s", pkg.DependencyHash, got.DependencyHash)
	}

	// Update in place
	pkg.Directory = "moved/greeter"
	pkg.DependencyHash = "hash-2"
	tx, err = store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}
	if err := store.UpdateActionPackage(ctx, tx, pkg); err != nil {
		t.Fatalf("failed to update action package: %v", err)
	}
	if err := store.CommitTx(tx); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	got, err = store.GetActionPackage(ctx, pkg.ID)
	if err != nil {
		t.Fatalf("failed to get action package: %v", err)
	}
	if got.Directory != "moved/greeter" || got.DependencyHash != "hash-2" {
		t.Errorf("update not applied: %+v", got)
	}
}

// TestGetActionPackageNotFound tests the ErrNotFound sentinel
func TestGetActionPackageNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetActionPackageByName(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = store.GetActionPackage(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestActionCRUD tests action operations including the consequential flag
func TestActionCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	pkg := testPackage("mailer")
	action := testAction(pkg.ID, "send_mail")
	consequential := true
	action.IsConsequential = &consequential

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}
	if err := store.InsertActionPackage(ctx, tx, pkg); err != nil {
		t.Fatalf("failed to insert package: %v", err)
	}
	if err := store.InsertAction(ctx, tx, action); err != nil {
		t.Fatalf("failed to insert action: %v", err)
	}
	if err := store.CommitTx(tx); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	got, err := store.GetAction(ctx, action.ID)
	if err != nil {
		t.Fatalf("failed to get action: %v", err)
	}
	if got.Name != "send_mail" || !got.Enabled {
		t.Errorf("unexpected action: %+v", got)
	}
	if got.IsConsequential == nil || !*got.IsConsequential {
		t.Errorf("expected consequential flag to round-trip, got %v", got.IsConsequential)
	}

	actions, err := store.ListActionsByPackage(ctx, pkg.ID)
	if err != nil {
		t.Fatalf("failed to list actions: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
}

// TestDisableAction tests that disabling only flips the enabled flag
func TestDisableAction(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	pkg := testPackage("tools")
	action := testAction(pkg.ID, "resize_image")

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}
	if err := store.InsertActionPackage(ctx, tx, pkg); err != nil {
		t.Fatalf("failed to insert package: %v", err)
	}
	if err := store.InsertAction(ctx, tx, action); err != nil {
		t.Fatalf("failed to insert action: %v", err)
	}
	if err := store.CommitTx(tx); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	tx, err = store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}
	if err := store.DisableAction(ctx, tx, action.ID); err != nil {
		t.Fatalf("failed to disable action: %v", err)
	}
	if err := store.CommitTx(tx); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	got, err := store.GetAction(ctx, action.ID)
	if err != nil {
		t.Fatalf("failed to get action: %v", err)
	}
	if got.Enabled {
		t.Error("expected action to be disabled")
	}
	if got.Name != action.Name || got.Docs != action.Docs || got.File != action.File {
		t.Errorf("disable touched other fields: %+v", got)
	}
}

// TestTransactionRollback tests that a rolled back transaction leaves no rows
func TestTransactionRollback(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	pkg := testPackage("doomed")

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}
	if err := store.InsertActionPackage(ctx, tx, pkg); err != nil {
		t.Fatalf("failed to insert package: %v", err)
	}
	if err := store.InsertAction(ctx, tx, testAction(pkg.ID, "transient")); err != nil {
		t.Fatalf("failed to insert action: %v", err)
	}
	if err := store.RollbackTx(tx); err != nil {
		t.Fatalf("failed to rollback: %v", err)
	}

	if _, err := store.GetActionPackageByName(ctx, "doomed"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after rollback, got %v", err)
	}

	actions, err := store.ListActions(ctx)
	if err != nil {
		t.Fatalf("failed to list actions: %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("expected no actions after rollback, got %d", len(actions))
	}
}
