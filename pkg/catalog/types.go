package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ActionPackage represents an imported action package.
// The name is the natural key for reconciliation: re-importing a package
// with the same name updates the existing row in place, preserving its ID.
type ActionPackage struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Directory      string    `json:"directory"`       // relative to the data dir when possible, else absolute
	DependencyHash string    `json:"dependency_hash"` // hash of the parsed manifest, or the unmanaged sentinel
	EnvJSON        string    `json:"env_json"`        // JSON object of environment variables
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Action represents a single discoverable action within a package.
// Within a package the action name is the natural key for reconciliation;
// IDs are preserved across re-imports so external references stay valid.
type Action struct {
	ID              string    `json:"id"`
	ActionPackageID string    `json:"action_package_id"`
	Name            string    `json:"name"`
	Docs            string    `json:"docs"`
	File            string    `json:"file"` // relative to the package dir when possible, else absolute
	LineNo          int       `json:"lineno"`
	InputSchema     string    `json:"input_schema"`  // JSON blob
	OutputSchema    string    `json:"output_schema"` // JSON blob
	Enabled         bool      `json:"enabled"`
	IsConsequential *bool     `json:"is_consequential,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store defines the interface for the catalog persistence layer.
// Mutations are transaction-scoped so the reconciler can apply a whole
// import as one atomic unit; reads run outside transactions.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	HealthCheck(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Action package operations
	GetActionPackage(ctx context.Context, id string) (*ActionPackage, error)
	GetActionPackageByName(ctx context.Context, name string) (*ActionPackage, error)
	ListActionPackages(ctx context.Context) ([]*ActionPackage, error)
	InsertActionPackage(ctx context.Context, tx *sql.Tx, pkg *ActionPackage) error
	UpdateActionPackage(ctx context.Context, tx *sql.Tx, pkg *ActionPackage) error

	// Action operations
	GetAction(ctx context.Context, id string) (*Action, error)
	ListActionsByPackage(ctx context.Context, actionPackageID string) ([]*Action, error)
	ListActions(ctx context.Context) ([]*Action, error)
	InsertAction(ctx context.Context, tx *sql.Tx, action *Action) error
	UpdateAction(ctx context.Context, tx *sql.Tx, action *Action) error
	DisableAction(ctx context.Context, tx *sql.Tx, id string) error
}
