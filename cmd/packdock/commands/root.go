package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/packdock/packdock/pkg/catalog"
)

var (
	// Global flags
	datadir    string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "packdock",
		Short: "packdock - action package catalog",
		Long: `packdock discovers, validates and registers action packages into a
persistent catalog.

An action package is a directory bundling runnable actions plus an
optional dependency manifest. Importing a package provisions (or
reuses) an isolated environment keyed by the manifest hash, enumerates
the package's actions via the discovery tool, and reconciles them into
the catalog under one transaction.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.Logger = log.Logger.Level(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&datadir, "datadir", "d", "", "data directory (default: $HOME/.packdock)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newMigrateCommand())

	return rootCmd
}

// resolveDatadir returns the data directory, creating it if needed.
func resolveDatadir() (string, error) {
	dir := datadir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".packdock")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// openStore opens and migrates the catalog database under the data dir.
func openStore(ctx context.Context, dir string) (*catalog.SQLiteStore, error) {
	store, err := catalog.NewSQLiteStore(catalog.Config{
		Path: filepath.Join(dir, "catalog.db"),
	})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
