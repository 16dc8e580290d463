package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/packdock/packdock/pkg/importer"
	"github.com/packdock/packdock/pkg/provision"
)

func newImportCommand() *cobra.Command {
	var (
		packageDir         string
		name               string
		disableNotImported bool
		skipLint           bool
		frozen             bool
		bootstrapBin       string
		interpreter        string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an action package into the catalog",
		Long: `Import an action package from a directory.

This command:
  - Validates the package directory and its manifest
  - Bootstraps (or reuses) the declared environment
  - Checks the discovery-tool version
  - Enumerates the package's actions
  - Reconciles them into the catalog in one transaction

Re-importing a package updates it in place; package and action IDs
never change.`,
		Example: `  # Import a package from the filesystem
  packdock import --dir ./my-package

  # Re-import and disable actions that vanished
  packdock import --dir ./my-package --disable-not-imported

  # Import without running static lint checks
  packdock import --dir ./my-package --skip-lint`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir, err := resolveDatadir()
			if err != nil {
				return err
			}

			store, err := openStore(ctx, dir)
			if err != nil {
				return err
			}
			defer store.Close()

			prov := provision.NewCommandProvisioner(bootstrapBin, []string{"env", "create", "--json"}, log.Logger)
			imp := importer.New(store, prov, importer.Config{
				Frozen:             frozen,
				DefaultInterpreter: interpreter,
			}, log.Logger)

			return imp.Import(ctx, importer.Options{
				DataDir:            dir,
				PackageDir:         packageDir,
				Name:               name,
				DisableNotImported: disableNotImported,
				SkipLint:           skipLint,
			})
		},
	}

	cmd.Flags().StringVar(&packageDir, "dir", "", "action package directory")
	cmd.Flags().StringVar(&name, "name", "", "display name override (default: directory name)")
	cmd.Flags().BoolVar(&disableNotImported, "disable-not-imported", false, "disable previously known actions no longer discovered")
	cmd.Flags().BoolVar(&skipLint, "skip-lint", false, "skip static lint checks during discovery")
	cmd.Flags().BoolVar(&frozen, "frozen", false, "require a manifest (reject unmanaged packages)")
	cmd.Flags().StringVar(&bootstrapBin, "bootstrap-bin", "envdock", "environment bootstrap binary")
	cmd.Flags().StringVar(&interpreter, "interpreter", "python", "interpreter for unmanaged packages")
	cmd.MarkFlagRequired("dir")

	return cmd
}
