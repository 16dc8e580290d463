package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Initialize or upgrade the catalog database schema",
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

			log.Info().Str("datadir", dir).Msg("Catalog schema up to date")
			return nil
		},
	}
}
