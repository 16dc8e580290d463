package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/packdock/packdock/pkg/catalog"
)

func newListCommand() *cobra.Command {
	var includeDisabled bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cataloged action packages and their actions",
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

			pkgs, err := store.ListActionPackages(ctx)
			if err != nil {
				return err
			}

			type packageListing struct {
				*catalog.ActionPackage
				Actions []*catalog.Action `json:"actions"`
			}

			listings := make([]packageListing, 0, len(pkgs))
			for _, pkg := range pkgs {
				actions, err := store.ListActionsByPackage(ctx, pkg.ID)
				if err != nil {
					return err
				}
				if !includeDisabled {
					kept := actions[:0]
					for _, a := range actions {
						if a.Enabled {
							kept = append(kept, a)
						}
					}
					actions = kept
				}
				listings = append(listings, packageListing{ActionPackage: pkg, Actions: actions})
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(listings)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PACKAGE\tACTION\tFILE\tLINE\tENABLED")
			for _, l := range listings {
				if len(l.Actions) == 0 {
					fmt.Fprintf(w, "%s\t-\t-\t-\t-\n", l.Name)
					continue
				}
				for _, a := range l.Actions {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", l.Name, a.Name, a.File, a.LineNo, a.Enabled)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&includeDisabled, "all", false, "include disabled actions")

	return cmd
}
