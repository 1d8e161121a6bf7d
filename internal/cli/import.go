package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"waasp/internal/seed"
)

func newImportCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Bulk-add contacts from a YAML seed file",
		Long:  "Adds every contact in the file. Pairs that already exist are skipped, not updated.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.Load(args[0])
			if err != nil {
				return err
			}

			a, ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := seed.Apply(ctx, a.Whitelist, f)
			if err != nil {
				return fmt.Errorf("import stopped after %d added: %w", res.Added, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d contacts (%d already present)\n", res.Added, res.Skipped)
			return nil
		},
	}
}
