package cmd

import (
	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:   "delete <dataset> <key>",
		Short: "Delete every record with a key",
		Long: `Delete every record whose key equals <key>.

Example:
  keyds delete customers 00100`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}

			f, err := e.open(e.resolve(cmd, args[0]), "")
			if err != nil {
				return err
			}
			defer closeFile(cmd.Context(), f, &err)

			n, err := f.FindDelete(cmd.Context(), args[1])
			if err != nil && n == 0 {
				return err
			}
			cmd.Printf("Deleted %d record(s)\n", n)
			return err
		},
	}

	deleteCmd.Flags().StringP("schema", "s", "", "Schema file (YAML or JSON)")
	return deleteCmd
}
