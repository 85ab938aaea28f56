package cmd

import (
	"github.com/spf13/cobra"
)

func newUpdateCmd() *cobra.Command {
	updateCmd := &cobra.Command{
		Use:   "update <dataset> <key> <field=value>...",
		Short: "Update the given fields of every record with a key",
		Long: `Set the given fields on every record whose key equals <key>. Fields
that are not given keep their values.

Example:
  keyds update customers 00100 amount=0x20`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}
			values, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}

			f, err := e.open(e.resolve(cmd, args[0]), "")
			if err != nil {
				return err
			}
			defer closeFile(cmd.Context(), f, &err)

			n, err := f.FindUpdate(cmd.Context(), args[1], values)
			if err != nil && n == 0 {
				return err
			}
			cmd.Printf("Updated %d record(s)\n", n)
			return err
		},
	}

	updateCmd.Flags().StringP("schema", "s", "", "Schema file (YAML or JSON)")
	return updateCmd
}
