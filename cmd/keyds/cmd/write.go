package cmd

import (
	"github.com/spf13/cobra"
)

func newWriteCmd() *cobra.Command {
	writeCmd := &cobra.Command{
		Use:   "write <dataset> <field=value>...",
		Short: "Insert a record",
		Long: `Insert a record built from field=value arguments. Fields that are not
given are written empty.

Example:
  keyds write customers key=00100 name=JOHN amount=0x1f`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}
			values, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			f, err := e.open(e.resolve(cmd, args[0]), "")
			if err != nil {
				return err
			}
			defer closeFile(cmd.Context(), f, &err)

			if err := f.Write(cmd.Context(), values); err != nil {
				return err
			}
			cmd.Printf("Wrote record %s\n", values[f.Layout().Key().Name])
			return nil
		},
	}

	writeCmd.Flags().StringP("schema", "s", "", "Schema file (YAML or JSON)")
	return writeCmd
}
