package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/keyds/pkg/keyds"
)

func newAllocCmd() *cobra.Command {
	allocCmd := &cobra.Command{
		Use:   "alloc <dataset>",
		Short: "Allocate a dataset for a schema",
		Long: `Allocate a new dataset whose record length and key position come from
the schema. Allocating an existing dataset fails.

Examples:
  keyds alloc ./data/customers --schema customers.yaml
  keyds alloc customers`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}
			ref := e.resolve(cmd, args[0])
			layout, err := e.layout(ref)
			if err != nil {
				return err
			}

			f, err := keyds.Alloc(ref.path, layout, e.options(ref)...)
			if err != nil {
				return err
			}
			if err := f.Close(cmd.Context()); err != nil {
				return err
			}

			cmd.Printf("Allocated %s: record length %d, key offset %d, key length %d\n",
				ref.path, layout.RecordLength(), layout.KeyOffset(), layout.KeyLength())
			return nil
		},
	}

	allocCmd.Flags().StringP("schema", "s", "", "Schema file (YAML or JSON)")
	return allocCmd
}
