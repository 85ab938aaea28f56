package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ssargent/keyds/pkg/access"
	"github.com/ssargent/keyds/pkg/codec"
	"github.com/ssargent/keyds/pkg/dataset"
)

func newFindCmd() *cobra.Command {
	findCmd := &cobra.Command{
		Use:   "find <dataset> [key]",
		Short: "Find a record by key",
		Long: `Find a record by key and print it.

The mode selects the record: eq (the default) matches the key exactly, ge
takes the first record at or after it, first and last take the lowest and
highest keys and need no key.

Examples:
  keyds find customers 00100
  keyds find customers 001 --mode ge
  keyds find ./data/customers --schema customers.yaml --mode last`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}
			modeName, _ := cmd.Flags().GetString("mode")
			format, _ := cmd.Flags().GetString("format")

			mode, err := access.ParseLocateMode(modeName)
			if err != nil {
				return err
			}
			needsKey := mode == dataset.KeyEqual || mode == dataset.KeyGreaterOrEqual
			if needsKey != (len(args) == 2) {
				if needsKey {
					return errors.New("a key is required for modes eq and ge")
				}
				return errors.New("modes first and last take no key")
			}

			f, err := e.open(e.resolve(cmd, args[0]), access.ReadOnly.String())
			if err != nil {
				return err
			}
			defer closeFile(cmd.Context(), f, &err)

			ctx := cmd.Context()
			var rec codec.Values
			switch mode {
			case dataset.KeyEqual:
				rec, err = f.Find(ctx, args[1])
			case dataset.KeyGreaterOrEqual:
				rec, err = f.FindGE(ctx, args[1])
			case dataset.KeyFirst:
				rec, err = f.FindFirst(ctx)
			case dataset.KeyLast:
				rec, err = f.FindLast(ctx)
			}
			if err != nil {
				return err
			}
			if rec == nil {
				return dataset.ErrNoRecord
			}
			return printRecords(cmd.OutOrStdout(), f.Layout(), format, rec)
		},
	}

	findCmd.Flags().StringP("schema", "s", "", "Schema file (YAML or JSON)")
	findCmd.Flags().StringP("mode", "m", "eq", "Key match: eq, ge, first or last")
	findCmd.Flags().StringP("format", "f", formatJSON, "Output format: json or table")
	return findCmd
}
