package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/keyds/pkg/access"
	"github.com/ssargent/keyds/pkg/dataset"
)

func newDumpCmd() *cobra.Command {
	dumpCmd := &cobra.Command{
		Use:   "dump <dataset>",
		Short: "Print records in key order",
		Long: `Print records in key order, from the first record or from --from.

Examples:
  keyds dump customers
  keyds dump customers --from 00100 --limit 10 --format table`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}
			from, _ := cmd.Flags().GetString("from")
			limit, _ := cmd.Flags().GetInt("limit")
			format, _ := cmd.Flags().GetString("format")

			f, err := e.open(e.resolve(cmd, args[0]), access.ReadOnly.String())
			if err != nil {
				return err
			}
			defer closeFile(cmd.Context(), f, &err)

			mode := dataset.KeyFirst
			if from != "" {
				mode = dataset.KeyGreaterOrEqual
			}
			records, err := f.Scan(cmd.Context(), from, mode, limit)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), f.Layout(), format, records...)
		},
	}

	dumpCmd.Flags().StringP("schema", "s", "", "Schema file (YAML or JSON)")
	dumpCmd.Flags().String("from", "", "Start at the first key greater than or equal to this one")
	dumpCmd.Flags().IntP("limit", "n", 0, "Maximum number of records (0 for all)")
	dumpCmd.Flags().StringP("format", "f", formatJSON, "Output format: json or table")
	return dumpCmd
}
