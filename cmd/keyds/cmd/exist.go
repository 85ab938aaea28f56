package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/keyds/pkg/keyds"
)

func newExistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exist <dataset>",
		Short: "Report whether a dataset is allocated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}
			ref := e.resolve(cmd, args[0])
			ok, err := keyds.Exist(ref.path, keyds.WithMethod(e.method))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}
