package cmd

import (
	"github.com/spf13/cobra"
)

func newDeallocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dealloc <dataset>",
		Short: "Remove a dataset and all of its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}
			ref := e.resolve(cmd, args[0])
			if err := e.method.Deallocate(ref.path); err != nil {
				return err
			}
			cmd.Printf("Deallocated %s\n", ref.path)
			return nil
		},
	}
}
