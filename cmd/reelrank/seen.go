package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSeenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seen",
		Short: "Manage the seen index",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the seen index from the ratings exports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.svc.RebuildSeen(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seen index rebuilt with %d records\n", n)
			return nil
		},
	})
	return cmd
}
