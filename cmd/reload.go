package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload the config file (only permitted while nothing is running)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildSurface()
			if err != nil {
				return err
			}
			if err := s.Reload(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config reloaded")
			return nil
		},
	}
}
