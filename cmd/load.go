package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load and validate the config file without starting anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := buildSurface(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config loaded and validated")
			return nil
		},
	}
}
