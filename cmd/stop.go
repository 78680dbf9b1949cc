package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	var all bool

	c := &cobra.Command{
		Use:   "stop [service|group]",
		Short: "Stop a service or group, or every running group with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildSurface()
			if err != nil {
				return err
			}
			if all {
				if err := s.ShutdownAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "stopped everything")
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("stop requires a service or group name, or --all")
			}
			if err := s.Stop(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", args[0])
			return nil
		},
	}
	c.Flags().BoolVar(&all, "all", false, "stop every running group in reverse dependency order")
	return c
}
