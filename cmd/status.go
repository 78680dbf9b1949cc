package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [service]",
		Short: "Show the status of one service, or every known service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildSurface()
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			snaps, err := s.Status(name)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "SERVICE\tSTATUS\tPID")
			for _, snap := range snaps {
				pid := "-"
				if snap.HasPID {
					pid = fmt.Sprintf("%d", snap.PID)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", snap.Service, snap.Status, pid)
			}
			return tw.Flush()
		},
	}
}
