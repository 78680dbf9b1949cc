package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/procmux/internal/config"
	"github.com/tomtom215/procmux/pkg/logging"
)

// newUpCmd is the foreground, docker-compose-style entrypoint: it starts a
// group (and its transitive dependencies) and then blocks, supervising the
// spawned processes, until interrupted. This is the realistic long-running
// counterpart to `start`/`stop`/`status`, which only make sense against a
// Surface that is still alive - a one-shot `start` followed by process exit
// would otherwise orphan whatever it just spawned, since this module keeps
// no persisted state (spec section 6) and has no daemon/IPC layer backing
// separate invocations. `up` is the shape docker-compose's own `up` command
// takes for the same reason.
//
// It is also the one production caller of config.Watcher: since `reload` is
// only permitted while nothing is running (spec section 4.G), `up` can't act
// on a file change by itself while its group is up, but it can warn the
// operator that the running supervisor and the file on disk have drifted,
// the same "watch and flag, don't auto-apply" stance the teacher's fsnotify
// reconciler takes for resources it can't safely hot-swap.
func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up <group>",
		Short: "Start a group and its dependencies, then supervise until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildSurface()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := s.StartGroup(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is up, press Ctrl-C to stop\n", args[0])

			watcher, err := config.NewWatcher(configPath)
			if err != nil {
				logging.Warn("CLI", "not watching %s for changes: %v", configPath, err)
			} else {
				defer watcher.Close()
				go watchForDrift(ctx, watcher, cmd, args[0])
			}

			<-ctx.Done()

			fmt.Fprintln(cmd.OutOrStdout(), "shutting down")
			// Use a fresh context for teardown: ctx is already Done (that's
			// what woke us), and ShutdownAll needs to run to completion
			// rather than being cancelled by the same signal that triggered it.
			return s.ShutdownAll(context.Background())
		},
	}
}

// watchForDrift logs a notice on every config-file change until ctx is done.
// It never calls Reload itself: reload is only safe while nothing is
// running (spec section 4.G), and this command's whole point is keeping
// group's services running, so the operator is told to restart manually.
func watchForDrift(ctx context.Context, w *config.Watcher, cmd *cobra.Command, group string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Changed:
			fmt.Fprintf(cmd.OutOrStdout(), "%s changed on disk; restart to apply (reload is unsafe while %s is running)\n", configPath, group)
		}
	}
}
