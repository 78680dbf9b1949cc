// Package cmd wires the non-interactive control-surface operations (spec
// section 4.G) to a cobra CLI, following the teacher's cmd/root.go exit-code
// and SilenceUsage conventions. The interactive REPL, ANSI colorization, and
// DOT export named out of scope in spec section 1 are not implemented here.
package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/procmux/internal/model"
	"github.com/tomtom215/procmux/pkg/logging"
)

// Exit codes, matching the teacher's documented convention of mapping error
// kinds to small positive integers rather than a flat 0/1.
const (
	ExitCodeSuccess       = 0
	ExitCodeError         = 1
	ExitCodeNotFound      = 2
	ExitCodeConfigInvalid = 3
)

var rootCmd = &cobra.Command{
	Use:   "procmux",
	Short: "A local process-group supervisor",
	Long: `procmux launches shell commands declared in a YAML or JSON config,
groups them, and starts/stops groups in dependency order.`,
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "procmux.yaml", "path to the config file")
	rootCmd.AddCommand(newLoadCmd())
	rootCmd.AddCommand(newReloadCmd())
	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newUpCmd())
}

// SetVersion sets the version reported by `procmux --version`.
func SetVersion(v string) { rootCmd.Version = v }

// Execute runs the root command and maps any returned error to an exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

func getExitCode(err error) int {
	switch {
	case errors.Is(err, model.ErrServiceNotFound), errors.Is(err, model.ErrGroupNotFound):
		return ExitCodeNotFound
	case errors.Is(err, model.ErrConfigInvalid),
		errors.Is(err, model.ErrCircularDependency),
		errors.Is(err, model.ErrMaxDepthExceeded):
		return ExitCodeConfigInvalid
	default:
		logging.Error("CLI", err, "command failed")
		return ExitCodeError
	}
}
