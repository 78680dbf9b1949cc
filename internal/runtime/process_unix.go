//go:build !windows

package runtime

import (
	"os"
	"os/exec"
	"syscall"
)

// configureProcAttr puts the child in its own process group so its entire
// descendant tree can be signaled with a single negative-PID kill.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalProcessGroup sends sig to the process group rooted at pid. If the
// group-wide signal fails (e.g. the group leader already reaped), it falls
// back to signaling the individual process.
func signalProcessGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err != nil {
		return syscall.Kill(pid, sig)
	}
	return nil
}

// signalPID signals a single process (not its group), used when walking a
// descendant list so each process is targeted individually rather than
// relying solely on process-group delivery.
func signalPID(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// shell returns the POSIX shell invocation used to evaluate startCommand,
// per spec section 9.1.
func shell(command string) (string, []string) {
	return "sh", []string{"-c", command}
}

// exitCodeFromState implements spec section 6's "143 = SIGTERM" convention
// generally as 128+signal for any signal death.
func exitCodeFromState(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}
