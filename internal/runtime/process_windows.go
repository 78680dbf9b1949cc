//go:build windows

package runtime

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// configureProcAttr starts the child in its own process group. Windows has
// no POSIX process-group signal delivery, so this only helps
// signalProcessGroup (below) scope taskkill to the right tree.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// signalProcessGroup on Windows has no POSIX signal semantics to honor, so
// every signal (per spec section 9.1's "best-effort destroy" degradation)
// is treated as a request to force-terminate the process tree via taskkill.
func signalProcessGroup(pid int, _ syscall.Signal) error {
	cmd := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid))
	return cmd.Run()
}

// signalPID has no POSIX equivalent on Windows; signalProcessGroup already
// tears down the whole tree via taskkill /T, so per-descendant signaling is
// a no-op here.
func signalPID(pid int, sig syscall.Signal) error { return nil }

// shell returns the Windows shell invocation used to evaluate startCommand.
// cmd.exe's "&&" support diverges from sh -c (spec section 9.1); callers
// are not guaranteed portable chained commands across platforms.
func shell(command string) (string, []string) {
	return "cmd", []string{"/c", command}
}

// exitCodeFromState has no signal semantics to normalize on Windows.
func exitCodeFromState(state *os.ProcessState) int {
	return state.ExitCode()
}
