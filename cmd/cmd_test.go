package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/procmux/internal/model"
)

// syncBuffer lets the up command's goroutine write while the test
// concurrently polls the output, which a bare bytes.Buffer doesn't allow.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const testConfigYAML = `
services:
  - name: web
    start: "echo ready; sleep 2"
    startedPatterns: ["ready"]
    stopTimeout: 1
groups:
  - name: all
    services: ["web"]
`

func withTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "procmux.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))
	return path
}

func runCmd(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	configPath = cfgPath
	rootCmd.SetArgs(args)
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestLoadCommandValidatesConfig(t *testing.T) {
	out, err := runCmd(t, withTestConfig(t), "load")
	require.NoError(t, err)
	assert.Contains(t, out, "loaded and validated")
}

func TestLoadCommandRejectsMissingConfig(t *testing.T) {
	_, err := runCmd(t, filepath.Join(t.TempDir(), "missing.yaml"), "load")
	assert.ErrorIs(t, err, model.ErrConfigInvalid)
	assert.Equal(t, ExitCodeConfigInvalid, getExitCode(err))
}

func TestStartAndStopGroupCommands(t *testing.T) {
	path := withTestConfig(t)

	out, err := runCmd(t, path, "start", "all")
	require.NoError(t, err)
	assert.Contains(t, out, "started all")

	out, err = runCmd(t, path, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "web")

	out, err = runCmd(t, path, "stop", "all")
	require.NoError(t, err)
	assert.Contains(t, out, "stopped all")
}

func TestStartUnknownNameReturnsNotFoundExitCode(t *testing.T) {
	_, err := runCmd(t, withTestConfig(t), "start", "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrServiceNotFound))
	assert.Equal(t, ExitCodeNotFound, getExitCode(err))
}

func TestUpCommandSupervisesUntilInterrupted(t *testing.T) {
	path := withTestConfig(t)

	configPath = path
	rootCmd.SetArgs([]string{"up", "all"})
	buf := &syncBuffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	done := make(chan error, 1)
	go func() { done <- rootCmd.Execute() }()

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "is up")
	}, 2*time.Second, 10*time.Millisecond, "up command never reported the group as up")

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("up command did not return after SIGINT")
	}

	assert.Contains(t, buf.String(), "shutting down")
}
