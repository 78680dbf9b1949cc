// Package runtime drives a single service through its lifecycle state
// machine: spawning the child process, demultiplexing its stdout/stderr
// through a pattern pipe, and running the stop protocol (signal-and-destroy
// or stop-command) against the process and its descendant tree.
package runtime

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/tomtom215/procmux/internal/model"
	"github.com/tomtom215/procmux/internal/runtime/patternpipe"
	"github.com/tomtom215/procmux/pkg/logging"
)

// destroyGrace is the hard wait after the configured stop protocol before
// destroyForcibly (SIGKILL / taskkill) runs, per spec section 5.
const destroyGrace = 3 * time.Second

// Service drives one ServiceDescriptor through LOADED -> STARTING ->
// (STARTED <-> ERROR)* -> STOPPING -> STOPPED. A Service is reusable: after
// reaching STOPPED, Run may be called again, replacing the process handle.
type Service struct {
	desc   *model.ServiceDescriptor
	sink   io.Writer
	sinkMu *sync.Mutex

	bus *StatusBus

	mu         sync.Mutex
	status     Status
	cmd        *exec.Cmd
	pid        int
	matchCount int
	exitCode   int
	lastErr    error
	done       chan struct{}
}

// New constructs a Service in the LOADED state. sink is the shared output
// stream every pattern pipe writes prefixed lines to; sinkMu serializes
// writes across every service sharing that sink so interleaving stays at
// line granularity.
func New(desc *model.ServiceDescriptor, sink io.Writer, sinkMu *sync.Mutex) *Service {
	return &Service{
		desc:   desc,
		sink:   sink,
		sinkMu: sinkMu,
		bus:    newStatusBus(),
		status: LOADED,
		done:   closedChan(),
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (s *Service) Name() string { return s.desc.Name }

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CanStart is true only in LOADED or STOPPED, per spec section 4.D.
func (s *Service) CanStart() bool {
	st := s.Status()
	return st == LOADED || st == STOPPED
}

// IsRunning is true for every state where the process may still be up,
// including ERROR (spec section 9.3 preserves this from the source).
func (s *Service) IsRunning() bool {
	switch s.Status() {
	case STARTING, STARTED, ERROR, STOPPING:
		return true
	default:
		return false
	}
}

func (s *Service) PID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pid == 0 {
		return 0, false
	}
	return s.pid, true
}

// Children enumerates the current descendant process tree, post-order
// (children before their own parent), per spec section 5's "process-tree
// containment" requirement. It returns nil without error if the service has
// no live process or the host has no way to enumerate descendants (e.g.
// Windows, where taskkill /T handles tree teardown itself rather than
// requiring an explicit enumeration).
func (s *Service) Children(ctx context.Context) ([]int, error) {
	pid, ok := s.PID()
	if !ok {
		return nil, nil
	}
	return descendantsOf(pid), nil
}

func (s *Service) MatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchCount
}

func (s *Service) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Subscribe returns a channel receiving every future transition of this
// service. See StatusBus for delivery semantics.
func (s *Service) Subscribe(buf int) <-chan Transition {
	return s.bus.Subscribe(buf)
}

func (s *Service) History() []Transition {
	return s.bus.History()
}

// transition moves the state machine to "to", publishing a Transition only
// when the status actually changes (repeated started-pattern matches after
// the first must not appear as repeated STARTED transitions).
func (s *Service) transition(to Status, err error) {
	s.mu.Lock()
	from := s.status
	s.status = to
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()

	if from == to {
		return
	}
	s.bus.publish(Transition{Service: s.desc.Name, From: from, To: to, At: time.Now(), Err: err})
	if err != nil {
		logging.Error("Runtime", err, "service %s -> %s", s.desc.Name, to)
	} else {
		logging.Info("Runtime", "service %s -> %s", s.desc.Name, to)
	}
}

// onStartedMatch is the started-pattern callback. Only the first call after
// entering STARTING promotes the state to STARTED; every call increments
// the match count (spec scenario S3).
func (s *Service) onStartedMatch(string) {
	s.mu.Lock()
	s.matchCount++
	cur := s.status
	s.mu.Unlock()

	if cur == STARTING {
		s.transition(STARTED, nil)
	}
}

// onErrorMatch is the error-pattern callback: it promotes STARTING or
// STARTED to ERROR. Once in ERROR, further error lines change nothing; they
// reach the sink through the pattern pipe like any other line.
func (s *Service) onErrorMatch(line string) {
	cur := s.Status()
	if cur == STARTING || cur == STARTED {
		s.transition(ERROR, fmt.Errorf("%w: %s", model.ErrServiceReportedError, line))
	}
}

// Run spawns the process and blocks until it reaches STOPPED, whether that
// is through natural exit or a concurrent Stop(). It returns a non-nil
// error only for SpawnFailed; stream and stop-command failures are reported
// through the status bus/log, not the return value (spec section 7).
func (s *Service) Run(ctx context.Context) error {
	if !s.CanStart() {
		return nil
	}

	s.mu.Lock()
	s.done = make(chan struct{})
	s.matchCount = 0
	s.mu.Unlock()
	defer close(s.done)

	s.transition(STARTING, nil)

	name, args := shell(s.desc.StartCommand)
	cmd := exec.Command(name, args...)
	cmd.Dir = s.desc.WorkDir
	configureProcAttr(cmd)

	if s.desc.StdinFile != "" {
		f, err := os.Open(s.desc.StdinFile)
		if err != nil {
			return s.spawnFailed(fmt.Errorf("%w: opening stdinFile: %v", model.ErrSpawnFailed, err))
		}
		defer f.Close()
		cmd.Stdin = f
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.spawnFailed(fmt.Errorf("%w: %v", model.ErrSpawnFailed, err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return s.spawnFailed(fmt.Errorf("%w: %v", model.ErrSpawnFailed, err))
	}

	if err := cmd.Start(); err != nil {
		return s.spawnFailed(fmt.Errorf("%w: %v", model.ErrSpawnFailed, err))
	}

	s.mu.Lock()
	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.mu.Unlock()

	prefix := fmt.Sprintf("\x1b[38;5;%dm[%s]\x1b[0m ", s.desc.Color.ToANSI216(), s.desc.Name)

	startedMatchers := make([]patternpipe.Matcher, len(s.desc.StartedPatterns))
	for i, p := range s.desc.StartedPatterns {
		startedMatchers[i] = patternpipe.Matcher{Pattern: p, OnMatch: s.onStartedMatch}
	}
	errorMatchers := make([]patternpipe.Matcher, len(s.desc.ErrorPatterns))
	for i, p := range s.desc.ErrorPatterns {
		errorMatchers[i] = patternpipe.Matcher{Pattern: p, OnMatch: s.onErrorMatch}
	}

	var pipeWG sync.WaitGroup
	pipeWG.Add(2)
	go func() {
		defer pipeWG.Done()
		(&patternpipe.Pipe{
			Prefix:   prefix,
			Source:   stdout,
			Sink:     s.sink,
			SinkMu:   s.sinkMu,
			Matchers: startedMatchers,
			OnError: func(err error) {
				logging.Error("Runtime", fmt.Errorf("%w: %v", model.ErrStreamIO, err), "service %s stdout", s.desc.Name)
			},
		}).Run()
	}()
	go func() {
		defer pipeWG.Done()
		(&patternpipe.Pipe{
			Prefix:   prefix,
			Source:   stderr,
			Sink:     s.sink,
			SinkMu:   s.sinkMu,
			Matchers: errorMatchers,
			OnError: func(err error) {
				logging.Error("Runtime", fmt.Errorf("%w: %v", model.ErrStreamIO, err), "service %s stderr", s.desc.Name)
			},
		}).Run()
	}()

	pipeWG.Wait()
	waitErr := cmd.Wait()

	s.mu.Lock()
	s.exitCode = normalizeExitCode(cmd.ProcessState, waitErr)
	s.mu.Unlock()

	s.transition(STOPPING, nil)
	s.transition(STOPPED, nil)
	return nil
}

func (s *Service) spawnFailed(err error) error {
	// Spawn failure is fatal for this run only: state returns to LOADED
	// rather than advancing toward STOPPED, per spec section 4.D.
	s.transition(LOADED, err)
	logging.Error("Runtime", err, "service %s failed to spawn", s.desc.Name)
	return err
}

// Stop runs the stop protocol against a live process: the configured
// stopSpec (signal-to-tree or stop command), then, if the service has not
// reached STOPPED within destroyGrace, a force-destroy of whatever remains
// of its process tree. When the service does reach STOPPED within
// destroyGrace no force-destroy is sent, so a descendant that outlives the
// service's own process and output streams is left running.
func (s *Service) Stop(ctx context.Context) error {
	if !s.IsRunning() {
		return nil
	}
	s.transition(STOPPING, nil)

	s.mu.Lock()
	pid := s.pid
	timeout := time.Duration(s.desc.StopTimeout) * time.Second
	spec := s.desc.StopSpec
	done := s.done
	s.mu.Unlock()

	if pid == 0 {
		return nil
	}

	switch spec.Kind {
	case model.StopSignal:
		s.signalTree(pid, spec.Signal)
	case model.StopCommand:
		s.runStopCommand(ctx, spec.Command, timeout, done)
	}

	select {
	case <-done:
		return nil
	case <-time.After(destroyGrace):
		logging.Warn("Runtime", "service %s did not stop within grace, destroying forcibly", s.desc.Name)
		s.destroyForcibly(pid)
	}

	select {
	case <-done:
	case <-time.After(timeout):
		logging.Error("Runtime", fmt.Errorf("%w", model.ErrStopTimedOut), "service %s", s.desc.Name)
	}
	return nil
}

// signalTree delivers sig to every descendant post-order (children before
// parent) and then to the process itself, then also to the whole process
// group as a cheap belt-and-suspenders pass (spec section 5, "process-tree
// containment").
func (s *Service) signalTree(pid int, sig syscall.Signal) {
	for _, d := range descendantsOf(pid) {
		if err := signalPID(d, sig); err != nil {
			logging.Debug("Runtime", "signal %v to descendant pid %d: %v", sig, d, err)
		}
	}
	if err := signalProcessGroup(pid, sig); err != nil {
		logging.Warn("Runtime", "signal %v to pid %d: %v", sig, pid, err)
	}
}

// runStopCommand spawns the configured stop command in the service's
// working directory and waits up to timeout, racing against the service
// actually reaching STOPPED on its own (the process being stopped might
// exit before the stop command finishes).
func (s *Service) runStopCommand(ctx context.Context, command string, timeout time.Duration, done <-chan struct{}) {
	name, args := shell(command)
	cmd := exec.Command(name, args...)
	cmd.Dir = s.desc.WorkDir
	if s.desc.StopStdinFile != "" {
		if f, err := os.Open(s.desc.StopStdinFile); err == nil {
			defer f.Close()
			cmd.Stdin = f
		}
	}

	cmdDone := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		logging.Warn("Runtime", "service %s stop command failed to start: %v", s.desc.Name, err)
		return
	}
	go func() { cmdDone <- cmd.Wait() }()

	select {
	case err := <-cmdDone:
		if err != nil {
			logging.Warn("Runtime", "service %s stop command exited with error: %v", s.desc.Name, err)
		}
	case <-done:
	case <-time.After(timeout):
		logging.Warn("Runtime", "service %s stop command timed out after %s", s.desc.Name, timeout)
	}
}

// destroyForcibly sends SIGKILL (or the platform's equivalent tree
// teardown) to whatever remains of the process tree.
func (s *Service) destroyForcibly(pid int) {
	for _, d := range descendantsOf(pid) {
		_ = signalPID(d, syscall.SIGKILL)
	}
	_ = signalProcessGroup(pid, syscall.SIGKILL)
}

// normalizeExitCode implements spec section 6's convention: 0 for a clean
// exit, 143 for SIGTERM (and, generally, 128+signal for any signal death),
// math.MinInt32 if the process was never waited on, otherwise the process's
// reported exit code.
func normalizeExitCode(state *os.ProcessState, waitErr error) int {
	if state == nil {
		return math.MinInt32
	}
	return exitCodeFromState(state)
}
