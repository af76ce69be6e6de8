// Package proc launches and tracks single OS processes on behalf of the
// supervisor. A Handle owns exactly one launched instance: it reaps the
// process on a background goroutine, records the exit code, and offers
// non-blocking liveness and termination primitives.
package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/runctl/runctl/internal/program"
)

// ErrStillRunning is returned by ExitCode while the process is alive.
var ErrStillRunning = errors.New("process is still running")

// LaunchError wraps failures that happen before the program ever ran:
// a missing working directory, an unresolvable executable, or a failed
// start syscall.
type LaunchError struct {
	Program string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %s", e.Program, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Handle tracks one launched OS process until it is reaped.
//
// All fields are written once: the launch fields before Launch returns, the
// exit fields by the reaper goroutine before done is closed. Observing done
// closed therefore guarantees the exit code is readable.
type Handle struct {
	instanceID string
	pid        int
	startedAt  time.Time
	cmd        *exec.Cmd

	done     chan struct{}
	exitCode int
}

// Launch starts the program described by spec. The working directory must
// exist; the executable is resolved inside it first and on PATH second. The
// child is detached into its own process group so a forced kill reaches any
// grandchildren it spawned.
func Launch(spec program.Spec) (*Handle, error) {
	dir, err := filepath.Abs(spec.Dir)
	if err != nil {
		return nil, &LaunchError{Program: spec.ID, Err: err}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LaunchError{Program: spec.ID, Err: fmt.Errorf("working directory %s: %w", dir, err)}
	}
	if !info.IsDir() {
		return nil, &LaunchError{Program: spec.ID, Err: fmt.Errorf("working directory %s is not a directory", dir)}
	}

	path, err := resolveExecutable(dir, spec.Executable)
	if err != nil {
		return nil, &LaunchError{Program: spec.ID, Err: err}
	}

	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = dir
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Program: spec.ID, Err: err}
	}

	h := &Handle{
		instanceID: uuid.NewString(),
		pid:        cmd.Process.Pid,
		startedAt:  time.Now(),
		cmd:        cmd,
		done:       make(chan struct{}),
	}
	go h.reap()
	return h, nil
}

// reap waits for the process and records its exit status. While reap has
// not finished, the PID cannot be recycled by the OS: the child is held as
// our zombie until the Wait completes.
func (h *Handle) reap() {
	err := h.cmd.Wait()
	if state := h.cmd.ProcessState; state != nil {
		h.exitCode = state.ExitCode()
	} else {
		_ = err
		h.exitCode = -1
	}
	close(h.done)
}

// resolveExecutable locates the binary to run. A candidate inside the
// working directory wins over one on PATH, so manifests can ship their own
// wrapper scripts without shadowing concerns.
func resolveExecutable(dir, executable string) (string, error) {
	if executable == "" {
		return "", errors.New("executable is required")
	}

	if filepath.IsAbs(executable) {
		if _, err := os.Stat(executable); err != nil {
			return "", fmt.Errorf("executable %s: %w", executable, err)
		}
		return executable, nil
	}

	candidate := filepath.Join(dir, executable)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate, nil
	}

	path, err := exec.LookPath(executable)
	if err != nil {
		return "", fmt.Errorf("executable %q not found in %s or on PATH", executable, dir)
	}
	return path, nil
}

// InstanceID identifies this launch, distinguishing restarts of the same
// program from one another.
func (h *Handle) InstanceID() string {
	return h.instanceID
}

// PID reports the OS process ID of the launched instance.
func (h *Handle) PID() int {
	return h.pid
}

// StartedAt reports when the process was launched.
func (h *Handle) StartedAt() time.Time {
	return h.startedAt
}

// Alive reports whether the process has not yet been reaped. It never
// blocks.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Done returns a channel that is closed once the exit status has been
// recorded.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitCode returns the recorded exit status. Processes killed by a signal
// report -1, matching os/exec. It fails with ErrStillRunning until the
// process has been reaped.
func (h *Handle) ExitCode() (int, error) {
	select {
	case <-h.done:
		return h.exitCode, nil
	default:
		return 0, ErrStillRunning
	}
}
