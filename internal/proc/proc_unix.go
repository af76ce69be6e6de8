//go:build !windows

package proc

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setSysProcAttr places the child in its own process group, so signals
// aimed at the group reach grandchildren too.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// SignalStop asks the process to exit with SIGTERM. A process that is
// already gone is not an error.
func (h *Handle) SignalStop() error {
	if !h.Alive() {
		return nil
	}
	if err := unix.Kill(h.pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("signaling pid %d: %w", h.pid, err)
	}
	return nil
}

// Kill force-terminates the whole process group with SIGKILL, falling back
// to the process itself when the group is already gone.
func (h *Handle) Kill() error {
	if !h.Alive() {
		return nil
	}
	err := unix.Kill(-h.pid, unix.SIGKILL)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	if err := unix.Kill(h.pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("killing pid %d: %w", h.pid, err)
	}
	return nil
}
