//go:build windows

package proc

import (
	"errors"
	"os"
	"os/exec"
)

func setSysProcAttr(_ *exec.Cmd) {}

// SignalStop delivers os.Interrupt where supported and falls back to a hard
// kill, since Windows offers no SIGTERM equivalent for arbitrary processes.
func (h *Handle) SignalStop() error {
	if !h.Alive() {
		return nil
	}
	if err := h.cmd.Process.Signal(os.Interrupt); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return h.Kill()
	}
	return nil
}

// Kill force-terminates the process.
func (h *Handle) Kill() error {
	if !h.Alive() {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
