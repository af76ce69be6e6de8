//go:build !windows

package proc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runctl/runctl/internal/program"
	"github.com/runctl/runctl/internal/util"
)

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit in time")
	}
}

func TestLaunchAndSignalStop(t *testing.T) {
	t.Parallel()

	h, err := Launch(program.Spec{
		ID:         "sleeper",
		Dir:        t.TempDir(),
		Executable: "sleep",
		Args:       []string{"30"},
	})
	require.NoError(t, err)

	assert.True(t, h.Alive())
	assert.Greater(t, h.PID(), 0)
	assert.True(t, util.IsValidUUID(h.InstanceID()))
	assert.False(t, h.StartedAt().IsZero())

	_, err = h.ExitCode()
	require.ErrorIs(t, err, ErrStillRunning)

	require.NoError(t, h.SignalStop())
	waitDone(t, h)

	assert.False(t, h.Alive())
	code, err := h.ExitCode()
	require.NoError(t, err)
	assert.Equal(t, -1, code) // terminated by signal
}

func TestLaunchRecordsExitCode(t *testing.T) {
	t.Parallel()

	h, err := Launch(program.Spec{
		ID:         "failer",
		Dir:        t.TempDir(),
		Executable: "sh",
		Args:       []string{"-c", "exit 7"},
	})
	require.NoError(t, err)

	waitDone(t, h)
	code, err := h.ExitCode()
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestLaunchMissingWorkdir(t *testing.T) {
	t.Parallel()

	_, err := Launch(program.Spec{
		ID:         "nodir",
		Dir:        filepath.Join(t.TempDir(), "missing"),
		Executable: "sleep",
	})
	require.Error(t, err)

	var le *LaunchError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "nodir", le.Program)
	assert.Contains(t, err.Error(), "working directory")
}

func TestLaunchWorkdirIsFile(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := Launch(program.Spec{ID: "filedir", Dir: file, Executable: "sleep"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestLaunchMissingExecutable(t *testing.T) {
	t.Parallel()

	_, err := Launch(program.Spec{
		ID:         "ghost",
		Dir:        t.TempDir(),
		Executable: "runctl-test-no-such-binary",
	})
	require.Error(t, err)

	var le *LaunchError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, err.Error(), "not found")
}

func TestResolveExecutablePrefersWorkdir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	local := filepath.Join(dir, "sleep")
	require.NoError(t, os.WriteFile(local, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	// A file in the working directory shadows the PATH binary of the same name.
	resolved, err := resolveExecutable(dir, "sleep")
	require.NoError(t, err)
	assert.Equal(t, local, resolved)

	resolved, err = resolveExecutable(dir, "sh")
	require.NoError(t, err)
	assert.NotEqual(t, filepath.Join(dir, "sh"), resolved)

	resolved, err = resolveExecutable(dir, local)
	require.NoError(t, err)
	assert.Equal(t, local, resolved)

	_, err = resolveExecutable(dir, filepath.Join(dir, "missing"))
	require.Error(t, err)

	_, err = resolveExecutable(dir, "")
	require.Error(t, err)
}

func TestKillTerminatesProcess(t *testing.T) {
	t.Parallel()

	h, err := Launch(program.Spec{
		ID:         "stubborn",
		Dir:        t.TempDir(),
		Executable: "sh",
		Args:       []string{"-c", `trap "" TERM; sleep 30`},
	})
	require.NoError(t, err)

	// Give the shell a moment to install its trap, then confirm TERM is
	// ignored and KILL is not.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, h.SignalStop())
	time.Sleep(100 * time.Millisecond)
	assert.True(t, h.Alive())

	require.NoError(t, h.Kill())
	waitDone(t, h)

	code, err := h.ExitCode()
	require.NoError(t, err)
	assert.Equal(t, -1, code)
}

func TestSignalsOnReapedProcessAreNoOps(t *testing.T) {
	t.Parallel()

	h, err := Launch(program.Spec{
		ID:         "quick",
		Dir:        t.TempDir(),
		Executable: "sh",
		Args:       []string{"-c", "exit 0"},
	})
	require.NoError(t, err)
	waitDone(t, h)

	require.NoError(t, h.SignalStop())
	require.NoError(t, h.Kill())
}
