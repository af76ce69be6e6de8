package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runctl/runctl/internal/event"
)

func TestSweepFlagsCrashedProgram(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	rec := &sinkRecorder{}
	s := newTestSupervisor(t, launcher, rec, "web", "worker")

	require.NoError(t, s.Start(t.Context(), "web"))
	require.NoError(t, s.Start(t.Context(), "worker"))

	launcher.proc("web").exit(5)
	s.sweep()

	st, err := s.Status("web")
	require.NoError(t, err)
	assert.Equal(t, StatusCrashed, st.Status)
	assert.Zero(t, st.PID)
	require.NotNil(t, st.ExitCode)
	assert.Equal(t, 5, *st.ExitCode)

	// The survivor is untouched.
	st, err = s.Status("worker")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st.Status)

	var crashes []event.Event
	for _, e := range rec.all() {
		if e.Type == event.TypeCrashed {
			crashes = append(crashes, e)
		}
	}
	require.Len(t, crashes, 1)
	assert.Equal(t, "web", crashes[0].ProgramID)
	require.NotNil(t, crashes[0].ExitCode)
	assert.Equal(t, 5, *crashes[0].ExitCode)
}

func TestSweepIsIdempotent(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	rec := &sinkRecorder{}
	s := newTestSupervisor(t, launcher, rec, "web")

	require.NoError(t, s.Start(t.Context(), "web"))
	launcher.proc("web").exit(1)

	s.sweep()
	s.sweep()
	s.sweep()

	var crashes int
	for _, e := range rec.all() {
		if e.Type == event.TypeCrashed {
			crashes++
		}
	}
	assert.Equal(t, 1, crashes, "a crash is reported exactly once")
}

func TestSweepBacksOffDuringStop(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	rec := &sinkRecorder{}
	s := newTestSupervisor(t, launcher, rec, "web")

	require.NoError(t, s.Start(t.Context(), "web"))

	// Simulate the window where a stop owns the program: status already
	// flipped to stopping, process about to be reaped.
	e, ok := s.registry.get("web")
	require.True(t, ok)
	e.mu.Lock()
	e.status = StatusStopping
	e.mu.Unlock()
	launcher.proc("web").exit(0)

	s.sweep()

	st, err := s.Status("web")
	require.NoError(t, err)
	assert.Equal(t, StatusStopping, st.Status, "the probe must not overwrite a stop in flight")

	for _, evt := range rec.all() {
		assert.NotEqual(t, event.TypeCrashed, evt.Type)
	}
}

func TestRunDetectsCrash(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	s := newTestSupervisor(t, launcher, nil, "web")
	require.NoError(t, s.Start(t.Context(), "web"))

	ctx, cancel := context.WithCancel(t.Context())
	runDone := make(chan error, 1)
	go func() {
		runDone <- s.Run(ctx)
	}()

	launcher.proc("web").exit(2)

	require.Eventually(t, func() bool {
		st, err := s.Status("web")
		return err == nil && st.Status == StatusCrashed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-runDone:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}

func TestRunStopsPromptlyWhenCancelled(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t, &fakeLauncher{}, nil, "web")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
