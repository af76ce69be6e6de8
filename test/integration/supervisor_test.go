//go:build integration
// +build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runctl/runctl/internal/event"
	"github.com/runctl/runctl/internal/program"
	"github.com/runctl/runctl/internal/supervisor"
)

// These tests drive the supervisor against real OS processes: sleep for a
// well behaved program, sh one-liners for crashers and programs that ignore
// SIGTERM. They are Unix shaped and excluded from the normal test run.

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("exercises sh and POSIX signals")
	}
}

func integrationManifest(t *testing.T) *program.Manifest {
	t.Helper()

	dir := t.TempDir()
	data := fmt.Sprintf(`
programs:
  - name: Sleeper
    working_directory: %[1]s
    executable: sleep
    arguments: ["30"]
  - name: One Shot
    working_directory: %[1]s
    executable: sh
    arguments: ["-c", "sleep 0.2; exit 7"]
  - name: Stubborn
    working_directory: %[1]s
    executable: sh
    arguments: ["-c", "trap '' TERM; while true; do sleep 0.05; done"]
`, dir)

	manifest, err := program.Parse([]byte(data))
	require.NoError(t, err)
	return manifest
}

func newIntegrationSupervisor(t *testing.T, sink event.Sink) *supervisor.Supervisor {
	t.Helper()

	registry, err := supervisor.NewRegistry(integrationManifest(t).Programs)
	require.NoError(t, err)

	return supervisor.New(registry, supervisor.Options{
		Sink:            sink,
		GraceTimeout:    500 * time.Millisecond,
		KillTimeout:     2 * time.Second,
		ProbeInterval:   20 * time.Millisecond,
		MonitorInterval: 50 * time.Millisecond,
	})
}

func waitForEvent(t *testing.T, events <-chan event.Event, want event.Type) event.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == want {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event within 5s", want)
		}
	}
}

func waitForStatus(t *testing.T, sup *supervisor.Supervisor, id string, want supervisor.Status) supervisor.ProgramStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := sup.Status(id)
		require.NoError(t, err)
		if st.Status == want {
			return st
		}
		time.Sleep(20 * time.Millisecond)
	}
	st, _ := sup.Status(id)
	t.Fatalf("program %s never reached %s, last status %s", id, want, st.Status)
	return supervisor.ProgramStatus{}
}

func processGone(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == syscall.ESRCH
}

func TestSupervisorLifecycle_Integration(t *testing.T) {
	requireUnix(t)

	sink := event.NewChannelSink(32)
	sup := newIntegrationSupervisor(t, sink)
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, "sleeper"))

	st, err := sup.Status("sleeper")
	require.NoError(t, err)
	assert.Equal(t, supervisor.StatusRunning, st.Status)
	assert.Positive(t, st.PID)
	assert.NotEmpty(t, st.InstanceID)
	assert.Nil(t, st.ExitCode)

	started := waitForEvent(t, sink.Events(), event.TypeStarted)
	assert.Equal(t, "sleeper", started.ProgramID)
	assert.Equal(t, st.PID, started.PID)

	require.NoError(t, sup.Stop(ctx, "sleeper"))

	stopped := waitForEvent(t, sink.Events(), event.TypeStopped)
	assert.Equal(t, "sleeper", stopped.ProgramID)
	require.NotNil(t, stopped.ExitCode)
	assert.Equal(t, -1, *stopped.ExitCode, "sleep dies from SIGTERM, not a clean exit")

	final, err := sup.Status("sleeper")
	require.NoError(t, err)
	assert.Equal(t, supervisor.StatusStopped, final.Status)
	assert.Zero(t, final.PID)
	assert.True(t, processGone(st.PID), "pid %d should be reaped", st.PID)
}

func TestSupervisorCrashDetection_Integration(t *testing.T) {
	requireUnix(t)

	sink := event.NewChannelSink(32)
	sup := newIntegrationSupervisor(t, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sup.Run(ctx) }()

	require.NoError(t, sup.Start(ctx, "one-shot"))

	crashed := waitForEvent(t, sink.Events(), event.TypeCrashed)
	assert.Equal(t, "one-shot", crashed.ProgramID)
	require.NotNil(t, crashed.ExitCode)
	assert.Equal(t, 7, *crashed.ExitCode)

	st := waitForStatus(t, sup, "one-shot", supervisor.StatusCrashed)
	require.NotNil(t, st.ExitCode)
	assert.Equal(t, 7, *st.ExitCode)

	// A crashed program can be started again, and the new run must not
	// advertise the old exit code.
	require.NoError(t, sup.Start(ctx, "one-shot"))
	st, err := sup.Status("one-shot")
	require.NoError(t, err)
	assert.Equal(t, supervisor.StatusRunning, st.Status)
	assert.Nil(t, st.ExitCode)

	require.NoError(t, sup.StopAll(context.Background()))
}

func TestSupervisorStopEscalation_Integration(t *testing.T) {
	requireUnix(t)

	sink := event.NewChannelSink(32)
	sup := newIntegrationSupervisor(t, sink)
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, "stubborn"))
	st := waitForStatus(t, sup, "stubborn", supervisor.StatusRunning)

	begin := time.Now()
	require.NoError(t, sup.Stop(ctx, "stubborn"))
	elapsed := time.Since(begin)

	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond,
		"the polite signal is ignored, so the stop must ride out the grace timeout")
	assert.Less(t, elapsed, 1500*time.Millisecond,
		"the kill lands right after the grace timeout, well before the kill timeout would expire")

	escalation := waitForEvent(t, sink.Events(), event.TypeError)
	assert.Equal(t, "stubborn", escalation.ProgramID)
	assert.Contains(t, escalation.Message, "escalated")

	stopped := waitForEvent(t, sink.Events(), event.TypeStopped)
	assert.Equal(t, "stubborn", stopped.ProgramID)

	final, err := sup.Status("stubborn")
	require.NoError(t, err)
	assert.Equal(t, supervisor.StatusStopped, final.Status)
	assert.True(t, processGone(st.PID))
}

func TestSupervisorStartFailure_Integration(t *testing.T) {
	requireUnix(t)

	dir := t.TempDir()
	manifest, err := program.Parse(fmt.Appendf(nil, `
programs:
  - name: Ghost
    working_directory: %s
    executable: ./no-such-binary
`, dir))
	require.NoError(t, err)

	registry, err := supervisor.NewRegistry(manifest.Programs)
	require.NoError(t, err)

	sink := event.NewChannelSink(8)
	sup := supervisor.New(registry, supervisor.Options{Sink: sink})

	err = sup.Start(context.Background(), "ghost")
	require.Error(t, err)

	errEvent := waitForEvent(t, sink.Events(), event.TypeError)
	assert.Equal(t, "ghost", errEvent.ProgramID)

	st, err := sup.Status("ghost")
	require.NoError(t, err)
	assert.Equal(t, supervisor.StatusStopped, st.Status)
}

func TestSupervisorEventLogFile_Integration(t *testing.T) {
	requireUnix(t)

	logPath := filepath.Join(t.TempDir(), "logs", event.LogFileName)
	logSink := event.NewLogSink(logPath, nil)
	dispatcher := event.NewDispatcher(logSink, nil, 0)

	sup := newIntegrationSupervisor(t, dispatcher)
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, "sleeper"))
	require.NoError(t, sup.Stop(ctx, "sleeper"))
	dispatcher.Close()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "started program=sleeper")
	assert.Contains(t, string(data), "stopped program=sleeper")
}
