// Package supervisor owns the lifecycle of every managed program: it is the
// only writer of program state, launches and stops processes through the
// proc package, and reports observations as events. Concurrency model: one
// mutex per program guards its state fields, a separate per-program
// operation gate serializes Start/Stop, and the crash monitor runs on the
// caller's goroutine via Run.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runctl/runctl/internal/event"
	"github.com/runctl/runctl/internal/proc"
	"github.com/runctl/runctl/internal/program"
)

const (
	// DefaultGraceTimeout is how long a stop waits between the polite
	// signal and the forced kill.
	DefaultGraceTimeout = 3 * time.Second

	// DefaultKillTimeout bounds the wait for a force-killed process to be
	// reaped.
	DefaultKillTimeout = 2 * time.Second

	// DefaultProbeInterval is the liveness poll cadence during stop waits.
	DefaultProbeInterval = 50 * time.Millisecond
)

var (
	// ErrUnknownProgram reports an ID absent from the registry.
	ErrUnknownProgram = errors.New("unknown program")

	// ErrAlreadyRunning reports a start against a program that is not at
	// rest.
	ErrAlreadyRunning = errors.New("program is not stopped")

	// ErrOperationInProgress reports a second concurrent operation on the
	// same program. The first operation owns the program until it returns;
	// callers are expected to retry rather than queue.
	ErrOperationInProgress = errors.New("another operation is in progress")
)

// Process is the running-instance contract the supervisor drives.
// *proc.Handle is the production implementation; tests substitute fakes.
type Process interface {
	InstanceID() string
	PID() int
	StartedAt() time.Time
	Alive() bool
	SignalStop() error
	Kill() error
	ExitCode() (int, error)
}

// Launcher starts processes for specs.
type Launcher interface {
	Launch(spec program.Spec) (Process, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(spec program.Spec) (Process, error)

func (f LauncherFunc) Launch(spec program.Spec) (Process, error) {
	return f(spec)
}

// procLauncher is the default Launcher, backed by proc.Launch.
type procLauncher struct{}

func (procLauncher) Launch(spec program.Spec) (Process, error) {
	h, err := proc.Launch(spec)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Options tunes a Supervisor. Zero values select the defaults.
type Options struct {
	Launcher        Launcher
	Sink            event.Sink
	Logger          *slog.Logger
	GraceTimeout    time.Duration
	KillTimeout     time.Duration
	ProbeInterval   time.Duration
	MonitorInterval time.Duration
}

// Supervisor drives every state transition for the programs in its
// registry.
type Supervisor struct {
	registry *Registry
	launcher Launcher
	sink     event.Sink
	logger   *slog.Logger

	graceTimeout    time.Duration
	killTimeout     time.Duration
	probeInterval   time.Duration
	monitorInterval time.Duration
}

// New builds a supervisor over registry.
func New(registry *Registry, opts Options) *Supervisor {
	s := &Supervisor{
		registry:        registry,
		launcher:        opts.Launcher,
		sink:            opts.Sink,
		logger:          opts.Logger,
		graceTimeout:    opts.GraceTimeout,
		killTimeout:     opts.KillTimeout,
		probeInterval:   opts.ProbeInterval,
		monitorInterval: opts.MonitorInterval,
	}
	if s.launcher == nil {
		s.launcher = procLauncher{}
	}
	if s.sink == nil {
		s.sink = event.NopSink{}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.graceTimeout <= 0 {
		s.graceTimeout = DefaultGraceTimeout
	}
	if s.killTimeout <= 0 {
		s.killTimeout = DefaultKillTimeout
	}
	if s.probeInterval <= 0 {
		s.probeInterval = DefaultProbeInterval
	}
	if s.monitorInterval <= 0 {
		s.monitorInterval = program.Settings{}.MonitorInterval()
	}
	return s
}

// Registry returns the supervised program set.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Start launches a program that is currently at rest.
//
// Entering starting clears any exit code recorded by a previous run, so a
// restarted program never advertises a stale crash next to a fresh PID.
func (s *Supervisor) Start(ctx context.Context, id string) error {
	e, ok := s.registry.get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, id)
	}
	if !e.op.TryLock() {
		return fmt.Errorf("%w: %s", ErrOperationInProgress, id)
	}
	defer e.op.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	if !e.status.AtRest() {
		status := e.status
		e.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrAlreadyRunning, id, status)
	}
	e.status = StatusStarting
	e.exitCode = nil
	e.changedAt = time.Now()
	e.mu.Unlock()

	p, err := s.launcher.Launch(e.spec)
	if err != nil {
		e.mu.Lock()
		e.status = StatusStopped
		e.changedAt = time.Now()
		e.mu.Unlock()

		s.logger.Error("program failed to start", "program", id, "error", err)
		s.notify(event.Event{
			Type:      event.TypeError,
			ProgramID: id,
			Message:   err.Error(),
			Time:      time.Now(),
		})
		return fmt.Errorf("starting %s: %w", id, err)
	}

	e.mu.Lock()
	e.proc = p
	e.status = StatusRunning
	e.changedAt = time.Now()
	e.mu.Unlock()

	s.logger.Info("program started",
		"program", id, "pid", p.PID(), "instance", p.InstanceID())
	s.notify(event.Event{
		Type:      event.TypeStarted,
		ProgramID: id,
		PID:       p.PID(),
		Time:      time.Now(),
	})
	return nil
}

// Stop takes a program out of service: a polite stop signal first, then a
// forced kill when the grace timeout lapses. Stopping a program that is
// already at rest is a no-op, not an error.
//
// When ctx is cancelled mid-wait the stop is abandoned: the program stays
// in stopping with its process attached and no kill fires afterwards. A
// later Stop picks the wait back up.
func (s *Supervisor) Stop(ctx context.Context, id string) error {
	e, ok := s.registry.get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, id)
	}
	if !e.op.TryLock() {
		return fmt.Errorf("%w: %s", ErrOperationInProgress, id)
	}
	defer e.op.Unlock()

	e.mu.Lock()
	if e.status.AtRest() {
		e.mu.Unlock()
		return nil
	}
	p := e.proc
	e.status = StatusStopping
	e.changedAt = time.Now()
	e.mu.Unlock()

	if err := p.SignalStop(); err != nil {
		s.logger.Warn("stop signal failed, relying on escalation",
			"program", id, "error", err)
	}

	forced, err := s.awaitExit(ctx, id, p)
	if err != nil && !errors.Is(err, errKillTimeout) {
		return fmt.Errorf("stopping %s: %w", id, err)
	}

	var codePtr *int
	if code, codeErr := p.ExitCode(); codeErr == nil {
		c := code
		codePtr = &c
	}

	e.mu.Lock()
	e.status = StatusStopped
	e.proc = nil
	e.exitCode = codePtr
	e.changedAt = time.Now()
	e.mu.Unlock()

	now := time.Now()
	if errors.Is(err, errKillTimeout) {
		s.logger.Error("process survived the forced kill", "program", id, "pid", p.PID())
		s.notify(event.Event{
			Type:      event.TypeError,
			ProgramID: id,
			PID:       p.PID(),
			Message:   "process did not exit after kill",
			Time:      now,
		})
	} else if forced {
		s.logger.Warn("program ignored the stop signal and was killed",
			"program", id, "pid", p.PID())
		s.notify(event.Event{
			Type:      event.TypeError,
			ProgramID: id,
			PID:       p.PID(),
			Message:   "stop escalated to kill after grace timeout",
			Time:      now,
		})
	}

	s.logger.Info("program stopped",
		"program", id, "pid", p.PID(), "exit_code", exitCodeValue(codePtr))
	s.notify(event.Event{
		Type:      event.TypeStopped,
		ProgramID: id,
		PID:       p.PID(),
		ExitCode:  codePtr,
		Time:      now,
	})
	return nil
}

// errKillTimeout flags a process that outlived even the forced kill. The
// program is still moved to stopped: leaving it in stopping forever would
// wedge every later operation on it.
var errKillTimeout = errors.New("process did not exit after kill")

// awaitExit polls for process death after the polite signal. The forced
// kill rides a timer keyed to the moment stopping began; a one-shot guard
// makes the timer and the early-exit cancellation race free, so the kill
// fires at most once and never after the wait has been abandoned.
func (s *Supervisor) awaitExit(ctx context.Context, id string, p Process) (bool, error) {
	var gate atomic.Bool   // claimed by the escalation or its canceller
	var killed atomic.Bool // records that the escalation actually fired

	timer := time.AfterFunc(s.graceTimeout, func() {
		if !gate.CompareAndSwap(false, true) {
			return
		}
		killed.Store(true)
		s.logger.Debug("grace timeout lapsed, killing", "program", id, "pid", p.PID())
		if err := p.Kill(); err != nil {
			s.logger.Error("force kill failed", "program", id, "error", err)
		}
	})
	defer timer.Stop()

	deadline := time.NewTimer(s.graceTimeout + s.killTimeout)
	defer deadline.Stop()
	probe := time.NewTicker(s.probeInterval)
	defer probe.Stop()

	for {
		if !p.Alive() {
			gate.CompareAndSwap(false, true)
			return killed.Load(), nil
		}

		select {
		case <-ctx.Done():
			gate.CompareAndSwap(false, true)
			return killed.Load(), ctx.Err()
		case <-deadline.C:
			return killed.Load(), errKillTimeout
		case <-probe.C:
		}
	}
}

// StopAll stops every program concurrently and reports the joined
// failures. Programs already at rest contribute nothing.
func (s *Supervisor) StopAll(ctx context.Context) error {
	ids := s.registry.IDs()
	errs := make([]error, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Stop(ctx, id)
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// List returns a snapshot of every program in manifest order. The result
// shares nothing with the supervisor's mutable state.
func (s *Supervisor) List() []ProgramStatus {
	out := make([]ProgramStatus, 0, s.registry.Len())
	for _, e := range s.registry.all() {
		out = append(out, e.snapshot())
	}
	return out
}

// Status returns the snapshot for a single program.
func (s *Supervisor) Status(id string) (ProgramStatus, error) {
	e, ok := s.registry.get(id)
	if !ok {
		return ProgramStatus{}, fmt.Errorf("%w: %s", ErrUnknownProgram, id)
	}
	return e.snapshot(), nil
}

// notify delivers an event without letting a sink fault reach the state
// machine.
func (s *Supervisor) notify(evt event.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event sink panicked",
				"type", string(evt.Type), "program", evt.ProgramID, "panic", r)
		}
	}()
	s.sink.Notify(evt)
}

func exitCodeValue(code *int) any {
	if code == nil {
		return "unknown"
	}
	return *code
}
