package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/runctl/runctl/internal/event"
)

// Run drives the crash monitor until ctx is cancelled. Ticks are spaced by
// the monitor interval; each tick sweeps every program once and waits for
// the sweep to settle, so ticks never overlap.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Debug("monitor started", "interval", s.monitorInterval)

	ticker := time.NewTicker(s.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep probes every program concurrently. Probes never block (liveness is
// a channel select), so one program's transition cannot stall the others.
func (s *Supervisor) sweep() {
	var wg sync.WaitGroup
	for _, e := range s.registry.all() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.probe(e)
		}()
	}
	wg.Wait()
}

// probe flags a running program whose process has disappeared. The status
// is re-checked under the lock after the liveness observation: a
// concurrent stop that won the race moves the program to stopping or
// stopped, and the probe backs off without emitting anything.
func (s *Supervisor) probe(e *entry) {
	e.mu.Lock()
	if e.status != StatusRunning || e.proc == nil {
		e.mu.Unlock()
		return
	}
	p := e.proc
	e.mu.Unlock()

	if p.Alive() {
		return
	}

	e.mu.Lock()
	if e.status != StatusRunning || e.proc != p {
		e.mu.Unlock()
		return
	}
	var codePtr *int
	if code, err := p.ExitCode(); err == nil {
		c := code
		codePtr = &c
	}
	e.status = StatusCrashed
	e.proc = nil
	e.exitCode = codePtr
	e.changedAt = time.Now()
	id := e.spec.ID
	e.mu.Unlock()

	s.logger.Warn("program exited unexpectedly",
		"program", id, "pid", p.PID(), "exit_code", exitCodeValue(codePtr))
	s.notify(event.Event{
		Type:      event.TypeCrashed,
		ProgramID: id,
		PID:       p.PID(),
		ExitCode:  codePtr,
		Time:      time.Now(),
	})
}
