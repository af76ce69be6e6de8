package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/runctl/runctl/internal/program"
)

// Status is the lifecycle state of a managed program.
type Status string

const (
	// StatusStopped means no process is associated with the program, either
	// because it never started or because a requested stop completed.
	StatusStopped Status = "stopped"
	// StatusStarting is the transient state while the launch is in flight.
	StatusStarting Status = "starting"
	// StatusRunning means the process was alive at the last observation.
	StatusRunning Status = "running"
	// StatusStopping is the transient state between the stop request and
	// the confirmed exit.
	StatusStopping Status = "stopping"
	// StatusCrashed means the monitor observed an exit nobody requested.
	StatusCrashed Status = "crashed"
)

// AtRest reports whether no live process is associated with the status.
func (s Status) AtRest() bool {
	return s == StatusStopped || s == StatusCrashed
}

func (s Status) String() string {
	return string(s)
}

// entry pairs a program spec with its runtime state.
type entry struct {
	spec program.Spec

	// op serializes lifecycle operations for this program. It is taken with
	// TryLock so a second concurrent operation fails fast instead of
	// queueing behind a stop's grace wait.
	op sync.Mutex

	// mu guards the fields below. It is never held across a launch, a
	// signal, or a wait, so status reads stay cheap.
	mu     sync.Mutex
	status Status
	// proc is non-nil exactly while the status is running or stopping.
	// During starting it remains nil: the handle only exists once the
	// launch returns, and op keeps anyone else from acting on the entry
	// in the meantime.
	proc      Process
	exitCode  *int
	changedAt time.Time
}

// snapshot copies the entry state under its lock. The exit code is copied
// by value so the caller cannot observe later transitions.
func (e *entry) snapshot() ProgramStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	ps := ProgramStatus{
		ID:        e.spec.ID,
		Name:      e.spec.Name,
		Status:    e.status,
		ChangedAt: e.changedAt,
	}
	if e.exitCode != nil {
		code := *e.exitCode
		ps.ExitCode = &code
	}
	if e.proc != nil {
		ps.PID = e.proc.PID()
		ps.StartedAt = e.proc.StartedAt()
		ps.InstanceID = e.proc.InstanceID()
	}
	return ps
}

// ProgramStatus is an immutable point-in-time view of one program.
type ProgramStatus struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Status     Status    `json:"status" yaml:"status"`
	PID        int       `json:"pid,omitempty" yaml:"pid,omitempty"`
	InstanceID string    `json:"instance_id,omitempty" yaml:"instance_id,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero" yaml:"started_at,omitempty"`
	ChangedAt  time.Time `json:"changed_at" yaml:"changed_at"`
}

// Registry holds every managed program in manifest order. The set is fixed
// for the lifetime of a supervisor; only per-entry state changes.
type Registry struct {
	order   []string
	entries map[string]*entry
}

// NewRegistry seeds a registry from manifest specs. Every program begins
// stopped with no recorded exit code.
func NewRegistry(specs []program.Spec) (*Registry, error) {
	r := &Registry{entries: make(map[string]*entry, len(specs))}
	now := time.Now()
	for _, s := range specs {
		if s.ID == "" {
			return nil, fmt.Errorf("program %q has no id", s.Name)
		}
		if _, ok := r.entries[s.ID]; ok {
			return nil, fmt.Errorf("duplicate program id %q", s.ID)
		}
		r.entries[s.ID] = &entry{spec: s, status: StatusStopped, changedAt: now}
		r.order = append(r.order, s.ID)
	}
	return r, nil
}

// Len reports how many programs are registered.
func (r *Registry) Len() int {
	return len(r.order)
}

// IDs lists program IDs in manifest order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) get(id string) (*entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

func (r *Registry) all() []*entry {
	out := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}
