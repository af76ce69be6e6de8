// Package event carries lifecycle notifications out of the supervisor.
// Delivery is fire-and-forget: the supervisor never waits on a sink, and a
// misbehaving sink must not be able to wedge or crash the state machine.
package event

import (
	"fmt"
	"strings"
	"time"
)

// Type classifies a lifecycle notification.
type Type string

const (
	// TypeStarted reports a successful launch.
	TypeStarted Type = "started"
	// TypeStopped reports a requested stop that completed.
	TypeStopped Type = "stopped"
	// TypeCrashed reports an exit nobody asked for.
	TypeCrashed Type = "crashed"
	// TypeError reports a fault: a failed launch, a stop that had to be
	// escalated, or a sink problem surfaced by the dispatcher.
	TypeError Type = "error"
)

// Event is a single lifecycle notification.
type Event struct {
	Type      Type      `json:"type" yaml:"type"`
	ProgramID string    `json:"program_id" yaml:"program_id"`
	PID       int       `json:"pid,omitempty" yaml:"pid,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	Message   string    `json:"message,omitempty" yaml:"message,omitempty"`
	Time      time.Time `json:"time" yaml:"time"`
}

// String renders the compact single-line form used by the log sink and the
// dashboard feed.
func (e Event) String() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	b.WriteString(" program=")
	b.WriteString(e.ProgramID)
	if e.PID > 0 {
		fmt.Fprintf(&b, " pid=%d", e.PID)
	}
	if e.ExitCode != nil {
		fmt.Fprintf(&b, " exit_code=%d", *e.ExitCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " message=%q", e.Message)
	}
	return b.String()
}

// Sink receives events. Notify must return promptly and must not panic;
// the supervisor treats delivery as best effort and swallows sink panics,
// so a sink that needs real I/O should sit behind a Dispatcher.
type Sink interface {
	Notify(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Notify(e Event) {
	f(e)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Notify(Event) {}
