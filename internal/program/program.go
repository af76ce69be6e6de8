package program

import (
	"strings"
	"time"
)

const (
	// DefaultMonitorIntervalSeconds is the sweep cadence applied when the
	// manifest does not set one.
	DefaultMonitorIntervalSeconds = 2

	// DefaultLogDirectory is resolved relative to the manifest file.
	DefaultLogDirectory = "./logs"
)

// Spec describes a single managed program as declared in the manifest.
type Spec struct {
	// ID uniquely identifies the program across the manifest. When omitted
	// it is derived from Name.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Name is the display name shown on the dashboard.
	Name string `json:"name" yaml:"name"`

	// Dir is the working directory the program is launched from. The
	// executable is resolved against it before PATH is consulted.
	Dir string `json:"working_directory" yaml:"working_directory"`

	// Executable is a bare name, a path relative to Dir, or an absolute path.
	Executable string `json:"executable" yaml:"executable"`

	Args []string `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// CommandLine renders the executable and its arguments as one string.
func (s Spec) CommandLine() string {
	if len(s.Args) == 0 {
		return s.Executable
	}
	return s.Executable + " " + strings.Join(s.Args, " ")
}

// Settings holds manifest-wide tunables.
type Settings struct {
	MonitorIntervalSeconds int    `json:"monitor_interval_seconds" yaml:"monitor_interval_seconds"`
	LogDirectory           string `json:"log_directory" yaml:"log_directory"`
}

// MonitorInterval returns the crash-sweep cadence as a duration.
func (s Settings) MonitorInterval() time.Duration {
	secs := s.MonitorIntervalSeconds
	if secs <= 0 {
		secs = DefaultMonitorIntervalSeconds
	}
	return time.Duration(secs) * time.Second
}

// Manifest is the root document of a programs file.
type Manifest struct {
	Settings Settings `json:"settings" yaml:"settings"`
	Programs []Spec   `json:"programs" yaml:"programs"`
}

// Program returns the spec with the given ID.
func (m *Manifest) Program(id string) (Spec, bool) {
	for _, p := range m.Programs {
		if p.ID == id {
			return p, true
		}
	}
	return Spec{}, false
}

// IDs lists program IDs in manifest order.
func (m *Manifest) IDs() []string {
	ids := make([]string, 0, len(m.Programs))
	for _, p := range m.Programs {
		ids = append(ids, p.ID)
	}
	return ids
}
