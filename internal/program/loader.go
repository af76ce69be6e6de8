package program

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/runctl/runctl/internal/util"
)

// starterManifest is written by `runctl init`. The example program is a
// plain sleep so the dashboard has something harmless to drive.
const starterManifest = `# Programs managed by runctl.
#
# Each program needs a display name, a working directory, and an executable.
# The executable is resolved inside the working directory first, then on
# PATH. An explicit id overrides the one derived from the name.
settings:
  monitor_interval_seconds: 2
  log_directory: ./logs
programs:
  - name: Example Service
    working_directory: .
    executable: sleep
    arguments: ["300"]
`

// Load reads, validates and normalizes a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes manifest YAML, applies defaults and validates the result.
// Programs without an explicit id get one derived from their name.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if m.Settings.MonitorIntervalSeconds <= 0 {
		m.Settings.MonitorIntervalSeconds = DefaultMonitorIntervalSeconds
	}
	if m.Settings.LogDirectory == "" {
		m.Settings.LogDirectory = DefaultLogDirectory
	}

	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func validate(m *Manifest) error {
	if len(m.Programs) == 0 {
		return fmt.Errorf("manifest declares no programs")
	}

	seen := make(map[string]string, len(m.Programs))
	for i := range m.Programs {
		p := &m.Programs[i]
		pos := fmt.Sprintf("programs[%d]", i)

		if p.Name == "" {
			return fmt.Errorf("%s: name is required", pos)
		}
		if p.Executable == "" {
			return fmt.Errorf("%s (%s): executable is required", pos, p.Name)
		}
		if p.Dir == "" {
			return fmt.Errorf("%s (%s): working_directory is required", pos, p.Name)
		}

		if p.ID == "" {
			p.ID = util.GenerateSlug(p.Name)
		}
		if p.ID == "" {
			return fmt.Errorf("%s (%s): cannot derive an id from the name, set one explicitly", pos, p.Name)
		}
		if prev, dup := seen[p.ID]; dup {
			return fmt.Errorf("%s (%s): id %q already used by %s", pos, p.Name, p.ID, prev)
		}
		seen[p.ID] = p.Name
	}
	return nil
}

// ResolveLogDir resolves the configured log directory against the manifest's
// own directory when the configured path is relative.
func (m *Manifest) ResolveLogDir(manifestPath string) string {
	dir := m.Settings.LogDirectory
	if dir == "" {
		dir = DefaultLogDirectory
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(filepath.Dir(manifestPath), dir)
}

// WriteStarter creates a starter manifest at path, refusing to overwrite an
// existing file. Parent directories are created as needed.
func WriteStarter(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating manifest: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(starterManifest); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return f.Sync()
}
