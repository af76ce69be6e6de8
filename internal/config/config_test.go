package config

import (
	"os"
	"path/filepath"
	"testing"

	utilviper "github.com/runctl/runctl/internal/util/viper"
)

func TestBuildProfiledConfig_ProfileEnvWithDashes(t *testing.T) {
	t.Setenv("RUNCTL_TEAM_A_B_C_LOG_LEVEL", "debug")

	profile := "team-a-b-c"
	mainv := utilviper.NewViper("nonexistent.yaml")
	mainv.Set(profile, map[string]any{})

	cfg := BuildProfiledConfig(profile, "nonexistent.yaml", mainv)

	if got := cfg.GetString("log-level"); got != "debug" {
		t.Fatalf("expected log-level to be %q, got %q", "debug", got)
	}
}

func TestGetDefaultManifestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	got, err := GetDefaultManifestPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := filepath.Join("/tmp/xdg-test", "runctl", "programs.yaml")
	if got != want {
		t.Fatalf("expected manifest path %q, got %q", want, got)
	}
}

func TestGetConfigRejectsMissingExplicitPath(t *testing.T) {
	_, err := GetConfig("/nonexistent/dir/config.yaml", "default", "/other/default/config.yaml")
	if err == nil {
		t.Fatal("expected an error for a missing explicit config path")
	}
}

func TestGetConfigInitializesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := GetConfig(path, "default", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}

	if got := cfg.GetString("output"); got != "text" {
		t.Fatalf("expected default output to be %q, got %q", "text", got)
	}

	if got := cfg.GetString("manifest"); got != filepath.Join(dir, "programs.yaml") {
		t.Fatalf("expected default manifest to be %q, got %q", filepath.Join(dir, "programs.yaml"), got)
	}
}

func TestGetIntOrElse(t *testing.T) {
	profile := "default"
	mainv := utilviper.NewViper("nonexistent.yaml")
	mainv.Set(profile, map[string]any{"monitor-interval": 5})

	cfg := BuildProfiledConfig(profile, "nonexistent.yaml", mainv)

	if got := cfg.GetIntOrElse("monitor-interval", 2); got != 5 {
		t.Fatalf("expected configured value 5, got %d", got)
	}
	if got := cfg.GetIntOrElse("unset-key", 2); got != 2 {
		t.Fatalf("expected fallback value 2, got %d", got)
	}
}
