package viper

import "testing"

func TestNewViperEnvKeyReplacer(t *testing.T) {
	t.Setenv("RUNCTL_LOG_LEVEL", "debug")
	t.Setenv("RUNCTL_DEFAULT_MANIFEST", "/tmp/programs.yaml")

	v := NewViper("nonexistent.yaml")

	if got := v.GetString("log-level"); got != "debug" {
		t.Fatalf("expected log-level to be %q, got %q", "debug", got)
	}
	if got := v.GetString("default.manifest"); got != "/tmp/programs.yaml" {
		t.Fatalf("expected default.manifest to be %q, got %q", "/tmp/programs.yaml", got)
	}
}

func TestConfigureEnvVarsProfileWithDashes(t *testing.T) {
	t.Setenv("RUNCTL_TEAM_A_B_C_MANIFEST", "/srv/programs.yaml")

	v := NewViper("nonexistent.yaml")
	v.Set("team-a-b-c", map[string]any{})

	profile := v.Sub("team-a-b-c")
	if profile == nil {
		t.Fatal("expected profile viper, got nil")
	}
	ConfigureEnvVars(profile, "RUNCTL_TEAM_A_B_C")

	if got := profile.GetString("manifest"); got != "/srv/programs.yaml" {
		t.Fatalf("expected manifest to be %q, got %q", "/srv/programs.yaml", got)
	}
}
