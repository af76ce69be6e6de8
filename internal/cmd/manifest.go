package cmd

import (
	"os"
	"strings"

	"github.com/runctl/runctl/internal/cmd/common"
	"github.com/runctl/runctl/internal/config"
)

// ResolveManifestPath determines which program manifest a command should load.
// Priority: explicit flag value, then the profile's manifest setting, then the
// default manifest path under the configuration directory.
func ResolveManifestPath(helper Helper, flagValue string) (string, error) {
	if v := strings.TrimSpace(flagValue); v != "" {
		return os.ExpandEnv(v), nil
	}

	cfg, err := helper.GetConfig()
	if err != nil {
		return "", err
	}

	if v := strings.TrimSpace(cfg.GetString(common.ManifestConfigPath)); v != "" {
		return os.ExpandEnv(v), nil
	}

	return config.GetDefaultManifestPath()
}
