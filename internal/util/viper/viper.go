package viper

import (
	"strings"

	v "github.com/spf13/viper"

	"github.com/runctl/runctl/internal/meta"
	"github.com/runctl/runctl/internal/util"
)

// InitializeDefaultViper initializes a viper instance with default values
// and a path to a file. If the file does not exist it is created with the
// default values, matching first-run behavior.
func InitializeDefaultViper(defaultValues map[string]any, path string) (*v.Viper, error) {
	if err := util.InitDir(path, 0o755); err != nil {
		return nil, err
	}

	rv := NewViper(path)

	if len(rv.AllSettings()) == 0 {
		// the loaded viper is empty, so we assume it's uninitialized and
		// seed it with the defaults, writing them back to the file
		if err := rv.MergeConfigMap(defaultValues); err != nil {
			return nil, err
		}
		if err := rv.WriteConfig(); err != nil {
			return nil, err
		}
	}

	return rv, nil
}

// NewViperE builds a viper bound to path and fails when the file cannot be
// read.
func NewViperE(path string) (*v.Viper, error) {
	rv := v.New()
	rv.SetConfigFile(path)
	ConfigureEnvVars(rv, strings.ToUpper(meta.CLIName))
	if err := rv.ReadInConfig(); err != nil {
		return nil, err
	}
	return rv, nil
}

// NewViper builds a viper bound to path, tolerating a missing file.
func NewViper(path string) *v.Viper {
	rv := v.New()
	rv.SetConfigFile(path)
	ConfigureEnvVars(rv, strings.ToUpper(meta.CLIName))
	_ = rv.ReadInConfig()
	return rv
}

// ConfigureEnvVars wires environment variable lookups for vip under the
// given prefix. Dots and dashes in config keys map to underscores, so
// `log-level` in profile `default` reads RUNCTL_DEFAULT_LOG_LEVEL.
func ConfigureEnvVars(vip *v.Viper, prefix string) {
	vip.AutomaticEnv()
	vip.SetEnvPrefix(prefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}
