package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/runctl/runctl/internal/build"
	"github.com/runctl/runctl/internal/cmd"
	"github.com/runctl/runctl/internal/cmd/common"
	profilecmd "github.com/runctl/runctl/internal/cmd/root/profile"
	"github.com/runctl/runctl/internal/cmd/root/verbs/help"
	"github.com/runctl/runctl/internal/cmd/root/verbs/initialize"
	"github.com/runctl/runctl/internal/cmd/root/verbs/list"
	"github.com/runctl/runctl/internal/cmd/root/verbs/up"
	"github.com/runctl/runctl/internal/cmd/root/version"
	"github.com/runctl/runctl/internal/config"
	"github.com/runctl/runctl/internal/iostreams"
	"github.com/runctl/runctl/internal/log"
	"github.com/runctl/runctl/internal/meta"
	"github.com/runctl/runctl/internal/profile"
	"github.com/runctl/runctl/internal/theme"
	"github.com/runctl/runctl/internal/util/i18n"
	"github.com/runctl/runctl/internal/util/normalizers"
	"github.com/spf13/cobra"
)

var (
	rootLong = normalizers.LongDesc(i18n.T("root.rootLong", `
  runctl supervises long running programs defined in a manifest file.

  It launches them, watches for unexpected exits, and shuts them down
  gracefully, either from an interactive dashboard or headless.`))

	rootShort = i18n.T("root.rootShort", fmt.Sprintf("%s runs and supervises configured programs", meta.CLIName))

	rootCmd *cobra.Command

	// Stores the global runtime value for the configuration file path.
	// An empty value means the default location for the platform.
	configFilePath string
	currProfile    = profile.DefaultProfile

	currConfig config.Hook
	streams    *iostreams.IOStreams
	pMgr       profile.Manager
	logger     *slog.Logger
	buildInfo  *build.Info

	outputFormat = cmd.NewEnum([]string{"json", "yaml", "text"}, common.DefaultOutputFormat)
	logLevel     = cmd.NewEnum([]string{"trace", "debug", "info", "warn", "error"}, common.DefaultLogLevel)
	colorTheme   = theme.NewFlag(common.DefaultColorTheme)
	logFilePath  string
)

func newRootCmd() *cobra.Command {
	rv := &cobra.Command{
		Use:               meta.CLIName,
		Short:             rootShort,
		Long:              rootLong,
		PersistentPreRunE: preRunRoot,
	}

	// parses all flags not just the target command
	rv.TraverseChildren = true

	rv.PersistentFlags().StringVar(&configFilePath, common.ConfigFilePathFlagName, "",
		i18n.T("root."+common.ConfigFilePathFlagName,
			"Path to the configuration file to load. Defaults to $XDG_CONFIG_HOME/"+meta.CLIName+"/config.yaml."))

	rv.PersistentFlags().StringVarP(&currProfile, common.ProfileFlagName, common.ProfileFlagShort,
		currProfile,
		"Specify the profile to use for this command.")

	rv.PersistentFlags().VarP(outputFormat, common.OutputFlagName, common.OutputFlagShort,
		fmt.Sprintf(`Configures the output format.
- Config path: [ %s ]
- Allowed    : [ %s ]`,
			common.OutputConfigPath, strings.Join(outputFormat.Allowed, "|")))

	rv.PersistentFlags().Var(logLevel, common.LogLevelFlagName,
		fmt.Sprintf(`Configures the logging level.
- Config path: [ %s ]
- Allowed    : [ %s ]`,
			common.LogLevelConfigPath, strings.Join(logLevel.Allowed, "|")))

	rv.PersistentFlags().StringVar(&logFilePath, common.LogFileFlagName, "",
		fmt.Sprintf(`Path of the file logs are written to.
- Config path: [ %s ]`, common.LogFileConfigPath))

	rv.PersistentFlags().Var(colorTheme, common.ColorThemeFlagName,
		fmt.Sprintf(`Color theme used for the dashboard and styled output.
- Config path: [ %s ]`, common.ColorThemeConfigPath))

	return rv
}

func preRunRoot(c *cobra.Command, _ []string) error {
	defaultConfigFilePath, err := config.GetDefaultConfigFilePath()
	if err != nil {
		return &cmd.ConfigurationError{Err: err}
	}

	path := strings.TrimSpace(configFilePath)
	if path == "" {
		path = defaultConfigFilePath
	}

	cfg, err := config.GetConfig(path, currProfile, defaultConfigFilePath)
	if err != nil {
		return &cmd.ConfigurationError{Err: err}
	}
	currConfig = cfg
	pMgr = profile.NewManager(cfg.Viper)

	if err := bindPersistentFlags(c, cfg); err != nil {
		return &cmd.ConfigurationError{Err: err}
	}

	logger = buildLogger(cfg)

	themeName := strings.TrimSpace(cfg.GetString(common.ColorThemeConfigPath))
	if err := theme.SetCurrent(themeName); err != nil {
		logger.Warn("falling back to the default color theme",
			slog.String("theme", themeName), slog.String("error", err.Error()))
		_ = theme.SetCurrent(theme.DefaultName)
	}
	theme.SetConfiguredExplicitly(
		c.Flags().Changed(common.ColorThemeFlagName) || themeName != common.DefaultColorTheme)

	ctx := context.WithValue(c.Context(), config.ConfigKey, currConfig)
	ctx = context.WithValue(ctx, iostreams.StreamsKey, streams)
	ctx = context.WithValue(ctx, profile.ProfileManagerKey, pMgr)
	ctx = context.WithValue(ctx, build.InfoKey, buildInfo)
	ctx = context.WithValue(ctx, log.LoggerKey, logger)
	ctx = theme.ContextWithPalette(ctx, theme.Current())
	c.SetContext(ctx)

	return nil
}

func bindPersistentFlags(c *cobra.Command, cfg config.Hook) error {
	flags := c.Root().PersistentFlags()

	bindings := []struct{ flag, cfgPath string }{
		{common.OutputFlagName, common.OutputConfigPath},
		{common.LogLevelFlagName, common.LogLevelConfigPath},
		{common.LogFileFlagName, common.LogFileConfigPath},
		{common.ColorThemeFlagName, common.ColorThemeConfigPath},
	}

	for _, b := range bindings {
		f := flags.Lookup(b.flag)
		if f == nil {
			continue
		}
		if err := cfg.BindFlag(b.cfgPath, f); err != nil {
			return err
		}
	}
	return nil
}

// buildLogger assembles the process wide logger. Records go to the
// configured log file, and error records are additionally mirrored to
// stderr in a friendly format unless a command disables mirroring.
func buildLogger(cfg config.Hook) *slog.Logger {
	level := log.ConfigLevelStringToSlogLevel(cfg.GetString(common.LogLevelConfigPath))

	logPath := strings.TrimSpace(cfg.GetString(common.LogFileConfigPath))
	if logPath == "" {
		logPath = filepath.Join(filepath.Dir(cfg.GetPath()), "logs", meta.CLIName+".log")
	}

	var primaryOut io.Writer = io.Discard
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err == nil {
		if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
			primaryOut = f
		} else {
			fmt.Fprintf(streams.ErrOut, "warning: cannot open log file %s: %v\n", logPath, err)
		}
	} else {
		fmt.Fprintf(streams.ErrOut, "warning: cannot create log directory for %s: %v\n", logPath, err)
	}

	primary := slog.NewTextHandler(primaryOut, &slog.HandlerOptions{Level: level})
	secondary := log.NewFriendlyErrorHandler(streams.ErrOut)
	return slog.New(log.NewDualHandler(primary, secondary))
}

// addCommands adds the root subcommands to the command.
func addCommands() error {
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(initialize.NewInitCmd())
	rootCmd.AddCommand(profilecmd.NewProfileCmd())
	rootCmd.AddCommand(help.NewHelpCmd())

	c, e := up.NewUpCmd()
	if e != nil {
		return e
	}
	rootCmd.AddCommand(c)

	c, e = list.NewListCmd()
	if e != nil {
		return e
	}
	rootCmd.AddCommand(c)

	return nil
}

func Execute(ctx context.Context, s *iostreams.IOStreams, bi *build.Info) {
	streams = s
	buildInfo = bi
	cobra.EnableTraverseRunHooks = true

	// The profile is not part of the configuration file contents, so viper
	// cannot resolve it with its built in priorities. Look for a well known
	// environment variable and let an explicit flag override it, giving an
	// ENV_VAR < CLI_FLAG priority.
	profileEnvVar, found := os.LookupEnv(fmt.Sprintf("%s_PROFILE", strings.ToUpper(meta.CLIName)))
	if found && profileEnvVar != "" {
		currProfile = profileEnvVar
	}

	rootCmd = newRootCmd()
	if err := addCommands(); err != nil {
		fmt.Fprintf(s.ErrOut, "Error: %v\n", err)
		os.Exit(1)
	}

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		var executionError *cmd.ExecutionError
		if errors.As(err, &executionError) {
			reportExecutionError(executionError, s)
		}
		os.Exit(1)
	}
}

func reportExecutionError(execErr *cmd.ExecutionError, s *iostreams.IOStreams) {
	msg := execErr.Msg
	if msg == "" && execErr.Err != nil {
		msg = execErr.Err.Error()
	}

	if logger == nil {
		fmt.Fprintf(s.ErrOut, "Error: %s\n", msg)
		return
	}

	attrs := execErr.Attrs
	if len(attrs) == 0 && execErr.Err != nil {
		attrs = cmd.TryConvertErrorToAttrs(execErr.Err)
	}

	args := make([]any, 0, len(attrs)+2)
	if execErr.Err != nil && execErr.Err.Error() != msg {
		args = append(args, slog.String("error", execErr.Err.Error()))
	}
	args = append(args, attrs...)
	logger.Error(msg, args...)
}
