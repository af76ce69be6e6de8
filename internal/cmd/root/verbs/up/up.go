package up

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"github.com/runctl/runctl/internal/cmd"
	"github.com/runctl/runctl/internal/cmd/common"
	"github.com/runctl/runctl/internal/cmd/root/verbs"
	"github.com/runctl/runctl/internal/event"
	"github.com/runctl/runctl/internal/iostreams"
	"github.com/runctl/runctl/internal/log"
	"github.com/runctl/runctl/internal/meta"
	"github.com/runctl/runctl/internal/program"
	"github.com/runctl/runctl/internal/supervisor"
	"github.com/runctl/runctl/internal/theme"
	"github.com/runctl/runctl/internal/tui"
	"github.com/runctl/runctl/internal/util/i18n"
	"github.com/runctl/runctl/internal/util/normalizers"
	"github.com/spf13/cobra"
)

const (
	Verb = verbs.Up

	startFlagName    = "start"
	startAllFlagName = "start-all"
	headlessFlagName = "headless"

	// feedBacklog bounds the dashboard's event feed channel. Bursts beyond
	// it shed the oldest entries; the log sink still records everything.
	feedBacklog = 128

	// stopAllTimeout bounds the final sweep on the way out. It covers a
	// full graceful-then-forceful stop with headroom for slow exits.
	stopAllTimeout = supervisor.DefaultGraceTimeout + supervisor.DefaultKillTimeout + 5*time.Second
)

var (
	upUse = Verb.String()

	upShort = i18n.T("root.verbs.up.upShort", "Supervise the programs in a manifest")

	upLong = normalizers.LongDesc(i18n.T("root.verbs.up.upLong",
		`Use up to supervise the programs defined in a manifest.

By default up opens an interactive dashboard showing every program's state,
PID and uptime. Programs can be started and stopped from the dashboard, and
every lifecycle event is appended to the manifest's event log.

With --headless the dashboard is skipped: events are printed to stdout and
supervision continues until the process is interrupted.`))

	upExamples = normalizers.Examples(i18n.T("root.verbs.up.upExamples",
		fmt.Sprintf(`
		# Open the dashboard for the default manifest
		%[1]s up
		# Supervise an explicit manifest and start every program immediately
		%[1]s up -f ./programs.yaml --start-all
		# Start specific programs on entry
		%[1]s up --start web-server --start worker
		# Run without the dashboard, e.g. under a service manager
		%[1]s up --headless --start-all
		`, meta.CLIName)))
)

type upCmd struct {
	manifestFile string
	headless     bool
	startAll     bool
	startIDs     []string
}

func NewUpCmd() (*cobra.Command, error) {
	c := &upCmd{}

	cmdObj := &cobra.Command{
		Use:     upUse,
		Short:   upShort,
		Long:    upLong,
		Example: upExamples,
		Args:    verbs.NoPositionalArgs,
		PersistentPreRun: func(cmdObj *cobra.Command, _ []string) {
			cmdObj.SetContext(context.WithValue(cmdObj.Context(), verbs.Verb, Verb))
		},
		RunE: c.run,
	}

	cmdObj.Flags().StringVarP(&c.manifestFile, common.ManifestFileFlagName, common.ManifestFileFlagShort, "",
		"Path of the program manifest to supervise. Defaults to the profile's manifest location.")
	cmdObj.Flags().StringArrayVar(&c.startIDs, startFlagName, nil,
		"Program ID to start immediately. May be given multiple times.")
	cmdObj.Flags().BoolVar(&c.startAll, startAllFlagName, false,
		"Start every program in the manifest immediately.")
	cmdObj.Flags().BoolVar(&c.headless, headlessFlagName, false,
		"Run without the dashboard, printing events to stdout.")

	return cmdObj, nil
}

func (c *upCmd) run(cmdObj *cobra.Command, args []string) error {
	helper := cmd.BuildHelper(cmdObj, args)

	path, err := cmd.ResolveManifestPath(helper, c.manifestFile)
	if err != nil {
		return &cmd.ConfigurationError{Err: err}
	}

	manifest, err := program.Load(path)
	if err != nil {
		return cmd.PrepareExecutionError("failed to load program manifest", err, helper.GetCmd())
	}

	targets, err := resolveStartTargets(manifest, c.startAll, c.startIDs)
	if err != nil {
		return &cmd.ConfigurationError{Err: err}
	}

	logger, err := helper.GetLogger()
	if err != nil {
		return err
	}
	streams := helper.GetStreams()

	registry, err := supervisor.NewRegistry(manifest.Programs)
	if err != nil {
		return cmd.PrepareExecutionError("failed to build program registry", err, helper.GetCmd())
	}

	logPath := filepath.Join(manifest.ResolveLogDir(path), event.LogFileName)
	logSink := event.NewLogSink(logPath, logger)
	feed := event.NewChannelSink(feedBacklog)

	interactive := helper.IsInteractive() && !c.headless

	sinks := []event.Sink{logSink}
	if interactive {
		sinks = append(sinks, feed)
	} else {
		sinks = append(sinks, event.SinkFunc(func(e event.Event) {
			fmt.Fprintln(streams.Out, eventLine(e))
		}))
	}

	dispatcher := event.NewDispatcher(event.MultiSink(sinks...), logger, 0)
	defer dispatcher.Close()

	sup := supervisor.New(registry, supervisor.Options{
		Sink:            dispatcher,
		Logger:          logger,
		MonitorInterval: manifest.Settings.MonitorInterval(),
	})

	ctx := helper.GetContext()
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go func() {
		_ = sup.Run(monitorCtx)
	}()

	for _, id := range targets {
		if err := sup.Start(ctx, id); err != nil {
			logger.Warn("initial start failed", "program", id, "error", err)
		}
	}

	var runErr error
	if interactive {
		runErr = c.runDashboard(ctx, streams, logger, sup, manifest, path, feed)
	} else {
		runErr = c.runHeadless(ctx, streams, registry, path, logPath)
	}

	stopMonitor()

	// The dashboard stops everything before quitting and StopAll is
	// idempotent, so this sweep only does work after an interrupt.
	stopCtx, cancel := context.WithTimeout(context.Background(), stopAllTimeout)
	defer cancel()
	if err := sup.StopAll(stopCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("stopping programs: %w", err)
	}

	if runErr != nil {
		return cmd.PrepareExecutionErrorWithHelper(helper, "supervision failed", runErr)
	}
	return nil
}

func (c *upCmd) runDashboard(ctx context.Context, streams *iostreams.IOStreams, logger *slog.Logger,
	sup *supervisor.Supervisor, manifest *program.Manifest, path string, feed *event.ChannelSink,
) error {
	// The dashboard owns the terminal while it runs; mirroring warnings to
	// stderr would tear the display.
	log.DisableErrorMirroring()
	defer log.EnableErrorMirroring()

	return tui.Run(ctx, streams, tui.Options{
		Controller:   sup,
		Manifest:     manifest,
		ManifestPath: path,
		Events:       feed.Events(),
		Palette:      resolvePalette(ctx),
		Logger:       logger,
	})
}

func (c *upCmd) runHeadless(ctx context.Context, streams *iostreams.IOStreams,
	registry *supervisor.Registry, path string, logPath string,
) error {
	fmt.Fprintf(streams.Out, "Supervising %d programs from %s\n", registry.Len(), path)
	fmt.Fprintf(streams.Out, "Event log: %s\n", logPath)
	<-ctx.Done()
	fmt.Fprintln(streams.Out, "Stopping all programs...")
	return nil
}

// resolveStartTargets expands the --start/--start-all flags into program IDs,
// rejecting IDs the manifest does not define.
func resolveStartTargets(manifest *program.Manifest, all bool, ids []string) ([]string, error) {
	if all {
		return manifest.IDs(), nil
	}

	seen := make(map[string]struct{}, len(ids))
	targets := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		if _, ok := manifest.Program(id); !ok {
			return nil, fmt.Errorf("program %q is not defined in the manifest, run '%s list' to see available IDs",
				id, meta.CLIName)
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}
	return targets, nil
}

func eventLine(e event.Event) string {
	return e.Time.UTC().Format(time.RFC3339) + " " + e.String()
}

// resolvePalette honors an explicitly configured theme and otherwise picks
// the light palette on light terminal backgrounds.
func resolvePalette(ctx context.Context) theme.Palette {
	pal := theme.FromContext(ctx)
	if theme.IsConfiguredExplicitly() {
		return pal
	}
	if !termenv.HasDarkBackground() {
		if light, ok := theme.Get(theme.LightName); ok {
			return light
		}
	}
	return pal
}
