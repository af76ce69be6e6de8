package list

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/runctl/runctl/internal/cmd"
	"github.com/runctl/runctl/internal/cmd/common"
	jqoutput "github.com/runctl/runctl/internal/cmd/output/jq"
	"github.com/runctl/runctl/internal/cmd/root/verbs"
	"github.com/runctl/runctl/internal/meta"
	"github.com/runctl/runctl/internal/program"
	"github.com/runctl/runctl/internal/util/i18n"
	"github.com/runctl/runctl/internal/util/normalizers"
	"github.com/segmentio/cli"
	"github.com/spf13/cobra"
)

const (
	Verb = verbs.List
)

var (
	listUse = Verb.String()

	listShort = i18n.T("root.verbs.list.listShort", "List configured programs and other resources")

	listLong = normalizers.LongDesc(i18n.T("root.verbs.list.listLong",
		`Use list to display the programs defined in a manifest without starting them.

Output can be formatted in multiple ways to aid in further processing.`))

	listExamples = normalizers.Examples(i18n.T("root.verbs.list.listExamples",
		fmt.Sprintf(`
		# List the programs in the default manifest
		%[1]s list
		# List the programs in an explicit manifest
		%[1]s list -f ./programs.yaml
		# Emit program IDs only
		%[1]s list -o json --jq '.[].id' -r
		# List the available color themes
		%[1]s list themes
		`, meta.CLIName)))
)

type programListItem struct {
	ID        string `json:"id"        yaml:"id"`
	Name      string `json:"name"      yaml:"name"`
	Command   string `json:"command"   yaml:"command"`
	Directory string `json:"directory" yaml:"directory"`
}

type listCmd struct {
	manifestFile string
}

func NewListCmd() (*cobra.Command, error) {
	c := &listCmd{}

	cmdObj := &cobra.Command{
		Use:     listUse,
		Short:   listShort,
		Long:    listLong,
		Example: listExamples,
		Aliases: []string{"ls", "l"},
		PersistentPreRun: func(cmdObj *cobra.Command, _ []string) {
			cmdObj.SetContext(context.WithValue(cmdObj.Context(), verbs.Verb, Verb))
		},
		PreRunE: c.bindFlags,
		RunE:    c.runPrograms,
	}

	cmdObj.Flags().StringVarP(&c.manifestFile, common.ManifestFileFlagName, common.ManifestFileFlagShort, "",
		"Path of the program manifest to read. Defaults to the profile's manifest location.")
	jqoutput.AddFlags(cmdObj.Flags())

	cmdObj.AddCommand(newThemesCmd())

	return cmdObj, nil
}

func (c *listCmd) bindFlags(cmdObj *cobra.Command, args []string) error {
	helper := cmd.BuildHelper(cmdObj, args)
	cfg, err := helper.GetConfig()
	if err != nil {
		return err
	}
	return jqoutput.BindFlags(cfg, cmdObj.Flags())
}

func (c *listCmd) runPrograms(cmdObj *cobra.Command, args []string) error {
	helper := cmd.BuildHelper(cmdObj, args)
	if len(helper.GetArgs()) > 0 {
		return &cmd.ConfigurationError{
			Err: fmt.Errorf("unknown resource %q, the list command lists programs by default", args[0]),
		}
	}

	path, err := cmd.ResolveManifestPath(helper, c.manifestFile)
	if err != nil {
		return &cmd.ConfigurationError{Err: err}
	}

	manifest, err := program.Load(path)
	if err != nil {
		return cmd.PrepareExecutionError("failed to load program manifest", err, helper.GetCmd())
	}

	items := make([]programListItem, 0, len(manifest.Programs))
	for _, spec := range manifest.Programs {
		items = append(items, programListItem{
			ID:        spec.ID,
			Name:      spec.Name,
			Command:   spec.CommandLine(),
			Directory: spec.Dir,
		})
	}

	outType, err := helper.GetOutputFormat()
	if err != nil {
		return err
	}

	filtered, handled, err := resolveOutputPayload(helper, outType, items)
	if err != nil {
		return err
	}
	if handled {
		return nil
	}

	streams := helper.GetStreams()

	if outType == common.TEXT {
		return renderProgramsText(streams.Out, path, items)
	}

	printer, err := cli.Format(outType.String(), streams.Out)
	if err != nil {
		return err
	}
	defer printer.Flush()

	printer.Print(filtered)
	return nil
}

func resolveOutputPayload(helper cmd.Helper, outType common.OutputFormat, raw any) (any, bool, error) {
	cfg, err := helper.GetConfig()
	if err != nil {
		return nil, false, err
	}

	settings, err := jqoutput.ResolveSettings(helper.GetCmd(), cfg)
	if err != nil {
		return nil, false, err
	}
	if err := jqoutput.ValidateOutputFormat(outType, settings); err != nil {
		return nil, false, err
	}
	if !jqoutput.HasFilter(settings) {
		return raw, false, nil
	}

	filtered, handled, err := jqoutput.ApplyToRaw(raw, outType, settings, helper.GetStreams().Out)
	if err != nil {
		return nil, false, cmd.PrepareExecutionErrorWithHelper(helper, "jq filter failed", err)
	}

	return filtered, handled, nil
}

func renderProgramsText(out io.Writer, path string, items []programListItem) error {
	if out == nil {
		return nil
	}
	if len(items) == 0 {
		_, err := fmt.Fprintf(out, "No programs defined in %s.\n", path)
		return err
	}

	if _, err := fmt.Fprintf(out, "Programs in %s\n", path); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tNAME\tCOMMAND\tDIRECTORY"); err != nil {
		return err
	}
	for _, item := range items {
		if _, err := fmt.Fprintf(
			tw,
			"%s\t%s\t%s\t%s\n",
			item.ID,
			item.Name,
			item.Command,
			item.Directory,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}
