// Package initialize implements the init verb. The package is not named
// init because that is a reserved identifier in Go.
package initialize

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/runctl/runctl/internal/cmd"
	"github.com/runctl/runctl/internal/cmd/common"
	"github.com/runctl/runctl/internal/cmd/root/verbs"
	"github.com/runctl/runctl/internal/meta"
	"github.com/runctl/runctl/internal/program"
	"github.com/runctl/runctl/internal/util/i18n"
	"github.com/runctl/runctl/internal/util/normalizers"
	"github.com/spf13/cobra"
)

const (
	Verb = verbs.Init
)

var (
	initUse = Verb.String()

	initShort = i18n.T("root.verbs.init.initShort", "Create a starter program manifest")

	initLong = normalizers.LongDesc(i18n.T("root.verbs.init.initLong",
		`Use init to create a starter program manifest.

The generated file contains an annotated example program that can be edited
into a real configuration. Existing files are never overwritten.`))

	initExamples = normalizers.Examples(i18n.T("root.verbs.init.initExamples",
		fmt.Sprintf(`
		# Create a manifest in the default location
		%[1]s init
		# Create a manifest at an explicit path
		%[1]s init -f ./programs.yaml
		`, meta.CLIName)))
)

type initCmd struct {
	manifestFile string
}

func NewInitCmd() *cobra.Command {
	c := &initCmd{}

	rv := &cobra.Command{
		Use:     initUse,
		Short:   initShort,
		Long:    initLong,
		Example: initExamples,
		Args:    verbs.NoPositionalArgs,
		PersistentPreRun: func(cmdObj *cobra.Command, _ []string) {
			cmdObj.SetContext(context.WithValue(cmdObj.Context(), verbs.Verb, Verb))
		},
		RunE: func(cmdObj *cobra.Command, args []string) error {
			helper := cmd.BuildHelper(cmdObj, args)
			return c.run(helper)
		},
	}

	rv.Flags().StringVarP(&c.manifestFile, common.ManifestFileFlagName, common.ManifestFileFlagShort, "",
		"Path of the manifest file to create. Defaults to the profile's manifest location.")

	return rv
}

func (c *initCmd) run(helper cmd.Helper) error {
	path, err := cmd.ResolveManifestPath(helper, c.manifestFile)
	if err != nil {
		return &cmd.ConfigurationError{Err: err}
	}

	if err := program.WriteStarter(path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return &cmd.ConfigurationError{
				Err: fmt.Errorf("manifest %s already exists, refusing to overwrite", path),
			}
		}
		return cmd.PrepareExecutionError("failed to write starter manifest", err, helper.GetCmd())
	}

	_, err = fmt.Fprintf(helper.GetStreams().Out, "Created starter manifest at %s\n", path)
	return err
}
