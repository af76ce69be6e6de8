package profile

import (
	"fmt"

	"github.com/runctl/runctl/internal/cmd"
	"github.com/runctl/runctl/internal/profile"
	"github.com/runctl/runctl/internal/util/i18n"
	"github.com/runctl/runctl/internal/util/normalizers"
	"github.com/segmentio/cli"
	"github.com/spf13/cobra"
)

var (
	profileUse   = "profile"
	profileShort = i18n.T("root.profile.profileShort", "Manage CLI profiles")
	profileLong  = normalizers.LongDesc(i18n.T("root.profile.profileLong",
		`The profile command displays the profiles known to the CLI configuration.

Profiles hold independent configuration sections, letting separate manifests,
log files and output preferences coexist in one configuration file.`))

	profileManager profile.Manager
)

func NewProfileCmd() *cobra.Command {
	rv := &cobra.Command{
		Use:     profileUse,
		Short:   profileShort,
		Long:    profileLong,
		Aliases: []string{"profiles"},
		RunE: func(c *cobra.Command, args []string) error {
			helper := cmd.BuildHelper(c, args)

			profileManager = c.Context().Value(profile.ProfileManagerKey).(profile.Manager)

			err := validate(helper)
			if err != nil {
				return err
			}
			return run(helper)
		},
	}
	return rv
}

func validate(helper cmd.Helper) error {
	if len(helper.GetArgs()) > 0 {
		return &cmd.ConfigurationError{
			Err: fmt.Errorf("the profile command does not accept positional arguments"),
		}
	}
	return nil
}

func run(helper cmd.Helper) error {
	outType, err := helper.GetOutputFormat()
	if err != nil {
		return &cmd.ExecutionError{
			Err: err,
		}
	}
	p, err := cli.Format(outType.String(),
		helper.GetStreams().Out)
	if err != nil {
		return err
	}
	defer p.Flush()

	p.Print(profileManager.GetProfiles())

	return nil
}
