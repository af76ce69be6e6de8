package list

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/runctl/runctl/internal/cmd"
	cmdcommon "github.com/runctl/runctl/internal/cmd/common"
	"github.com/runctl/runctl/internal/config"
	"github.com/runctl/runctl/internal/theme"
	"github.com/runctl/runctl/internal/util/normalizers"
	"github.com/segmentio/cli"
	"github.com/spf13/cobra"
)

func newThemesCmd() *cobra.Command {
	rv := &cobra.Command{
		Use:   "themes",
		Short: "List available color themes",
		Long: normalizers.LongDesc(`Display all registered color themes and a small sample
of their palette.`),
		RunE: func(c *cobra.Command, args []string) error {
			helper := cmd.BuildHelper(c, args)
			return runListThemes(helper)
		},
	}

	return rv
}

type themeOutput struct {
	ID        string `json:"id"              yaml:"id"`
	Active    bool   `json:"active"          yaml:"active"`
	Primary   string `json:"primary"         yaml:"primary"`
	Secondary string `json:"secondary"       yaml:"secondary"`
	About     string `json:"about,omitempty" yaml:"about,omitempty"`
}

func runListThemes(helper cmd.Helper) error {
	streams := helper.GetStreams()
	if streams == nil {
		return fmt.Errorf("output streams unavailable")
	}

	cfg, err := helper.GetConfig()
	if err != nil {
		return err
	}

	outFormat, err := helper.GetOutputFormat()
	if err != nil {
		return err
	}

	items := buildThemeItems(activeThemeName(cfg))

	if outFormat == cmdcommon.TEXT {
		useColor := shouldRenderColor(cfg, helper.IsInteractive(), streams.Out)
		return renderThemesText(streams.Out, items, useColor)
	}

	printer, err := cli.Format(outFormat.String(), streams.Out)
	if err != nil {
		return err
	}
	defer printer.Flush()

	printer.Print(items)
	return nil
}

func shouldRenderColor(cfg config.Hook, interactive bool, outWriter io.Writer) bool {
	if !interactive {
		return false
	}

	modeStr := strings.ToLower(strings.TrimSpace(cfg.GetString(cmdcommon.ColorConfigPath)))
	mode, err := cmdcommon.ColorModeStringToIota(modeStr)
	if err != nil {
		mode = cmdcommon.ColorModeAuto
	}

	return shouldUseColor(mode, outWriter)
}

func shouldUseColor(mode cmdcommon.ColorMode, out io.Writer) bool {
	switch mode {
	case cmdcommon.ColorModeAlways:
		return true
	case cmdcommon.ColorModeNever:
		return false
	case cmdcommon.ColorModeAuto:
		fp, ok := out.(fdProvider)
		if !ok {
			return false
		}
		fd := fp.Fd()
		if fd == ^uintptr(0) {
			return false
		}
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	default:
		return false
	}
}

type fdProvider interface {
	Fd() uintptr
}

func activeThemeName(cfg config.Hook) string {
	name := strings.ToLower(strings.TrimSpace(cfg.GetString(cmdcommon.ColorThemeConfigPath)))
	if name == "" {
		name = cmdcommon.DefaultColorTheme
	}
	return name
}

func buildThemeItems(activeName string) []themeOutput {
	ids := theme.Available()
	items := make([]themeOutput, 0, len(ids))

	for _, id := range ids {
		pal, ok := theme.Get(id)
		if !ok {
			continue
		}

		items = append(items, themeOutput{
			ID:        pal.Name,
			Active:    strings.ToLower(pal.Name) == activeName,
			Primary:   pal.Color(theme.ColorPrimary).Light,
			Secondary: pal.Color(theme.ColorAccent).Light,
			About:     strings.TrimSpace(pal.About),
		})
	}

	return items
}

func renderThemesText(out io.Writer, items []themeOutput, useColor bool) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "No color themes registered.")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tPRIMARY\tSECONDARY"); err != nil {
		return err
	}
	for _, item := range items {
		id := item.ID
		if item.Active {
			id = "*" + id
		}
		if _, err := fmt.Fprintf(
			tw,
			"%s\t%s\t%s\n",
			id,
			renderSwatch(item.ID, theme.ColorPrimary, useColor, item.Primary),
			renderSwatch(item.ID, theme.ColorAccent, useColor, item.Secondary),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// renderSwatch renders a colored block sample for a theme token, falling back
// to the hex value when color output is off.
func renderSwatch(themeID string, token theme.Token, useColor bool, fallback string) string {
	if !useColor {
		return fallback
	}

	pal, ok := theme.Get(themeID)
	if !ok {
		return fallback
	}

	const blockWidth = len("SECONDARY")
	return pal.BackgroundStyle(token).Render(strings.Repeat(" ", blockWidth))
}
