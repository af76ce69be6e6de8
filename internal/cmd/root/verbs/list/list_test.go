package list

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/runctl/runctl/internal/config"
	"github.com/runctl/runctl/internal/iostreams"
	"github.com/runctl/runctl/internal/program"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const listTestManifest = `programs:
  - name: Web Server
    working_directory: /srv/web
    executable: ./server
    arguments: ["--port", "8080"]
  - name: Worker
    working_directory: /srv/worker
    executable: ./worker
`

func writeListTestManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "programs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(listTestManifest), 0o600))
	return path
}

func listTestContext(t *testing.T, streams *iostreams.IOStreams, outputFormat string) context.Context {
	t.Helper()

	main := viper.New()
	main.Set("default", map[string]any{
		"output": outputFormat,
		"jq": map[string]any{
			"color": map[string]any{
				"enabled": "never",
			},
		},
	})
	cfg := config.BuildProfiledConfig("default", filepath.Join(t.TempDir(), "config.yaml"), main)

	ctx := context.WithValue(context.Background(), iostreams.StreamsKey, streams)
	return context.WithValue(ctx, config.ConfigKey, config.Hook(cfg))
}

func TestNewListCmd(t *testing.T) {
	t.Parallel()

	c, err := NewListCmd()
	require.NoError(t, err)
	require.Equal(t, "list", c.Use)
	require.NotNil(t, c.Flags().Lookup("file"))
	require.NotNil(t, c.Flags().Lookup("jq"))

	names := make([]string, 0, len(c.Commands()))
	for _, child := range c.Commands() {
		names = append(names, child.Name())
	}
	require.Contains(t, names, "themes")
}

func TestListProgramsTextOutput(t *testing.T) {
	t.Parallel()

	path := writeListTestManifest(t)
	streams, _, out, _ := iostreams.NewTestIOStreams()

	c, err := NewListCmd()
	require.NoError(t, err)
	c.SetArgs([]string{"-f", path})
	c.SetOut(out)
	c.SetErr(out)

	require.NoError(t, c.ExecuteContext(listTestContext(t, &streams, "text")))

	require.Contains(t, out.String(), "web-server")
	require.Contains(t, out.String(), "./server --port 8080")
	require.Contains(t, out.String(), "worker")
}

func TestListProgramsJSONOutput(t *testing.T) {
	t.Parallel()

	path := writeListTestManifest(t)
	streams, _, out, _ := iostreams.NewTestIOStreams()

	c, err := NewListCmd()
	require.NoError(t, err)
	c.SetArgs([]string{"-f", path})
	c.SetOut(out)
	c.SetErr(out)

	require.NoError(t, c.ExecuteContext(listTestContext(t, &streams, "json")))

	require.Contains(t, out.String(), `"id"`)
	require.Contains(t, out.String(), "web-server")
}

func TestListProgramsJQRawOutput(t *testing.T) {
	t.Parallel()

	path := writeListTestManifest(t)
	streams, _, out, _ := iostreams.NewTestIOStreams()

	c, err := NewListCmd()
	require.NoError(t, err)
	c.SetArgs([]string{"-f", path, "--jq", ".[].id", "-r"})
	c.SetOut(out)
	c.SetErr(out)

	require.NoError(t, c.ExecuteContext(listTestContext(t, &streams, "json")))

	require.Equal(t, "web-server\nworker\n", out.String())
}

func TestListProgramsRejectsPositionalArgs(t *testing.T) {
	t.Parallel()

	path := writeListTestManifest(t)
	streams, _, out, _ := iostreams.NewTestIOStreams()

	c, err := NewListCmd()
	require.NoError(t, err)

	root := &cobra.Command{Use: "runctl", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(c)
	root.SetArgs([]string{"list", "datastores", "-f", path})
	root.SetOut(out)
	root.SetErr(out)

	err = root.ExecuteContext(listTestContext(t, &streams, "text"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown resource")
}

func TestListProgramsMissingManifest(t *testing.T) {
	t.Parallel()

	streams, _, out, _ := iostreams.NewTestIOStreams()

	c, err := NewListCmd()
	require.NoError(t, err)
	c.SetArgs([]string{"-f", filepath.Join(t.TempDir(), "absent.yaml")})
	c.SetOut(out)
	c.SetErr(out)

	err = c.ExecuteContext(listTestContext(t, &streams, "text"))
	require.Error(t, err)
}

func TestRenderProgramsTextEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, renderProgramsText(&buf, "/tmp/p.yaml", nil))
	require.Contains(t, buf.String(), "No programs defined")
}

func TestBuildThemeItemsMarksActive(t *testing.T) {
	items := buildThemeItems("runctl-light")

	var found bool
	for _, item := range items {
		if item.ID == "runctl-light" {
			require.True(t, item.Active)
			found = true
		} else {
			require.False(t, item.Active)
		}
	}
	require.True(t, found)
}

func TestManifestParsingForList(t *testing.T) {
	t.Parallel()

	path := writeListTestManifest(t)
	manifest, err := program.Load(path)
	require.NoError(t, err)
	require.Len(t, manifest.Programs, 2)
	require.Equal(t, "web-server", manifest.Programs[0].ID)
}
