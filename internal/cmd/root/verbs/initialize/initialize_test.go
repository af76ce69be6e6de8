package initialize

import (
	"path/filepath"
	"testing"

	"github.com/runctl/runctl/internal/iostreams"
	"github.com/runctl/runctl/internal/program"
	testcmd "github.com/runctl/runctl/test/cmd"
	"github.com/stretchr/testify/require"
)

func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	c := NewInitCmd()
	require.NotNil(t, c)
	require.Equal(t, "init", c.Use)
	require.NotNil(t, c.Flags().Lookup("file"))
}

func TestRunCreatesStarterManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "programs.yaml")
	all, _, out, _ := iostreams.NewTestIOStreams()

	c := &initCmd{manifestFile: path}
	helper := &testcmd.MockHelper{
		GetStreamsMock: func() *iostreams.IOStreams { return &all },
	}

	require.NoError(t, c.run(helper))
	require.Contains(t, out.String(), path)

	manifest, err := program.Load(path)
	require.NoError(t, err)
	require.Len(t, manifest.Programs, 1)
}

func TestRunRefusesToOverwrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "programs.yaml")
	all, _, _, _ := iostreams.NewTestIOStreams()

	c := &initCmd{manifestFile: path}
	helper := &testcmd.MockHelper{
		GetStreamsMock: func() *iostreams.IOStreams { return &all },
	}

	require.NoError(t, c.run(helper))

	err := c.run(helper)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}
