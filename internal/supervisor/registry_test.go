package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runctl/runctl/internal/program"
)

func TestNewRegistryPreservesManifestOrder(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(testSpecs("zeta", "alpha", "mid"))
	require.NoError(t, err)

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, reg.IDs())

	// IDs returns a copy.
	ids := reg.IDs()
	ids[0] = "mutated"
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, reg.IDs())
}

func TestNewRegistryRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	specs := testSpecs("web", "web")
	_, err := NewRegistry(specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate program id "web"`)
}

func TestNewRegistryRejectsMissingID(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]program.Spec{{Name: "No ID", Dir: "/tmp", Executable: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no id")
}

func TestStatusAtRest(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusStopped.AtRest())
	assert.True(t, StatusCrashed.AtRest())
	assert.False(t, StatusStarting.AtRest())
	assert.False(t, StatusRunning.AtRest())
	assert.False(t, StatusStopping.AtRest())
}
