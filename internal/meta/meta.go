package meta

const (
	// CLIName is the name of the binary and the root command.
	CLIName = "runctl"

	// DefaultManifestFileName is the manifest file looked up under the
	// configuration directory when no explicit path is given.
	DefaultManifestFileName = "programs.yaml"
)
