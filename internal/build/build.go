package build

// Info describes how the binary was built. Release builds inject the
// values through the linker; anything else reports development defaults.
type Info struct {
	Version string
	Commit  string
	Date    string
}

type Key struct{}

// InfoKey is the context key under which the build Info is stored.
var InfoKey = Key{}
