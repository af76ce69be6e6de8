package verbs

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	Up      = VerbValue("up")
	List    = VerbValue("list")
	Init    = VerbValue("init")
	Help    = VerbValue("help")
	Version = VerbValue("version")
)

// Empty type to represent the _type_ Verb. Genesis is to support a key in a Context
type VerbKey struct{}

// Verb is a global instance of the VerbKey type
var Verb = VerbKey{}

// Will represent a specific Verb (up, list, init, etc)
type VerbValue string

func (v VerbValue) String() string {
	return string(v)
}

// NoPositionalArgs returns an Args validator that rejects positional arguments
// with a helpful message directing users to use the -f/--file flag instead.
// Use this for commands that accept input only via flags.
func NoPositionalArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument %q: use -f/--file to specify the program manifest", args[0])
	}
	return nil
}
