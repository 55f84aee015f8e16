// Package version records the phpc build's identity, overridable at build
// time via -ldflags -X.
package version

import "fmt"

var (
	Version = "0.1.0"
	Commit  = "dev"
)

// String renders the human-readable line --version prints.
func String() string {
	return fmt.Sprintf("phpc %s (%s)", Version, Commit)
}
