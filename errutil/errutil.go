// Package errutil carries the error helpers shared by the unit-array and
// compressor packages: error chaining for multi-step writes, and invariant
// checks that cost nothing unless debugging is switched on.
package errutil

import (
	"fmt"
	"os"
)

// debug enables the Bug* invariant checks. Off by default; set LLTRIE_DEBUG=1
// to turn structural violations into panics instead of silent tolerance.
var debug bool

func init() {
	debug = os.Getenv("LLTRIE_DEBUG") == "1"
}

// First returns the first non-nil error, letting a sequence of writes be
// checked once at the end.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Bug panics with a BUG-prefixed message when debugging is on.
func Bug(format string, args ...any) {
	if !debug {
		return
	}
	panic("BUG: " + fmt.Sprintf(format, args...))
}

// BugOn is Bug gated on a condition, for inline invariant checks.
func BugOn(cond bool, format string, args ...any) {
	if debug && cond {
		Bug(format, args...)
	}
}
