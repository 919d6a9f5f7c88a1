package main

import (
	"flag"
	"fmt"
	"os"
)

const helpText = `kdebuild builds KDE software from source: it resolves a dependency
graph from declared modules and module-sets, updates each module's git
checkout, and drives the right build system (CMake, qmake, autotools,
Meson, or a generic configure/make) to build, test and install it.

Usage: kdebuild [flags] [selector...]

A selector names a module, a module-set, or (with a leading '+') forces
kde-projects interpretation of an otherwise-unknown name. With no
selectors, every declared module and module-set is built.
`

// usage prints the help text followed by the flag set's own name and
// defaults.
func usage(fset *flag.FlagSet, helpText string) func() {
	return func() {
		fmt.Fprintln(os.Stderr, helpText)
		fmt.Fprintf(os.Stderr, "Flags for %s:\n", fset.Name())
		fset.PrintDefaults()
	}
}
