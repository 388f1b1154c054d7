// Command symbex is a thin manual-testing harness over the Symbol
// Service, in the teacher's cmd/palace/main.go idiom: parse argv, hand it
// to a Run function, print any error to stderr and exit non-zero. It is
// not the agent shell (spec.md §1 explicitly excludes that); it exists so
// the core can be exercised from a terminal while building it.
package main

import (
	"fmt"
	"os"

	"github.com/koksalmehmet/symbex/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "symbex: %v\n", err)
		os.Exit(1)
	}
}
