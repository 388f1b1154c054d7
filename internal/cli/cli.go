// Package cli is the entry point for the symbex manual-testing binary
// (SPEC_FULL.md §10.4): a thin Run(args) dispatcher in the teacher's
// cmd/palace's cli.Run idiom, over the five read/write operations the
// Symbol Service exposes. It is deliberately not the agent shell (spec.md
// §1's Non-goals) -- there is no MCP/stdio tool-call surface here, only a
// one-shot, print-JSON-and-exit harness for driving C7 by hand.
package cli

import (
	"fmt"

	"github.com/koksalmehmet/symbex/internal/langserver"
)

// Run parses args and dispatches to the named subcommand.
func Run(args []string) error {
	if len(args) == 0 {
		return usage()
	}
	switch args[0] {
	case "overview":
		return cmdOverview(args[1:])
	case "find-symbol":
		return cmdFindSymbol(args[1:])
	case "find-references":
		return cmdFindReferences(args[1:])
	case "rename":
		return cmdRename(args[1:])
	case "search":
		return cmdSearch(args[1:])
	case "help", "-h", "--help":
		return usage()
	default:
		return fmt.Errorf("unknown subcommand %q; run 'symbex help'", args[0])
	}
}

func usage() error {
	fmt.Println(`symbex -- manual-testing harness for the symbol service

Usage:
  symbex overview [flags] <relative-path>
  symbex find-symbol [flags] <name-path>
  symbex find-references [flags] <name-path> <relative-path>
  symbex rename [flags] <relative-path> <line> <column> <new-name>
  symbex search [flags] <pattern>

Common flags:
  -root string        project root (default ".")
  -languages string    comma-separated languages to activate, e.g. "go,python"
  -gitignore           honor .gitignore (default true)

Run 'symbex <subcommand> -h' for subcommand-specific flags.`)
	return nil
}

func langOrEmpty(s string) langserver.Language {
	if s == "" {
		return ""
	}
	return langserver.Language(s)
}
