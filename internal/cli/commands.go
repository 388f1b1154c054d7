package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/koksalmehmet/symbex/internal/symbolsvc"
)

// printJSON writes v to stdout as indented JSON, the uniform output shape
// for every subcommand below -- this binary is a manual-testing harness,
// not the agent shell, so there is no further formatting layer.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func cmdOverview(args []string) error {
	fs := flag.NewFlagSet("overview", flag.ContinueOnError)
	root := fs.String("root", ".", "project root")
	languages := fs.String("languages", "", "comma-separated languages to activate")
	honorGitignore := fs.Bool("gitignore", true, "honor .gitignore")
	language := fs.String("language", "", "restrict to one language's adapter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: symbex overview [flags] <relative-path>")
	}
	relativePath := fs.Arg(0)

	ctx := context.Background()
	p, err := activate(ctx, *root, splitCSV(*languages), true, *honorGitignore)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	result, err := p.svc.Overview(ctx, relativePath, langOrEmpty(*language))
	if err != nil {
		return err
	}
	return printJSON(result)
}

func cmdFindSymbol(args []string) error {
	fs := flag.NewFlagSet("find-symbol", flag.ContinueOnError)
	root := fs.String("root", ".", "project root")
	languages := fs.String("languages", "", "comma-separated languages to activate")
	honorGitignore := fs.Bool("gitignore", true, "honor .gitignore")
	within := fs.String("within", "", "restrict the search to one file")
	substring := fs.Bool("substring", false, "match the leaf name as a substring")
	includeBody := fs.Bool("include-body", false, "include each symbol's source body")
	depth := fs.Int("depth", 0, "levels of descendants to include")
	language := fs.String("language", "", "restrict to one language's adapter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: symbex find-symbol [flags] <name-path>")
	}
	namePath := fs.Arg(0)

	ctx := context.Background()
	p, err := activate(ctx, *root, splitCSV(*languages), true, *honorGitignore)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	result, err := p.svc.FindSymbolsByNamePath(ctx, namePath, symbolsvc.FindSymbolsOptions{
		WithinRelativePath: *within,
		SubstringMatching:  *substring,
		IncludeBody:        *includeBody,
		Depth:              *depth,
		Language:           langOrEmpty(*language),
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func cmdFindReferences(args []string) error {
	fs := flag.NewFlagSet("find-references", flag.ContinueOnError)
	root := fs.String("root", ".", "project root")
	languages := fs.String("languages", "", "comma-separated languages to activate")
	honorGitignore := fs.Bool("gitignore", true, "honor .gitignore")
	includeBody := fs.Bool("include-body", false, "include each referencing symbol's source body")
	language := fs.String("language", "", "restrict to one language's adapter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: symbex find-references [flags] <name-path> <relative-path>")
	}
	namePath, relativePath := fs.Arg(0), fs.Arg(1)

	ctx := context.Background()
	p, err := activate(ctx, *root, splitCSV(*languages), true, *honorGitignore)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	result, err := p.svc.FindReferencingSymbols(ctx, namePath, relativePath, symbolsvc.FindReferencingSymbolsOptions{
		IncludeBody: *includeBody,
		Language:    langOrEmpty(*language),
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func cmdRename(args []string) error {
	fs := flag.NewFlagSet("rename", flag.ContinueOnError)
	root := fs.String("root", ".", "project root")
	languages := fs.String("languages", "", "comma-separated languages to activate")
	honorGitignore := fs.Bool("gitignore", true, "honor .gitignore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 4 {
		return fmt.Errorf("usage: symbex rename [flags] <relative-path> <line> <column> <new-name>")
	}
	relativePath := fs.Arg(0)
	line, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("line must be an integer: %w", err)
	}
	column, err := strconv.Atoi(fs.Arg(2))
	if err != nil {
		return fmt.Errorf("column must be an integer: %w", err)
	}
	newName := fs.Arg(3)

	ctx := context.Background()
	// rename_symbol only computes the WorkspaceEdit (spec.md §4.7) and
	// never writes a file itself, but RenameSymbol still rejects a
	// read-only project, so this command activates it writable.
	p, err := activate(ctx, *root, splitCSV(*languages), false, *honorGitignore)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	edit, err := p.svc.RenameSymbol(ctx, relativePath, line, column, newName)
	if err != nil {
		return err
	}
	return printJSON(edit)
}

func cmdSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	root := fs.String("root", ".", "project root")
	languages := fs.String("languages", "", "comma-separated languages to activate")
	honorGitignore := fs.Bool("gitignore", true, "honor .gitignore")
	within := fs.String("within", "", "restrict the search to one subtree")
	before := fs.Int("before", 0, "context lines before each match")
	after := fs.Int("after", 0, "context lines after each match")
	include := fs.String("include", "", "doublestar glob paths must match")
	exclude := fs.String("exclude", "", "doublestar glob paths must not match")
	codeOnly := fs.Bool("code-only", false, "restrict to recognized source files")
	language := fs.String("language", "", "restrict to one language's file set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: symbex search [flags] <pattern>")
	}
	pattern := fs.Arg(0)

	ctx := context.Background()
	p, err := activate(ctx, *root, splitCSV(*languages), true, *honorGitignore)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	result, err := p.svc.SearchPattern(pattern, symbolsvc.SearchPatternOptions{
		RelativePath:        *within,
		ContextLinesBefore:  *before,
		ContextLinesAfter:   *after,
		PathsIncludeGlob:    *include,
		PathsExcludeGlob:    *exclude,
		RestrictToCodeFiles: *codeOnly,
		Language:            langOrEmpty(*language),
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}
