package cli

import (
	"strings"
	"testing"
)

func TestRunNoArgsShowsUsage(t *testing.T) {
	if err := Run(nil); err != nil {
		t.Fatalf("Run(nil) error: %v", err)
	}
}

func TestRunUnknownSubcommand(t *testing.T) {
	err := Run([]string{"bogus"})
	if err == nil {
		t.Fatal("expected error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error should name the unknown subcommand, got: %v", err)
	}
}

func TestRunHelpVariants(t *testing.T) {
	for _, args := range [][]string{{"help"}, {"-h"}, {"--help"}} {
		if err := Run(args); err != nil {
			t.Errorf("Run(%v) error: %v", args, err)
		}
	}
}

func TestCmdOverviewMissingArg(t *testing.T) {
	if err := cmdOverview(nil); err == nil {
		t.Fatal("expected error for missing relative-path argument")
	}
}

func TestCmdFindSymbolMissingArg(t *testing.T) {
	if err := cmdFindSymbol(nil); err == nil {
		t.Fatal("expected error for missing name-path argument")
	}
}

func TestCmdFindReferencesMissingArgs(t *testing.T) {
	if err := cmdFindReferences([]string{"onlyOneArg"}); err == nil {
		t.Fatal("expected error when relative-path argument is missing")
	}
}

func TestCmdRenameRejectsNonIntegerLine(t *testing.T) {
	err := cmdRename([]string{"a.go", "not-a-number", "0", "NewName"})
	if err == nil {
		t.Fatal("expected error for non-integer line")
	}
}

func TestCmdRenameMissingArgs(t *testing.T) {
	if err := cmdRename([]string{"a.go", "1", "2"}); err == nil {
		t.Fatal("expected error when new-name argument is missing")
	}
}

func TestCmdSearchMissingArg(t *testing.T) {
	if err := cmdSearch(nil); err == nil {
		t.Fatal("expected error for missing pattern argument")
	}
}

func TestLangOrEmpty(t *testing.T) {
	if got := langOrEmpty(""); got != "" {
		t.Errorf("langOrEmpty(\"\") = %q, want empty", got)
	}
	if got := langOrEmpty("go"); string(got) != "go" {
		t.Errorf("langOrEmpty(\"go\") = %q, want \"go\"", got)
	}
}

func TestSplitCSV(t *testing.T) {
	if got := splitCSV(""); got != nil {
		t.Errorf("splitCSV(\"\") = %v, want nil", got)
	}
	got := splitCSV("go,python")
	if len(got) != 2 || got[0] != "go" || got[1] != "python" {
		t.Errorf("splitCSV(\"go,python\") = %v, want [go python]", got)
	}
}
