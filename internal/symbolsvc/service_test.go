package symbolsvc

import (
	"regexp"
	"testing"

	"github.com/koksalmehmet/symbex/internal/symbol"
)

func TestKindAllowedExcludeWins(t *testing.T) {
	if kindAllowed(symbol.KindFunction, []symbol.Kind{symbol.KindFunction}, []symbol.Kind{symbol.KindFunction}) {
		t.Error("exclude should win even when also included")
	}
}

func TestKindAllowedNoIncludeMeansEverythingAllowed(t *testing.T) {
	if !kindAllowed(symbol.KindStruct, nil, nil) {
		t.Error("no include/exclude filters should allow every kind")
	}
}

func TestKindAllowedIncludeRestricts(t *testing.T) {
	include := []symbol.Kind{symbol.KindFunction, symbol.KindMethod}
	if !kindAllowed(symbol.KindMethod, include, nil) {
		t.Error("KindMethod should be allowed, it's in include")
	}
	if kindAllowed(symbol.KindStruct, include, nil) {
		t.Error("KindStruct should be excluded, it's not in include")
	}
}

func TestSplitJoinLinesRoundTrip(t *testing.T) {
	content := "a\nb\nc"
	lines := splitLines(content)
	if len(lines) != 3 {
		t.Fatalf("splitLines() = %v, want 3 lines", lines)
	}
	if got := joinLines(lines); got != content {
		t.Errorf("joinLines(splitLines(c)) = %q, want %q", got, content)
	}
}

func TestSplitLinesEmptyContent(t *testing.T) {
	if got := splitLines(""); got != nil {
		t.Errorf("splitLines(\"\") = %v, want nil", got)
	}
}

func TestSpliceLinesInsertReplaceDelete(t *testing.T) {
	lines := []string{"a", "b", "c", "d"}

	inserted := spliceLines(lines, 1, 1, []string{"x"})
	if joinLines(inserted) != "a\nx\nb\nc\nd" {
		t.Errorf("insert at 1 = %v", inserted)
	}

	replaced := spliceLines(lines, 1, 3, []string{"y"})
	if joinLines(replaced) != "a\ny\nd" {
		t.Errorf("replace [1,3) = %v", replaced)
	}

	deleted := spliceLines(lines, 1, 3, nil)
	if joinLines(deleted) != "a\nd" {
		t.Errorf("delete [1,3) = %v", deleted)
	}
}

func TestSpliceLinesClampsOutOfRange(t *testing.T) {
	lines := []string{"a", "b"}
	got := spliceLines(lines, -5, 50, []string{"z"})
	if joinLines(got) != "z" {
		t.Errorf("out-of-range splice = %v, want just the replacement", got)
	}
}

func TestLinesReadTrackerMarksAndChecksContainment(t *testing.T) {
	tr := newLinesReadTracker()
	if tr.wasRead("a.go", 0, 10) {
		t.Error("nothing has been read yet")
	}
	tr.markRead("a.go", 0, 10)
	if !tr.wasRead("a.go", 2, 5) {
		t.Error("a sub-range of a read range should count as read")
	}
	if tr.wasRead("a.go", 5, 20) {
		t.Error("a range extending past what was read should not count as read")
	}
	tr.reset("a.go")
	if tr.wasRead("a.go", 0, 10) {
		t.Error("reset should clear recorded ranges")
	}
}

func TestSearchFileContentFindsAndMergesConsecutiveMatches(t *testing.T) {
	// func Foo (line 2), func Bar (line 5), func Baz (line 9) -- a 2-line
	// gap before Bar and a 3-line gap before Baz.
	content := "package main\n\nfunc Foo() {}\n\n\nfunc Bar() {}\n\n\n\nfunc Baz() {}\n"
	re := regexp.MustCompile("(?s)func ")

	blocks := searchFileContent(re, content, 0, 0)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 separate match blocks with no context, got %d: %+v", len(blocks), blocks)
	}

	merged := searchFileContent(re, content, 1, 1)
	// With one line of context on each side, Foo's window (through line
	// 3) touches Bar's window (from line 4), so they merge into a single
	// block; Baz's 3-line gap is still too wide to merge.
	if len(merged) != 2 {
		t.Fatalf("expected Foo/Bar windows to merge while Baz stays separate, got %d: %+v", len(merged), merged)
	}
}

func TestSearchFileContentNoMatches(t *testing.T) {
	re := regexp.MustCompile("nope")
	if blocks := searchFileContent(re, "a\nb\nc", 0, 0); blocks != nil {
		t.Errorf("expected nil for no matches, got %+v", blocks)
	}
}
