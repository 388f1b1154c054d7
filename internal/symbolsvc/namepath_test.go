package symbolsvc

import (
	"testing"

	"github.com/koksalmehmet/symbex/internal/lspwire"
	"github.com/koksalmehmet/symbex/internal/symbol"
)

func TestMatchesNamePathLeaf(t *testing.T) {
	if !matchesNamePath("foo", "A/B/foo", false) {
		t.Error("leaf query should match regardless of ancestors")
	}
	if matchesNamePath("foo", "A/B/bar", false) {
		t.Error("leaf query should not match a different leaf")
	}
}

func TestMatchesNamePathSubstring(t *testing.T) {
	if !matchesNamePath("oo", "A/foobar", true) {
		t.Error("substring query should match a leaf containing it")
	}
	if matchesNamePath("oo", "A/foobar", false) {
		t.Error("exact query should not match a leaf that only contains it")
	}
}

func TestMatchesNamePathRelativeSuffixMatch(t *testing.T) {
	if !matchesNamePath("B/foo", "A/B/foo", false) {
		t.Error("relative query should suffix-match the ancestor chain")
	}
	if matchesNamePath("X/foo", "A/B/foo", false) {
		t.Error("relative query should not match an unrelated ancestor")
	}
}

func TestMatchesNamePathAbsolutePrefixMatch(t *testing.T) {
	if !matchesNamePath("/A/foo", "A/B/foo", false) {
		t.Error("absolute query should prefix-match, allowing deeper descendants")
	}
	if matchesNamePath("/B/foo", "A/B/foo", false) {
		t.Error("absolute query must anchor at the top, not mid-chain")
	}
}

func TestMatchesNamePathAbsoluteSingleSegmentRequiresTopLevel(t *testing.T) {
	if !matchesNamePath("/foo", "foo", false) {
		t.Error("absolute single-segment query should match a top-level symbol")
	}
	if matchesNamePath("/foo", "Bar/foo", false) {
		t.Error("absolute single-segment query must not match a nested symbol, only a top-level one")
	}
}

func TestMatchesNamePathTrailingSlashIgnored(t *testing.T) {
	if !matchesNamePath("A/foo/", "A/foo", false) {
		t.Error("trailing slash on the query should be ignored")
	}
}

func TestMatchesNamePathEmptyQueryNeverMatches(t *testing.T) {
	if matchesNamePath("/", "A/foo", false) {
		t.Error("a query that is only a slash should never match")
	}
}

func TestRangeContainsStrict(t *testing.T) {
	outer := lspwire.Range{Start: lspwire.Position{Line: 0}, End: lspwire.Position{Line: 10}}
	inner := lspwire.Range{Start: lspwire.Position{Line: 2}, End: lspwire.Position{Line: 4}}
	if !rangeContains(outer, inner) {
		t.Error("outer should strictly contain inner")
	}
	if rangeContains(outer, outer) {
		t.Error("a range must not be considered to contain itself")
	}
	if rangeContains(inner, outer) {
		t.Error("inner must not be reported as containing outer")
	}
}

func TestStampDocumentSymbolsBuildsAncestorChain(t *testing.T) {
	nodes := []lspwire.DocumentSymbol{
		{
			Name: "A",
			Children: []lspwire.DocumentSymbol{
				{Name: "B", Children: []lspwire.DocumentSymbol{{Name: "foo"}}},
			},
		},
	}
	stamped := stampDocumentSymbols("f.go", nodes, nil)
	if len(stamped) != 1 || stamped[0].NamePath != "A" {
		t.Fatalf("top-level name_path = %+v, want A", stamped)
	}
	leaf := stamped[0].Children[0].Children[0]
	if leaf.NamePath != "A/B/foo" {
		t.Errorf("leaf name_path = %q, want A/B/foo", leaf.NamePath)
	}
}

func TestStampFlatSymbolsNestsByRangeContainment(t *testing.T) {
	flat := []lspwire.SymbolInformation{
		{Name: "Outer", Location: lspwire.Location{Range: lspwire.Range{Start: lspwire.Position{Line: 0}, End: lspwire.Position{Line: 10}}}},
		{Name: "Inner", Location: lspwire.Location{Range: lspwire.Range{Start: lspwire.Position{Line: 2}, End: lspwire.Position{Line: 4}}}},
	}
	tree := stampFlatSymbols("f.go", flat)
	if len(tree) != 1 || tree[0].Name != "Outer" {
		t.Fatalf("expected one top-level symbol Outer, got %+v", tree)
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].Name != "Inner" {
		t.Fatalf("expected Inner nested under Outer, got %+v", tree[0].Children)
	}
	if tree[0].Children[0].NamePath != "Outer/Inner" {
		t.Errorf("Inner.NamePath = %q, want Outer/Inner", tree[0].Children[0].NamePath)
	}
}

func TestFlattenWalksDocumentOrder(t *testing.T) {
	tree := []symbol.Symbol{
		{Name: "A", Children: []symbol.Symbol{{Name: "B"}, {Name: "C"}}},
	}
	flat := flatten(tree)
	if len(flat) != 3 {
		t.Fatalf("flatten() returned %d symbols, want 3", len(flat))
	}
	if flat[0].Name != "A" || flat[1].Name != "B" || flat[2].Name != "C" {
		t.Errorf("flatten() order = %+v, want [A B C]", flat)
	}
}

func TestPruneDepthTruncates(t *testing.T) {
	tree := symbol.Symbol{
		Name: "A",
		Children: []symbol.Symbol{
			{Name: "B", Children: []symbol.Symbol{{Name: "C"}}},
		},
	}
	pruned := pruneDepth(tree, 0)
	if len(pruned.Children) != 0 {
		t.Errorf("depth 0 should drop all children, got %+v", pruned.Children)
	}
	pruned1 := pruneDepth(tree, 1)
	if len(pruned1.Children) != 1 || len(pruned1.Children[0].Children) != 0 {
		t.Errorf("depth 1 should keep one level and drop grandchildren, got %+v", pruned1)
	}
}

func TestEnclosingSymbolPicksInnermost(t *testing.T) {
	tree := []symbol.Symbol{
		{
			Name: "Outer",
			Location: symbol.Location{Range: symbol.Range{
				Start: symbol.Position{Line: 0}, End: symbol.Position{Line: 100},
			}},
			Children: []symbol.Symbol{
				{
					Name: "Inner",
					Location: symbol.Location{Range: symbol.Range{
						Start: symbol.Position{Line: 10}, End: symbol.Position{Line: 20},
					}},
				},
			},
		},
	}
	got := enclosingSymbol(tree, symbol.Position{Line: 15})
	if got == nil || got.Name != "Inner" {
		t.Fatalf("enclosingSymbol() = %+v, want Inner", got)
	}
	got = enclosingSymbol(tree, symbol.Position{Line: 50})
	if got == nil || got.Name != "Outer" {
		t.Fatalf("enclosingSymbol() = %+v, want Outer", got)
	}
	got = enclosingSymbol(tree, symbol.Position{Line: 200})
	if got != nil {
		t.Fatalf("enclosingSymbol() = %+v, want nil outside every range", got)
	}
}

func TestURIConversionRoundTrip(t *testing.T) {
	abs := "/home/user/project/main.go"
	uri := pathToURI(abs)
	if uri != "file:///home/user/project/main.go" {
		t.Errorf("pathToURI() = %q", uri)
	}
	if got := uriToPath(uri); got != abs {
		t.Errorf("uriToPath(pathToURI(p)) = %q, want %q", got, abs)
	}
}
