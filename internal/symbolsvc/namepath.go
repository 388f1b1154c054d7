// name-path matching and tree annotation, spec.md §4.7.1: the symbol
// service walks a file's hierarchical documentSymbol tree once and stamps
// every node with its full name_path before anything else touches it;
// matching a query name_path against a stamped tree is then pure string
// work, no further LSP interaction. Grounded on the recursive tree-walk
// shape of apps/cli/internal/analysis/parser_go_lsp.go's convertSymbol,
// generalized from "carry line ranges down" to "carry an ancestor chain
// down."
package symbolsvc

import (
	"strings"

	"github.com/koksalmehmet/symbex/internal/lspwire"
	"github.com/koksalmehmet/symbex/internal/symbol"
)

// stampDocumentSymbols converts a hierarchical LSP DocumentSymbol tree
// into our Symbol tree, annotating every node with its name_path.
func stampDocumentSymbols(relativePath string, nodes []lspwire.DocumentSymbol, ancestors []string) []symbol.Symbol {
	out := make([]symbol.Symbol, 0, len(nodes))
	for _, n := range nodes {
		namePath := strings.Join(append(append([]string{}, ancestors...), n.Name), "/")
		s := symbol.Symbol{
			Name:     n.Name,
			NamePath: namePath,
			Kind:     symbol.Kind(n.Kind),
			Location: symbol.Location{
				RelativePath: relativePath,
				Range:        toSymbolRange(n.Range),
			},
			SelectionRange: toSymbolRange(n.SelectionRange),
		}
		if len(n.Children) > 0 {
			s.Children = stampDocumentSymbols(relativePath, n.Children, append(append([]string{}, ancestors...), n.Name))
		}
		out = append(out, s)
	}
	return out
}

// stampFlatSymbols rebuilds a tree from the flat SymbolInformation shape
// some servers return instead of hierarchical DocumentSymbol (spec.md
// §4.3's documented edge case), nesting a symbol under the smallest
// other symbol whose range contains it.
func stampFlatSymbols(relativePath string, flat []lspwire.SymbolInformation) []symbol.Symbol {
	type node struct {
		sym      symbol.Symbol
		lspRange lspwire.Range
		children []int
		parent   int // -1 if top-level
	}
	nodes := make([]node, len(flat))
	for i, f := range flat {
		nodes[i] = node{
			sym: symbol.Symbol{
				Name: f.Name,
				Kind: symbol.Kind(f.Kind),
				Location: symbol.Location{
					RelativePath: relativePath,
					Range:        toSymbolRange(f.Location.Range),
				},
				SelectionRange: toSymbolRange(f.Location.Range),
			},
			lspRange: f.Location.Range,
			parent:   -1,
		}
	}

	for i := range nodes {
		bestParent := -1
		for j := range nodes {
			if i == j || !rangeContains(nodes[j].lspRange, nodes[i].lspRange) {
				continue
			}
			if bestParent == -1 || rangeContains(nodes[bestParent].lspRange, nodes[j].lspRange) {
				bestParent = j
			}
		}
		nodes[i].parent = bestParent
		if bestParent != -1 {
			nodes[bestParent].children = append(nodes[bestParent].children, i)
		}
	}

	var build func(i int, ancestors []string) symbol.Symbol
	build = func(i int, ancestors []string) symbol.Symbol {
		s := nodes[i].sym
		s.NamePath = strings.Join(append(append([]string{}, ancestors...), s.Name), "/")
		childAncestors := append(append([]string{}, ancestors...), s.Name)
		for _, c := range nodes[i].children {
			s.Children = append(s.Children, build(c, childAncestors))
		}
		return s
	}

	var out []symbol.Symbol
	for i := range nodes {
		if nodes[i].parent == -1 {
			out = append(out, build(i, nil))
		}
	}
	return out
}

// rangeContains reports whether outer strictly contains inner (inner is
// not simply equal to outer), the containment test the flat-symbol
// reconstruction nests children by.
func rangeContains(outer, inner lspwire.Range) bool {
	if outer == inner {
		return false
	}
	startsBefore := outer.Start.Line < inner.Start.Line ||
		(outer.Start.Line == inner.Start.Line && outer.Start.Character <= inner.Start.Character)
	endsAfter := outer.End.Line > inner.End.Line ||
		(outer.End.Line == inner.End.Line && outer.End.Character >= inner.End.Character)
	return startsBefore && endsAfter
}

func toSymbolRange(r lspwire.Range) symbol.Range {
	return symbol.Range{
		Start: symbol.Position{Line: r.Start.Line, Character: r.Start.Character},
		End:   symbol.Position{Line: r.End.Line, Character: r.End.Character},
	}
}

// matchesNamePath implements spec.md §4.7's name_path grammar:
//
//   - a leaf name ("foo") matches any symbol whose last name_path segment
//     equals (or, under substring matching, contains) foo, regardless of
//     ancestors;
//   - a relative path ("A/foo") additionally requires the ancestor chain
//     to END with A, extra prefix allowed;
//   - an absolute path ("/A/foo") requires the ancestor chain to START
//     with A (top-level rooted at A).
//
// Trailing slashes on the query are ignored.
func matchesNamePath(query, candidateNamePath string, substringMatching bool) bool {
	query = strings.TrimSuffix(query, "/")
	isAbsolute := strings.HasPrefix(query, "/")
	query = strings.TrimPrefix(query, "/")
	if query == "" {
		return false
	}

	querySegs := strings.Split(query, "/")
	candSegs := strings.Split(candidateNamePath, "/")

	leaf := querySegs[len(querySegs)-1]
	lastCand := candSegs[len(candSegs)-1]
	if substringMatching {
		if !strings.Contains(lastCand, leaf) {
			return false
		}
	} else if lastCand != leaf {
		return false
	}

	if len(querySegs) == 1 {
		// An absolute single-segment query ("/Foo") is rooted at the top
		// of the tree, so it only matches a symbol that itself has no
		// ancestors -- "/Foo" must not match "Bar/Foo".
		if isAbsolute {
			return len(candSegs) == 1
		}
		return true
	}

	ancestorQuery := querySegs[:len(querySegs)-1]
	ancestorCand := candSegs[:len(candSegs)-1]
	if len(ancestorQuery) > len(ancestorCand) {
		return false
	}

	if isAbsolute {
		return sliceEqual(ancestorCand[:len(ancestorQuery)], ancestorQuery)
	}
	tail := ancestorCand[len(ancestorCand)-len(ancestorQuery):]
	return sliceEqual(tail, ancestorQuery)
}

func sliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// flatten walks a stamped tree in document order, returning every node
// (including descendants) as a flat slice -- used by find_symbols_by_name_path
// and overview, both of which operate over "every symbol in the file"
// rather than only top-level ones.
func flatten(tree []symbol.Symbol) []symbol.Symbol {
	var out []symbol.Symbol
	var walk func([]symbol.Symbol)
	walk = func(nodes []symbol.Symbol) {
		for _, n := range nodes {
			out = append(out, n)
			walk(n.Children)
		}
	}
	walk(tree)
	return out
}

// pruneDepth returns a copy of sym truncated to at most depth levels of
// descendants (0 = the symbol itself with no children), per
// find_symbols_by_name_path's depth parameter.
func pruneDepth(sym symbol.Symbol, depth int) symbol.Symbol {
	if depth <= 0 {
		sym.Children = nil
		return sym
	}
	pruned := make([]symbol.Symbol, len(sym.Children))
	for i, c := range sym.Children {
		pruned[i] = pruneDepth(c, depth-1)
	}
	sym.Children = pruned
	return sym
}

// enclosingSymbol returns the innermost symbol in tree whose range
// contains pos, per find_referencing_symbols' "when a reference location
// has multiple enclosing symbols, report the innermost" tie-break.
func enclosingSymbol(tree []symbol.Symbol, pos symbol.Position) *symbol.Symbol {
	var best *symbol.Symbol
	var walk func([]symbol.Symbol)
	walk = func(nodes []symbol.Symbol) {
		for i := range nodes {
			if positionWithin(nodes[i].Location.Range, pos) {
				best = &nodes[i]
				walk(nodes[i].Children)
			}
		}
	}
	walk(tree)
	return best
}

func positionWithin(r symbol.Range, p symbol.Position) bool {
	afterStart := p.Line > r.Start.Line || (p.Line == r.Start.Line && p.Character >= r.Start.Character)
	beforeEnd := p.Line < r.End.Line || (p.Line == r.End.Line && p.Character <= r.End.Character)
	return afterStart && beforeEnd
}
