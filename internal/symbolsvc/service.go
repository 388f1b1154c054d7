// Package symbolsvc implements component C7, the Symbol Service API: the
// uniform, language-neutral surface (find_symbols_by_name_path,
// find_referencing_symbols, find_definition, rename_symbol, the editing
// primitives, overview, search_pattern) that the rest of the system
// consumes instead of talking to adapters directly. It composes every
// earlier component: internal/router picks the adapter, internal/symcache
// short-circuits the LSP on an unchanged file, internal/filebuf tracks
// open-buffer state, internal/ignorespec and internal/projectconfig
// enforce the path-safety and gitignore invariants of spec.md §7.
package symbolsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/koksalmehmet/symbex/internal/filebuf"
	"github.com/koksalmehmet/symbex/internal/ignorespec"
	"github.com/koksalmehmet/symbex/internal/langserver"
	"github.com/koksalmehmet/symbex/internal/lsperr"
	"github.com/koksalmehmet/symbex/internal/lspwire"
	"github.com/koksalmehmet/symbex/internal/projectconfig"
	"github.com/koksalmehmet/symbex/internal/router"
	"github.com/koksalmehmet/symbex/internal/symbol"
	"github.com/koksalmehmet/symbex/internal/symcache"
)

// Service is the C7 facade for one activated project.
type Service struct {
	cfg     *projectconfig.Config
	ignore  *ignorespec.Spec
	router  *router.Router
	buffers *filebuf.Cache

	linesRead *linesReadTracker
}

func New(cfg *projectconfig.Config, ignore *ignorespec.Spec, rtr *router.Router, buffers *filebuf.Cache) *Service {
	return &Service{
		cfg:       cfg,
		ignore:    ignore,
		router:    rtr,
		buffers:   buffers,
		linesRead: newLinesReadTracker(),
	}
}

// resolve canonicalises relativePath against the project root and checks
// it against the IgnoreSpec, implementing spec.md §7's invariants 1
// (PathEscape) and 2 (PathIgnored) in one place so every operation below
// enforces them identically.
func (s *Service) resolve(relativePath string) (absPath, uri string, err error) {
	abs, err := s.cfg.Canonicalize(relativePath)
	if err != nil {
		return "", "", err
	}
	if s.ignore != nil && s.ignore.Matches(relativePath) {
		return "", "", lsperr.PathIgnored(relativePath)
	}
	return abs, pathToURI(abs), nil
}

// FindSymbolsOptions bundles find_symbols_by_name_path's filters.
type FindSymbolsOptions struct {
	WithinRelativePath string
	IncludeKinds       []symbol.Kind
	ExcludeKinds       []symbol.Kind
	SubstringMatching  bool
	IncludeBody        bool
	Depth              int
	Language           langserver.Language
}

// FindSymbolsByNamePath implements spec.md §4.7's find_symbols_by_name_path.
func (s *Service) FindSymbolsByNamePath(ctx context.Context, namePath string, opts FindSymbolsOptions) ([]symbol.Symbol, error) {
	var paths []string
	if opts.WithinRelativePath != "" {
		paths = []string{opts.WithinRelativePath}
	} else {
		var err error
		paths, err = s.sourceFiles(opts.Language)
		if err != nil {
			return nil, err
		}
	}

	var matches []symbol.Symbol
	for _, relativePath := range paths {
		tree, err := s.symbolTree(ctx, relativePath, opts.Language)
		if err != nil {
			if lsperrIsIgnoredOrMissing(err) {
				continue
			}
			return nil, err
		}
		for _, sym := range flatten(tree) {
			if !matchesNamePath(namePath, sym.NamePath, opts.SubstringMatching) {
				continue
			}
			if !kindAllowed(sym.Kind, opts.IncludeKinds, opts.ExcludeKinds) {
				continue
			}
			result := pruneDepth(sym, opts.Depth)
			if opts.IncludeBody {
				r := sym.Location.Range
				result.Body, _ = s.snippetAround(relativePath, r.Start.Line, 0, r.End.Line-r.Start.Line)
			} else {
				result.Body = ""
			}
			matches = append(matches, result)
		}
	}
	return matches, nil
}

func kindAllowed(k symbol.Kind, include, exclude []symbol.Kind) bool {
	for _, e := range exclude {
		if e == k {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, i := range include {
		if i == k {
			return true
		}
	}
	return false
}

func lsperrIsIgnoredOrMissing(err error) bool {
	var le *lsperr.Error
	if e, ok := err.(*lsperr.Error); ok {
		le = e
	}
	if le == nil {
		return false
	}
	return le.Kind == lsperr.KindPathIgnored || le.Kind == lsperr.KindPathEscape
}

// FindDefinition implements spec.md §4.7's find_definition.
func (s *Service) FindDefinition(ctx context.Context, relativePath string, line, column int) ([]symbol.Location, error) {
	abs, uri, err := s.resolve(relativePath)
	if err != nil {
		return nil, err
	}
	entry, err := s.entryFor(relativePath)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOpen(entry, relativePath, abs, uri); err != nil {
		return nil, err
	}
	locs, err := entry.Handler.Definition(ctx, uri, lspwire.Position{Line: line, Character: column})
	if err != nil {
		return nil, err
	}
	out := make([]symbol.Location, 0, len(locs))
	for _, l := range locs {
		out = append(out, symbol.Location{
			RelativePath: s.relativeFromURI(l.URI),
			Range:        toSymbolRange(l.Range),
		})
	}
	return out, nil
}

// ReferencingSymbol pairs a reference's enclosing symbol with a short
// snippet of surrounding source, per find_referencing_symbols.
type ReferencingSymbol struct {
	Symbol   symbol.Symbol
	Location symbol.Location
	Snippet  string
}

// FindReferencingSymbolsOptions bundles find_referencing_symbols' filters.
type FindReferencingSymbolsOptions struct {
	IncludeKinds []symbol.Kind
	ExcludeKinds []symbol.Kind
	IncludeBody  bool
	Language     langserver.Language
}

// FindReferencingSymbols implements spec.md §4.7's find_referencing_symbols.
func (s *Service) FindReferencingSymbols(ctx context.Context, namePath, relativeFilePath string, opts FindReferencingSymbolsOptions) ([]ReferencingSymbol, error) {
	tree, err := s.symbolTree(ctx, relativeFilePath, opts.Language)
	if err != nil {
		return nil, err
	}
	var target *symbol.Symbol
	for _, sym := range flatten(tree) {
		if matchesNamePath(namePath, sym.NamePath, false) {
			target = &sym
			break
		}
	}
	if target == nil {
		return nil, lsperr.SymbolNotFound(namePath)
	}

	abs, uri, err := s.resolve(relativeFilePath)
	if err != nil {
		return nil, err
	}
	entry, err := s.entryFor(relativeFilePath)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOpen(entry, relativeFilePath, abs, uri); err != nil {
		return nil, err
	}

	refs, err := entry.Handler.References(ctx, uri, lspwire.Position{
		Line: target.SelectionRange.Start.Line, Character: target.SelectionRange.Start.Character,
	}, false)
	if err != nil {
		return nil, err
	}

	declarationPos := lspwire.Position{Line: target.SelectionRange.Start.Line, Character: target.SelectionRange.Start.Character}
	var out []ReferencingSymbol
	for _, ref := range refs {
		refRelPath := s.relativeFromURI(ref.URI)
		if s.ignore != nil && s.ignore.Matches(refRelPath) {
			continue
		}
		if refRelPath == relativeFilePath && ref.Range.Start == declarationPos {
			continue // exclude a reference to the symbol's own declaration
		}

		refTree, err := s.symbolTree(ctx, refRelPath, opts.Language)
		if err != nil {
			continue
		}
		pos := symbol.Position{Line: ref.Range.Start.Line, Character: ref.Range.Start.Character}
		enclosing := enclosingSymbol(refTree, pos)
		if enclosing == nil {
			continue
		}
		if !kindAllowed(enclosing.Kind, opts.IncludeKinds, opts.ExcludeKinds) {
			continue
		}
		result := *enclosing
		if opts.IncludeBody {
			r := result.Location.Range
			result.Body, _ = s.snippetAround(refRelPath, r.Start.Line, 0, r.End.Line-r.Start.Line)
		} else {
			result.Body = ""
		}

		snippet := ""
		if !opts.IncludeBody {
			snippet, _ = s.snippetAround(refRelPath, pos.Line, 1, 1)
		}
		out = append(out, ReferencingSymbol{
			Symbol:   result,
			Location: symbol.Location{RelativePath: refRelPath, Range: toSymbolRange(ref.Range)},
			Snippet:  snippet,
		})
	}
	return out, nil
}

// RenameSymbol implements spec.md §4.7's rename_symbol: it returns the
// workspace edit for the caller to apply, never applying it itself.
func (s *Service) RenameSymbol(ctx context.Context, relativePath string, line, column int, newName string) (*lspwire.WorkspaceEdit, error) {
	if s.cfg.ReadOnly {
		return nil, lsperr.ReadOnly(relativePath)
	}
	abs, uri, err := s.resolve(relativePath)
	if err != nil {
		return nil, err
	}
	entry, err := s.entryFor(relativePath)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOpen(entry, relativePath, abs, uri); err != nil {
		return nil, err
	}
	return entry.Handler.Rename(ctx, uri, lspwire.Position{Line: line, Character: column}, newName)
}

// OverviewEntry is one row of overview's per-file symbol summary.
type OverviewEntry struct {
	NamePath string
	Kind     symbol.Kind
}

// Overview implements spec.md §4.7's overview: for a single file, every
// symbol's (name_path, kind); for a directory, the same keyed by file
// path, restricted to files an active adapter handles.
func (s *Service) Overview(ctx context.Context, relativePath string, language langserver.Language) (map[string][]OverviewEntry, error) {
	abs, err := s.cfg.Canonicalize(relativePath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", relativePath, err)
	}

	if !info.IsDir() {
		tree, err := s.symbolTree(ctx, relativePath, language)
		if err != nil {
			return nil, err
		}
		return map[string][]OverviewEntry{relativePath: overviewEntries(tree)}, nil
	}

	files, err := s.sourceFiles(language)
	if err != nil {
		return nil, err
	}
	dirPrefix := filepath.ToSlash(relativePath)
	if dirPrefix != "" && dirPrefix != "." {
		dirPrefix += "/"
	} else {
		dirPrefix = ""
	}
	out := make(map[string][]OverviewEntry)
	for _, f := range files {
		if dirPrefix != "" && !strings.HasPrefix(f, dirPrefix) {
			continue
		}
		tree, err := s.symbolTree(ctx, f, language)
		if err != nil {
			continue
		}
		out[f] = overviewEntries(tree)
	}
	return out, nil
}

func overviewEntries(tree []symbol.Symbol) []OverviewEntry {
	flat := flatten(tree)
	out := make([]OverviewEntry, len(flat))
	for i, s := range flat {
		out[i] = OverviewEntry{NamePath: s.NamePath, Kind: s.Kind}
	}
	return out
}

// entryFor picks the router entry that should handle relativePath from
// the path alone; entryForLanguage also honors a language override.
func (s *Service) entryFor(relativePath string) (*router.Entry, error) {
	return s.router.Get(relativePath)
}

func (s *Service) entryForLanguage(relativePath string, language langserver.Language) (*router.Entry, error) {
	if language != "" {
		return s.router.ByLanguage(language)
	}
	return s.router.Get(relativePath)
}

// relativeFromURI converts a file:// URI in an LSP response back to a
// project-root-relative path.
func (s *Service) relativeFromURI(uri string) string {
	abs := uriToPath(uri)
	rel, err := filepath.Rel(s.cfg.ProjectRoot, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

// sourceFiles lists every non-ignored source file under the project root
// matching an active adapter (or, if language is set, that one
// adapter's) glob patterns.
func (s *Service) sourceFiles(language langserver.Language) ([]string, error) {
	var out []string
	err := filepath.Walk(s.cfg.ProjectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(s.cfg.ProjectRoot, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if detected := detectAnyIgnoredDir(s.router, info.Name()); detected {
				return filepath.SkipDir
			}
			if s.ignore != nil && s.ignore.Matches(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.ignore != nil && s.ignore.Matches(rel) {
			return nil
		}
		if language != "" {
			if language.MatchesSource(rel) {
				out = append(out, rel)
			}
			return nil
		}
		for _, e := range s.router.All() {
			if e.Language.MatchesSource(rel) {
				out = append(out, rel)
				break
			}
		}
		return nil
	})
	return out, err
}

func detectAnyIgnoredDir(r *router.Router, dirname string) bool {
	for _, e := range r.All() {
		if e.Language.IsIgnoredDirname(dirname) {
			return true
		}
	}
	return false
}

// symbolTree returns the stamped symbol tree for relativePath, consulting
// the symbol cache first, per spec.md §4.5's lookup rule.
func (s *Service) symbolTree(ctx context.Context, relativePath string, language langserver.Language) ([]symbol.Symbol, error) {
	abs, uri, err := s.resolve(relativePath)
	if err != nil {
		return nil, err
	}
	entry, err := s.entryForLanguage(relativePath, language)
	if err != nil {
		return nil, err
	}

	content, err := s.readContent(relativePath, abs)
	if err != nil {
		return nil, err
	}
	hash := symcache.HashContent(content)

	if entry.Cache != nil {
		if tree, ok, err := entry.Cache.Lookup(ctx, relativePath, string(entry.Language), hash); err == nil && ok {
			return tree, nil
		}
	}

	if err := s.ensureOpen(entry, relativePath, abs, uri); err != nil {
		return nil, err
	}
	raw, err := entry.Handler.DocumentSymbol(ctx, uri)
	if err != nil {
		return nil, err
	}
	tree, err := parseDocumentSymbolResponse(relativePath, raw)
	if err != nil {
		return nil, err
	}
	if entry.Cache != nil {
		_ = entry.Cache.Store(ctx, relativePath, string(entry.Language), hash, tree)
	}
	return tree, nil
}

// parseDocumentSymbolResponse detects whether the server replied with the
// hierarchical DocumentSymbol shape or the flat SymbolInformation
// fallback (spec.md §4.3) and converts either into a stamped tree.
func parseDocumentSymbolResponse(relativePath string, raw json.RawMessage) ([]symbol.Symbol, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, lsperr.Protocol("unmarshal documentSymbol response", err)
	}
	if len(probe) == 0 {
		return nil, nil
	}
	if _, isFlat := probe[0]["location"]; isFlat {
		var flat []lspwire.SymbolInformation
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, lsperr.Protocol("unmarshal flat SymbolInformation response", err)
		}
		return stampFlatSymbols(relativePath, flat), nil
	}
	var hierarchical []lspwire.DocumentSymbol
	if err := json.Unmarshal(raw, &hierarchical); err != nil {
		return nil, lsperr.Protocol("unmarshal hierarchical DocumentSymbol response", err)
	}
	return stampDocumentSymbols(relativePath, hierarchical, nil), nil
}

// readContent returns relativePath's current content, preferring the open
// buffer (so in-flight edits are reflected) over the on-disk copy.
func (s *Service) readContent(relativePath, abs string) (string, error) {
	if entry, ok := s.buffers.Get(relativePath); ok {
		return entry.Content, nil
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", relativePath, err)
	}
	return string(b), nil
}

// ensureOpen opens relativePath on entry's handler if it is not already
// open, via the refcounted buffer cache, so repeated queries against the
// same file don't repeatedly resend didOpen. For the Vue hybrid adapter,
// the same open also opens the file's full content on the companion
// TypeScript server, since the Vue server's own documentSymbol/references
// delegate script-block requests there (spec.md §4.3.1).
func (s *Service) ensureOpen(entry *router.Entry, relativePath, abs, uri string) error {
	if _, ok := s.buffers.Get(relativePath); ok {
		return nil
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read %s: %w", relativePath, err)
	}
	_, firstOpen := s.buffers.Open(relativePath, string(content))
	if !firstOpen {
		return nil
	}
	if err := entry.Handler.DidOpen(uri, entry.Language.LanguageID(), string(content), 1); err != nil {
		return err
	}
	if entry.Hybrid != nil {
		return entry.Hybrid.EnsureVueFileIndexed(uri, string(content))
	}
	return nil
}

// snippetAround returns linesBefore/linesAfter lines of context around
// line (0-based) in relativePath, for find_referencing_symbols' snippet.
func (s *Service) snippetAround(relativePath string, line, before, after int) (string, error) {
	abs, err := s.cfg.Canonicalize(relativePath)
	if err != nil {
		return "", err
	}
	content, err := s.readContent(relativePath, abs)
	if err != nil {
		return "", err
	}
	lines := splitLines(content)
	start := line - before
	if start < 0 {
		start = 0
	}
	end := line + after + 1
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return "", nil
	}
	return joinLines(lines[start:end]), nil
}
