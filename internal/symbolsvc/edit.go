// Editing primitives (spec.md §4.7/§4.7.2): replace_symbol_body,
// insert_before_symbol, insert_after_symbol, delete_lines, replace_lines,
// insert_at_line. Every primitive funnels through applyEdit, which
// performs the five-step sequence of §4.7.2: update the C4 buffer, send
// didChange, persist to disk, invalidate the C5 entry, and reset
// LinesRead for the file. This package takes no lock around that
// sequence; it is atomic with respect to other Service calls only when
// the caller serializes them, as internal/taskqueue's single-consumer
// queue (C8) does. The CLI runs one operation per process and does not
// use the queue.
package symbolsvc

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/koksalmehmet/symbex/internal/lsperr"
	"github.com/koksalmehmet/symbex/internal/symbol"
)

// linesReadTracker records which line ranges have been read (via an
// explicit ReadLines call) per file, so
// replace_lines/delete_lines can enforce spec.md §4.7's "caller must have
// previously read the same range" precondition.
type linesReadTracker struct {
	mu    sync.Mutex
	read  map[string][][2]int
}

func newLinesReadTracker() *linesReadTracker {
	return &linesReadTracker{read: make(map[string][][2]int)}
}

func (t *linesReadTracker) markRead(relativePath string, start, end int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.read[relativePath] = append(t.read[relativePath], [2]int{start, end})
}

func (t *linesReadTracker) wasRead(relativePath string, start, end int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.read[relativePath] {
		if r[0] <= start && end <= r[1] {
			return true
		}
	}
	return false
}

func (t *linesReadTracker) reset(relativePath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.read, relativePath)
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// ReadLines reads relativePath's lines [startLine, endLine) (0-based,
// half-open) and records the range as read, satisfying the LinesRead
// precondition for a subsequent ReplaceLines/DeleteLines call.
func (s *Service) ReadLines(relativePath string, startLine, endLine int) (string, error) {
	abs, err := s.cfg.Canonicalize(relativePath)
	if err != nil {
		return "", err
	}
	if s.ignore != nil && s.ignore.Matches(relativePath) {
		return "", lsperr.PathIgnored(relativePath)
	}
	content, err := s.readContent(relativePath, abs)
	if err != nil {
		return "", err
	}
	lines := splitLines(content)
	if startLine < 0 {
		startLine = 0
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		startLine = endLine
	}
	s.linesRead.markRead(relativePath, startLine, endLine)
	return joinLines(lines[startLine:endLine]), nil
}

// applyEdit performs the five-step atomic sequence of spec.md §4.7.2 for
// a full-file content replacement.
func (s *Service) applyEdit(ctx context.Context, relativePath, abs, uri string, newContent string) error {
	if s.cfg.ReadOnly {
		return lsperr.ReadOnly(relativePath)
	}
	entry, err := s.entryFor(relativePath)
	if err != nil {
		return err
	}
	if err := s.ensureOpen(entry, relativePath, abs, uri); err != nil {
		return err
	}

	existing, _ := s.buffers.Get(relativePath)
	if err := s.buffers.Update(relativePath, newContent); err != nil {
		return err
	}
	if err := entry.Handler.DidChange(uri, existing.Version+1, newContent); err != nil {
		return err
	}
	if err := os.WriteFile(abs, []byte(newContent), 0o644); err != nil {
		return err
	}
	if entry.Cache != nil {
		_ = entry.Cache.Invalidate(ctx, relativePath, string(entry.Language))
	}
	s.linesRead.reset(relativePath)
	return nil
}

// findSingleSymbol resolves namePath to exactly one symbol in
// relativePath, erroring with SymbolNotFound or AmbiguousSymbol otherwise
// -- every editing primitive below needs exactly this.
func (s *Service) findSingleSymbol(ctx context.Context, namePath, relativePath string) (*symbol.Symbol, error) {
	tree, err := s.symbolTree(ctx, relativePath, "")
	if err != nil {
		return nil, err
	}
	var matches []symbol.Symbol
	for _, sym := range flatten(tree) {
		if matchesNamePath(namePath, sym.NamePath, false) {
			matches = append(matches, sym)
		}
	}
	switch len(matches) {
	case 0:
		return nil, lsperr.SymbolNotFound(namePath)
	case 1:
		return &matches[0], nil
	default:
		return nil, lsperr.AmbiguousSymbol(namePath, len(matches))
	}
}

// ReplaceSymbolBody replaces the full source range of the symbol named by
// namePath in relativePath with newBody.
func (s *Service) ReplaceSymbolBody(ctx context.Context, namePath, relativePath, newBody string) error {
	abs, uri, err := s.resolve(relativePath)
	if err != nil {
		return err
	}
	sym, err := s.findSingleSymbol(ctx, namePath, relativePath)
	if err != nil {
		return err
	}
	content, err := s.readContent(relativePath, abs)
	if err != nil {
		return err
	}
	lines := splitLines(content)
	newContent := joinLines(spliceLines(lines, sym.Location.Range.Start.Line, sym.Location.Range.End.Line+1, splitLines(newBody)))
	return s.applyEdit(ctx, relativePath, abs, uri, newContent)
}

// InsertBeforeSymbol inserts text immediately before the symbol's first
// line.
func (s *Service) InsertBeforeSymbol(ctx context.Context, namePath, relativePath, text string) error {
	abs, uri, err := s.resolve(relativePath)
	if err != nil {
		return err
	}
	sym, err := s.findSingleSymbol(ctx, namePath, relativePath)
	if err != nil {
		return err
	}
	content, err := s.readContent(relativePath, abs)
	if err != nil {
		return err
	}
	lines := splitLines(content)
	newContent := joinLines(spliceLines(lines, sym.Location.Range.Start.Line, sym.Location.Range.Start.Line, splitLines(text)))
	return s.applyEdit(ctx, relativePath, abs, uri, newContent)
}

// InsertAfterSymbol inserts text immediately after the symbol's last line.
func (s *Service) InsertAfterSymbol(ctx context.Context, namePath, relativePath, text string) error {
	abs, uri, err := s.resolve(relativePath)
	if err != nil {
		return err
	}
	sym, err := s.findSingleSymbol(ctx, namePath, relativePath)
	if err != nil {
		return err
	}
	content, err := s.readContent(relativePath, abs)
	if err != nil {
		return err
	}
	lines := splitLines(content)
	at := sym.Location.Range.End.Line + 1
	newContent := joinLines(spliceLines(lines, at, at, splitLines(text)))
	return s.applyEdit(ctx, relativePath, abs, uri, newContent)
}

// InsertAtLine inserts text at a specific 0-based line number.
func (s *Service) InsertAtLine(ctx context.Context, relativePath string, line int, text string) error {
	abs, uri, err := s.resolve(relativePath)
	if err != nil {
		return err
	}
	content, err := s.readContent(relativePath, abs)
	if err != nil {
		return err
	}
	lines := splitLines(content)
	newContent := joinLines(spliceLines(lines, line, line, splitLines(text)))
	return s.applyEdit(ctx, relativePath, abs, uri, newContent)
}

// DeleteLines removes lines [startLine, endLine) (0-based, half-open).
// The range must have been previously read via ReadLines, per spec.md
// §4.7's LinesRead precondition.
func (s *Service) DeleteLines(ctx context.Context, relativePath string, startLine, endLine int) error {
	if !s.linesRead.wasRead(relativePath, startLine, endLine) {
		return lsperr.LinesNotRead(relativePath)
	}
	abs, uri, err := s.resolve(relativePath)
	if err != nil {
		return err
	}
	content, err := s.readContent(relativePath, abs)
	if err != nil {
		return err
	}
	lines := splitLines(content)
	newContent := joinLines(spliceLines(lines, startLine, endLine, nil))
	return s.applyEdit(ctx, relativePath, abs, uri, newContent)
}

// ReplaceLines replaces lines [startLine, endLine) (0-based, half-open)
// with newText. Same LinesRead precondition as DeleteLines.
func (s *Service) ReplaceLines(ctx context.Context, relativePath string, startLine, endLine int, newText string) error {
	if !s.linesRead.wasRead(relativePath, startLine, endLine) {
		return lsperr.LinesNotRead(relativePath)
	}
	abs, uri, err := s.resolve(relativePath)
	if err != nil {
		return err
	}
	content, err := s.readContent(relativePath, abs)
	if err != nil {
		return err
	}
	lines := splitLines(content)
	newContent := joinLines(spliceLines(lines, startLine, endLine, splitLines(newText)))
	return s.applyEdit(ctx, relativePath, abs, uri, newContent)
}

// spliceLines returns lines with [start, end) replaced by replacement.
func spliceLines(lines []string, start, end int, replacement []string) []string {
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		start = end
	}
	out := make([]string, 0, len(lines)-(end-start)+len(replacement))
	out = append(out, lines[:start]...)
	out = append(out, replacement...)
	out = append(out, lines[end:]...)
	return out
}
