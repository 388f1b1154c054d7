// search_pattern (spec.md §4.7): a project-wide regex scan returning
// consecutive matched line-blocks per file, restricted by IgnoreSpec and
// optional include/exclude globs. Grounded on internal/ignorespec's use
// of doublestar for path filtering; the regex itself is stdlib regexp
// since none of the example repos pull in a non-stdlib regex engine for
// this kind of whole-tree text search.
package symbolsvc

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/koksalmehmet/symbex/internal/langserver"
)

// MatchBlock is one run of consecutive matched (or context) lines.
type MatchBlock struct {
	StartLine int // 0-based
	Lines     []string
}

// SearchPatternOptions bundles search_pattern's filters.
type SearchPatternOptions struct {
	RelativePath        string // root to search under; "" means project root
	ContextLinesBefore   int
	ContextLinesAfter    int
	PathsIncludeGlob     string
	PathsExcludeGlob     string
	RestrictToCodeFiles  bool
	Language             langserver.Language
}

// SearchPattern implements spec.md §4.7's search_pattern. The regex is
// compiled with dot-matches-all and multiline semantics, matching
// per-line against the pattern rather than the whole-file text, which
// keeps the "consecutive matched line-blocks" output shape simple.
func (s *Service) SearchPattern(pattern string, opts SearchPatternOptions) (map[string][]MatchBlock, error) {
	re, err := regexp.Compile("(?s)(?m)" + pattern)
	if err != nil {
		return nil, err
	}

	root := s.cfg.ProjectRoot
	searchRoot := root
	if opts.RelativePath != "" {
		searchRoot = filepath.Join(root, opts.RelativePath)
	}

	results := make(map[string][]MatchBlock)
	walkErr := filepath.Walk(searchRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if detectAnyIgnoredDir(s.router, info.Name()) {
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
		if opts.PathsIncludeGlob != "" {
			if ok, _ := doublestar.Match(opts.PathsIncludeGlob, rel); !ok {
				return nil
			}
		}
		if opts.PathsExcludeGlob != "" {
			if ok, _ := doublestar.Match(opts.PathsExcludeGlob, rel); ok {
				return nil
			}
		}
		if opts.RestrictToCodeFiles {
			if !s.isCodeFile(rel, opts.Language) {
				return nil
			}
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		blocks := searchFileContent(re, string(content), opts.ContextLinesBefore, opts.ContextLinesAfter)
		if len(blocks) > 0 {
			results[rel] = blocks
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return results, nil
}

func (s *Service) isCodeFile(relativePath string, language langserver.Language) bool {
	if language != "" {
		return language.MatchesSource(relativePath)
	}
	for _, e := range s.router.All() {
		if e.Language.MatchesSource(relativePath) {
			return true
		}
	}
	return false
}

// searchFileContent finds every line matching re and merges overlapping
// context windows into consecutive blocks.
func searchFileContent(re *regexp.Regexp, content string, before, after int) []MatchBlock {
	lines := splitLines(content)
	matched := make([]bool, len(lines))
	any := false
	for i, line := range lines {
		if re.MatchString(line) {
			matched[i] = true
			any = true
		}
	}
	if !any {
		return nil
	}

	var blocks []MatchBlock
	i := 0
	for i < len(lines) {
		if !matched[i] {
			i++
			continue
		}
		start := i - before
		if start < 0 {
			start = 0
		}
		end := i + after + 1
		// Extend the block through any further matches whose own
		// context window overlaps this one, so adjacent matches merge
		// into one consecutive block instead of fragmenting.
		for j := i + 1; j < len(lines); j++ {
			if !matched[j] {
				continue
			}
			nextStart := j - before
			if nextStart > end {
				break
			}
			end = j + after + 1
			i = j
		}
		if end > len(lines) {
			end = len(lines)
		}
		blocks = append(blocks, MatchBlock{StartLine: start, Lines: append([]string{}, lines[start:end]...)})
		i++
	}
	return blocks
}
