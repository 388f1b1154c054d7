// Package ignorespec implements the IgnoreSpec data type of spec.md §3/§8.2:
// a compiled set of gitignore-style glob patterns a path is checked against
// before any language server sees it. The match logic is the direct
// generalization of apps/cli/internal/fsutil.MatchesGuardrail (normalize to
// slash-separated, then doublestar.Match against each pattern) from a
// fixed two-list "guardrails" shape to an arbitrary pattern list sourced
// from ProjectConfig.IgnoredPaths plus, optionally, the project's
// .gitignore.
package ignorespec

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Spec is a compiled, read-only set of ignore patterns rooted at a single
// project root.
type Spec struct {
	patterns []string
}

// New compiles slash-separated glob patterns. As in gitignore, a pattern
// with no slash matches at any directory depth ("**/" is prepended).
func New(patterns []string) *Spec {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		p = filepath.ToSlash(p)
		if !strings.Contains(p, "/") {
			p = "**/" + p
		}
		cleaned = append(cleaned, p)
	}
	return &Spec{patterns: cleaned}
}

// LoadGitignore reads root/.gitignore (if present) and returns its
// patterns as a slice ready to be merged with ProjectConfig.IgnoredPaths
// before calling New. A missing .gitignore is not an error: honoring it is
// opt-in per spec.md §6's honor_gitignore flag.
func LoadGitignore(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignoreToGlob(line))
	}
	return patterns, scanner.Err()
}

// gitignoreToGlob adapts the handful of gitignore shorthand forms
// doublestar doesn't already treat the same way: a trailing slash means
// "directory and everything under it", and a pattern with no interior
// slash anchors to any directory depth instead of just the root.
func gitignoreToGlob(pattern string) string {
	pattern = strings.TrimPrefix(pattern, "/")
	dirOnly := strings.HasSuffix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")
	if !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}
	if dirOnly {
		pattern += "/**"
	}
	return pattern
}

// Matches reports whether relativePath (project-root relative, any
// separator) is covered by any pattern in the spec.
func (s *Spec) Matches(relativePath string) bool {
	normalized := filepath.ToSlash(relativePath)
	for _, pattern := range s.patterns {
		if ok, err := doublestar.Match(pattern, normalized); err == nil && ok {
			return true
		}
		// Also match the pattern against the path with a trailing
		// "/**" implicitly, so a pattern like "vendor" matches both the
		// directory itself and everything inside it.
		if ok, err := doublestar.Match(pattern+"/**", normalized); err == nil && ok {
			return true
		}
	}
	return false
}

// Patterns returns the compiled pattern list, for diagnostics/overview
// output.
func (s *Spec) Patterns() []string {
	out := make([]string, len(s.patterns))
	copy(out, s.patterns)
	return out
}
