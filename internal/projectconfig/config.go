// Package projectconfig holds the ProjectConfig record of spec.md §6: the
// configuration intake from the external collaborator. It is a plain,
// validated in-memory struct -- no file parsing of its own, per
// SPEC_FULL.md §10.3, which leaves marshaling the caller's JSON/YAML
// config file to whatever embeds this service; ProjectConfig only decodes
// the already-parsed record.
package projectconfig

import (
	"path/filepath"
	"strings"

	"github.com/koksalmehmet/symbex/internal/langserver"
	"github.com/koksalmehmet/symbex/internal/lsperr"
)

// Config is the external collaborator's project configuration.
type Config struct {
	ProjectRoot    string              `json:"project_root"`
	Languages      []langserver.Language `json:"languages"`
	IgnoredPaths   []string            `json:"ignored_paths"`
	ReadOnly       bool                `json:"read_only"`
	Encoding       string              `json:"encoding"`
	HonorGitignore bool                `json:"honor_gitignore"`
}

// Validate checks the record for internal consistency: a ProjectRoot must
// be set and absolute, Languages must name only known languages, and
// Encoding defaults to UTF-8 when left blank.
func (c *Config) Validate() error {
	if c.ProjectRoot == "" {
		return lsperr.Protocol("project_root is required", nil)
	}
	if !filepath.IsAbs(c.ProjectRoot) {
		return lsperr.Protocol("project_root must be an absolute path", nil)
	}
	if len(c.Languages) == 0 {
		return lsperr.Protocol("languages must name at least one language", nil)
	}
	known := make(map[langserver.Language]bool, len(langserver.All()))
	for _, l := range langserver.All() {
		known[l] = true
	}
	for _, l := range c.Languages {
		if !known[l] {
			return lsperr.MissingToolchain(string(l), nil)
		}
	}
	if c.Encoding == "" {
		c.Encoding = "utf-8"
	}
	return nil
}

// Canonicalize resolves relativePath against ProjectRoot and verifies the
// result does not escape it, per spec.md §7's invariant 1 (PathEscape on
// any operation whose canonicalised path is not a descendant of
// project_root).
func (c *Config) Canonicalize(relativePath string) (string, error) {
	abs := filepath.Join(c.ProjectRoot, relativePath)
	cleanRoot := filepath.Clean(c.ProjectRoot)
	cleanAbs := filepath.Clean(abs)
	rel, err := filepath.Rel(cleanRoot, cleanAbs)
	if err != nil || hasParentTraversal(rel) {
		return "", lsperr.PathEscape(relativePath)
	}
	return cleanAbs, nil
}

// hasParentTraversal reports whether rel (as returned by filepath.Rel)
// climbs above the root at any point, i.e. contains a ".." path segment.
func hasParentTraversal(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
