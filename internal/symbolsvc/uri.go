package symbolsvc

import (
	"path/filepath"
	"strings"
)

// pathToURI converts an absolute filesystem path to a file:// URI, the
// generalization of apps/cli/internal/analysis/lsp_types.go's pathToURI
// (every path this service hands to a language server is already
// absolute, canonicalised by ProjectConfig.Canonicalize, so there is no
// separate "make it absolute" step here).
func pathToURI(absPath string) string {
	slashed := filepath.ToSlash(absPath)
	return "file:///" + strings.TrimPrefix(slashed, "/")
}

// uriToPath is pathToURI's inverse, for turning an LSP response's file://
// URIs back into filesystem paths.
func uriToPath(uri string) string {
	path := strings.TrimPrefix(uri, "file://")
	// A Windows drive path arrives as "/C:/..."; drop the leading slash.
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path)
}
