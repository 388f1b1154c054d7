// Package langserver is component C3, the Language Server Adapter layer: a
// closed Language enum (grounded on the original's
// solidlsp/ls_config.py Language(str, Enum)), per-language filename
// matching (its get_source_fn_matcher, reimplemented with
// doublestar.Match rather than fnmatch since this module already carries
// doublestar for IgnoreSpec), and an Adapter interface that dispatches a
// project onto the right subprocess command the way get_ls_class
// dispatches onto a Python class -- here, onto a Config for
// internal/lsphandler.Start. The extension table itself is grounded on the
// teacher's apps/cli/internal/analysis/language.go.
package langserver

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Language is the closed set of languages this service can delegate to a
// language server for. New languages are added here, not inferred.
type Language string

const (
	Go             Language = "go"
	Python         Language = "python"
	PythonJedi     Language = "python_jedi"
	TypeScript     Language = "typescript"
	TypeScriptVTS  Language = "typescript_vts"
	Vue            Language = "vue"
	Rust           Language = "rust"
	Java           Language = "java"
	Kotlin         Language = "kotlin"
	CSharp         Language = "csharp"
	CSharpOmnisharp Language = "csharp_omnisharp"
	Ruby           Language = "ruby"
	RubySolargraph Language = "ruby_solargraph"
	Dart           Language = "dart"
	CPP            Language = "cpp"
	PHP            Language = "php"
	Clojure        Language = "clojure"
	Elixir         Language = "elixir"
	Terraform      Language = "terraform"
	Swift          Language = "swift"
	Bash           Language = "bash"
	Lua            Language = "lua"
	AL             Language = "al"
)

// experimental mirrors solidlsp's Language.is_experimental(): alternate or
// deprecated server choices that exist for completeness but are never
// auto-selected by the router (see DESIGN.md Open Questions).
var experimental = map[Language]bool{
	TypeScriptVTS:   true,
	PythonJedi:      true,
	CSharpOmnisharp: true,
	RubySolargraph:  true,
}

// Experimental reports whether l is an alternate/deprecated variant that
// the router only selects when named explicitly in ProjectConfig.Languages.
func (l Language) Experimental() bool { return experimental[l] }

// All lists every known language. IterAll mirrors solidlsp's
// Language.iter_all(include_experimental).
func All() []Language {
	return []Language{
		Go, Python, PythonJedi, TypeScript, TypeScriptVTS, Vue, Rust, Java,
		Kotlin, CSharp, CSharpOmnisharp, Ruby, RubySolargraph, Dart, CPP, PHP,
		Clojure, Elixir, Terraform, Swift, Bash, Lua, AL,
	}
}

// IterAll returns every language, optionally including experimental ones.
func IterAll(includeExperimental bool) []Language {
	all := All()
	if includeExperimental {
		return all
	}
	out := make([]Language, 0, len(all))
	for _, l := range all {
		if !l.Experimental() {
			out = append(out, l)
		}
	}
	return out
}

// sourceGlobs is the per-language set of filename glob patterns, the direct
// generalization of the teacher's extensionToLanguage table to solidlsp's
// richer per-language pattern lists (several languages need more than a
// flat extension, e.g. TypeScript's c/m/"" x jsx/js/ts cross product).
var sourceGlobs = map[Language][]string{
	Go:              {"*.go"},
	Python:          {"*.py", "*.pyi"},
	PythonJedi:      {"*.py", "*.pyi"},
	TypeScript:      {"*.ts", "*.tsx", "*.mts", "*.cts", "*.js", "*.jsx", "*.mjs", "*.cjs"},
	TypeScriptVTS:   {"*.ts", "*.tsx", "*.mts", "*.cts", "*.js", "*.jsx", "*.mjs", "*.cjs"},
	Vue:             {"*.vue"},
	Rust:            {"*.rs"},
	Java:            {"*.java"},
	Kotlin:          {"*.kt", "*.kts"},
	CSharp:          {"*.cs"},
	CSharpOmnisharp: {"*.cs"},
	Ruby:            {"*.rb", "*.erb"},
	RubySolargraph:  {"*.rb"},
	Dart:            {"*.dart"},
	CPP:             {"*.cpp", "*.h", "*.hpp", "*.c", "*.hxx", "*.cc", "*.cxx"},
	PHP:             {"*.php"},
	Clojure:         {"*.clj", "*.cljs", "*.cljc", "*.edn"},
	Elixir:          {"*.ex", "*.exs"},
	Terraform:       {"*.tf", "*.tfvars", "*.tfstate"},
	Swift:           {"*.swift"},
	Bash:            {"*.sh", "*.bash"},
	Lua:             {"*.lua"},
	AL:              {"*.al", "*.dal"},
}

// MatchesSource reports whether relativePath is a source file for l,
// matching by basename against l's glob set (doublestar.Match, the same
// library the teacher uses for fsutil.MatchesGuardrail).
func (l Language) MatchesSource(relativePath string) bool {
	base := filepath.Base(relativePath)
	for _, pattern := range sourceGlobs[l] {
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// DetectLanguage returns the first Language (in IterAll order, experimental
// variants excluded) whose source globs match relativePath, or "" if none
// do. Callers that need experimental variants look them up by name
// directly via ProjectConfig.Languages instead of relying on detection.
func DetectLanguage(relativePath string) Language {
	for _, l := range IterAll(false) {
		if l.MatchesSource(relativePath) {
			return l
		}
	}
	return ""
}

// defaultIgnoredDirnames lists directory basenames each adapter skips
// during fan-out even when IgnoreSpec's gitignore-style patterns don't
// mention them -- the supplemented is_ignored_dirname feature
// (SPEC_FULL.md §12), grounded on the original's per-adapter
// IGNORED_DIRECTORIES-style constants (ls_config.py / gopls.py /
// language-server files referencing node_modules, .venv, target, vendor).
var defaultIgnoredDirnames = map[string]bool{
	"node_modules": true,
	".venv":        true,
	"venv":         true,
	"target":       true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	".git":         true,
}

// IsIgnoredDirname reports whether dirname should always be skipped during
// indexing fan-out for l, independent of the project's IgnoreSpec.
func (l Language) IsIgnoredDirname(dirname string) bool {
	if defaultIgnoredDirnames[dirname] {
		return true
	}
	switch l {
	case Elixir:
		return dirname == "_build" || dirname == "deps"
	case Rust:
		return dirname == "target"
	case Dart:
		return dirname == ".dart_tool"
	}
	return false
}

func (l Language) String() string { return string(l) }

// LanguageID maps a Language to the LSP languageId sent on
// textDocument/didOpen, which for several adapters differs from the
// Language value itself (e.g. both TypeScript variants speak "typescript").
func (l Language) LanguageID() string {
	switch l {
	case TypeScriptVTS:
		return "typescript"
	case PythonJedi:
		return "python"
	case CSharpOmnisharp:
		return "csharp"
	case RubySolargraph:
		return "ruby"
	default:
		return string(l)
	}
}
