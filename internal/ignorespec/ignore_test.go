package ignorespec

import "testing"

func TestMatchesDirectoryPattern(t *testing.T) {
	s := New([]string{"node_modules", "*.generated.go"})

	cases := map[string]bool{
		"node_modules":                  true,
		"node_modules/left-pad/index.js": true,
		"internal/foo.generated.go":     true,
		"internal/foo.go":               false,
	}
	for path, want := range cases {
		if got := s.Matches(path); got != want {
			t.Errorf("Matches(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestNewSkipsBlankAndCommentLines(t *testing.T) {
	s := New([]string{"", "  ", "# comment", "build"})
	if len(s.Patterns()) != 1 {
		t.Fatalf("expected exactly one compiled pattern, got %v", s.Patterns())
	}
}

func TestGitignoreToGlobAnchorsNestedMatches(t *testing.T) {
	s := New([]string{gitignoreToGlob("dist/")})
	if !s.Matches("apps/cli/dist/main.js") {
		t.Fatal("expected directory-only gitignore pattern to match at any depth")
	}
	if s.Matches("apps/cli/dist.go") {
		t.Fatal("directory-only pattern should not match a same-named file")
	}
}

func TestLoadGitignoreMissingFileIsNotError(t *testing.T) {
	patterns, err := LoadGitignore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error for missing .gitignore: %v", err)
	}
	if patterns != nil {
		t.Fatalf("expected nil patterns, got %v", patterns)
	}
}
