package projectconfig

import (
	"testing"

	"github.com/koksalmehmet/symbex/internal/langserver"
)

func TestValidateDefaultsEncoding(t *testing.T) {
	c := &Config{ProjectRoot: "/tmp/project", Languages: []langserver.Language{langserver.Go}}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if c.Encoding != "utf-8" {
		t.Fatalf("Encoding = %q, want utf-8", c.Encoding)
	}
}

func TestValidateRejectsRelativeRoot(t *testing.T) {
	c := &Config{ProjectRoot: "relative/path", Languages: []langserver.Language{langserver.Go}}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for relative project_root")
	}
}

func TestValidateRejectsUnknownLanguage(t *testing.T) {
	c := &Config{ProjectRoot: "/tmp/project", Languages: []langserver.Language{"cobol"}}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unknown language")
	}
}

func TestCanonicalizeRejectsEscape(t *testing.T) {
	c := &Config{ProjectRoot: "/tmp/project"}
	if _, err := c.Canonicalize("../../etc/passwd"); err == nil {
		t.Fatal("expected PathEscape for a path climbing above project_root")
	}
}

func TestCanonicalizeAllowsDescendant(t *testing.T) {
	c := &Config{ProjectRoot: "/tmp/project"}
	got, err := c.Canonicalize("internal/foo.go")
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}
	if got != "/tmp/project/internal/foo.go" {
		t.Fatalf("got %q, want /tmp/project/internal/foo.go", got)
	}
}
