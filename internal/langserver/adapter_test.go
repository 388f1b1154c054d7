package langserver

import (
	"encoding/json"
	"testing"

	"github.com/koksalmehmet/symbex/internal/logging"
)

func TestNewRegistryWiresEveryNonExperimentalLanguage(t *testing.T) {
	r := NewRegistry()
	for _, l := range IterAll(false) {
		if _, err := r.Get(l); err != nil {
			t.Errorf("Registry missing adapter for %s: %v", l, err)
		}
	}
}

func TestRegistryGetUnknownLanguage(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get(Language("cobol")); err == nil {
		t.Fatal("expected error for unregistered language")
	}
}

func TestRegistryRegisterOverridesExisting(t *testing.T) {
	r := NewRegistry()
	custom := baseAdapter{language: Go, command: "my-custom-gopls"}
	r.Register(custom)
	a, err := r.Get(Go)
	if err != nil {
		t.Fatalf("Get(go) error: %v", err)
	}
	cfg := a.HandlerConfig("/tmp/project", nil)
	if cfg.Command != "my-custom-gopls" {
		t.Errorf("Command = %q, want override to take effect", cfg.Command)
	}
}

func TestHandlerConfigCarriesRootPathAndScopedLogger(t *testing.T) {
	r := NewRegistry()
	a, err := r.Get(Go)
	if err != nil {
		t.Fatalf("Get(go) error: %v", err)
	}
	logger := logging.New(nopWriter{}, "test", logging.LevelError)
	cfg := a.HandlerConfig("/some/root", logger)
	if cfg.RootPath != "/some/root" {
		t.Errorf("RootPath = %q, want /some/root", cfg.RootPath)
	}
	if cfg.Logger == nil {
		t.Error("expected a scoped logger, got nil")
	}
	if cfg.ReadyLogSubstring == "" {
		t.Error("gopls adapter should set a readiness substring")
	}
}

func TestValidateInitOptionsRejectsSchemaMismatch(t *testing.T) {
	r := NewRegistry()
	a, err := r.Get(Go)
	if err != nil {
		t.Fatalf("Get(go) error: %v", err)
	}
	bad := json.RawMessage(`{"buildFlags": "not-an-array"}`)
	if err := a.ValidateInitOptions(bad); err == nil {
		t.Fatal("expected schema validation error")
	}
	good := json.RawMessage(`{"buildFlags": ["-tags=integration"]}`)
	if err := a.ValidateInitOptions(good); err != nil {
		t.Errorf("unexpected error for valid init options: %v", err)
	}
}

func TestValidateInitOptionsNilSchemaAlwaysPasses(t *testing.T) {
	r := NewRegistry()
	a, err := r.Get(Rust) // rust-analyzer adapter carries no schema
	if err != nil {
		t.Fatalf("Get(rust) error: %v", err)
	}
	if err := a.ValidateInitOptions(json.RawMessage(`{"anything": true}`)); err != nil {
		t.Errorf("unexpected error with no schema registered: %v", err)
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
