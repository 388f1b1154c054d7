package lsperr

import (
	"errors"
	"testing"
)

func TestErrorIsMatchesItsOwnKind(t *testing.T) {
	err := SymbolNotFound("A/foo")
	if !errors.Is(err, KindSymbolNotFound) {
		t.Error("errors.Is(err, its own Kind) should be true")
	}
	if errors.Is(err, KindReadOnly) {
		t.Error("errors.Is(err, a different Kind) should be false")
	}
}

func TestErrorUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	err := ServerInitFailed("go", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through Unwrap to the wrapped cause")
	}
}

func TestAmbiguousSymbolMessageCarriesCount(t *testing.T) {
	err := AmbiguousSymbol("foo", 3)
	want := `name path "foo" matches 3 symbols, expected exactly one`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
