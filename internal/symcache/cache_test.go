package symcache

import (
	"context"
	"testing"

	"github.com/koksalmehmet/symbex/internal/symbol"
)

func TestStoreThenLookupHit(t *testing.T) {
	c, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	tree := []symbol.Symbol{{Name: "Foo", NamePath: "Foo", Kind: symbol.KindFunction}}
	hash := HashContent("package a\nfunc Foo() {}\n")

	if err := c.Store(ctx, "a.go", "go", hash, tree); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	got, ok, err := c.Lookup(ctx, "a.go", "go", hash)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0].Name != "Foo" {
		t.Fatalf("unexpected tree returned: %+v", got)
	}
}

func TestLookupMissOnHashChange(t *testing.T) {
	c, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	hash := HashContent("def foo(): return 1")
	if err := c.Store(ctx, "a.py", "python", hash, []symbol.Symbol{{Name: "foo"}}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	newHash := HashContent("def foo(): return 2")
	_, ok, err := c.Lookup(ctx, "a.py", "python", newHash)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if ok {
		t.Fatal("expected cache miss after content hash changed")
	}
}

func TestInvalidateRemovesEntry(t *testing.T) {
	c, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	hash := HashContent("x")
	if err := c.Store(ctx, "a.go", "go", hash, []symbol.Symbol{{Name: "X"}}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := c.Invalidate(ctx, "a.go", "go"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, ok, _ := c.Lookup(ctx, "a.go", "go", hash); ok {
		t.Fatal("expected miss after invalidation")
	}
}
