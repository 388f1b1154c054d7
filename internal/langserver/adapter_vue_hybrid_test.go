package langserver

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/koksalmehmet/symbex/internal/lsphandler"
	"github.com/koksalmehmet/symbex/internal/lsphandler/testserver"
	"github.com/koksalmehmet/symbex/internal/rpc"
)

// fakeTSHandler builds a *lsphandler.Handler wired over an in-process pipe,
// the same way internal/router's tests avoid spawning a real subprocess.
func fakeTSHandler(t *testing.T) *lsphandler.Handler {
	t.Helper()
	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	srv := testserver.New()
	srv.Serve(serverRead, serverWrite)

	transport := rpc.New(clientWrite, nil)
	transport.Start(clientRead)

	h, err := lsphandler.FromTransport(context.Background(), lsphandler.Config{Language: "typescript"}, transport, func() error { return nil })
	if err != nil {
		t.Fatalf("FromTransport() error = %v", err)
	}
	return h
}

func newTestHybridHandle(t *testing.T) *HybridHandle {
	return &HybridHandle{Vue: fakeTSHandler(t), ts: fakeTSHandler(t)}
}

func TestEnsureVueFileIndexedOpensOnce(t *testing.T) {
	h := newTestHybridHandle(t)
	if err := h.EnsureVueFileIndexed("file:///a.vue", "<template/>"); err != nil {
		t.Fatalf("EnsureVueFileIndexed() error: %v", err)
	}
	if len(h.openVue) != 1 {
		t.Fatalf("openVue = %v, want one entry", h.openVue)
	}
	// Re-indexing the same file must not duplicate the LRU entry.
	if err := h.EnsureVueFileIndexed("file:///a.vue", "<template/>"); err != nil {
		t.Fatalf("EnsureVueFileIndexed() second call error: %v", err)
	}
	if len(h.openVue) != 1 {
		t.Fatalf("openVue = %v, want still one entry after re-indexing", h.openVue)
	}
}

func TestEnsureVueFileIndexedEvictsLeastRecentlyUsed(t *testing.T) {
	h := newTestHybridHandle(t)
	for i := 0; i < vueIndexLRUCap; i++ {
		uri := fmt.Sprintf("file:///f%d.vue", i)
		if err := h.EnsureVueFileIndexed(uri, ""); err != nil {
			t.Fatalf("EnsureVueFileIndexed(%s) error: %v", uri, err)
		}
	}
	if len(h.openVue) != vueIndexLRUCap {
		t.Fatalf("openVue length = %d, want %d", len(h.openVue), vueIndexLRUCap)
	}

	if err := h.EnsureVueFileIndexed("file:///overflow.vue", ""); err != nil {
		t.Fatalf("EnsureVueFileIndexed(overflow) error: %v", err)
	}
	if len(h.openVue) != vueIndexLRUCap {
		t.Fatalf("openVue length after eviction = %d, want %d", len(h.openVue), vueIndexLRUCap)
	}
	if h.openVue[0] == "file:///f0.vue" {
		t.Error("least-recently-used entry (f0.vue) should have been evicted")
	}
	if h.openVue[len(h.openVue)-1] != "file:///overflow.vue" {
		t.Error("newly indexed file should be the most-recently-used entry")
	}
}

func TestNewHybridVueAdapterLanguageIsVue(t *testing.T) {
	a := NewHybridVueAdapter()
	if a.Language() != Vue {
		t.Errorf("Language() = %s, want vue", a.Language())
	}
	cfg := a.HandlerConfig("/root", nil)
	if cfg.Command != "vue-language-server" {
		t.Errorf("Command = %q, want vue-language-server", cfg.Command)
	}
}
