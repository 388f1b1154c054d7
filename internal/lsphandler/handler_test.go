package lsphandler

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/koksalmehmet/symbex/internal/lspwire"
	"github.com/koksalmehmet/symbex/internal/rpc"
	"github.com/koksalmehmet/symbex/internal/lsphandler/testserver"
)

// pipePair wires a Handler to a testserver.Server over two os.Pipe
// instances, standing in for the subprocess's stdin/stdout without
// spawning a real binary.
func pipePair(t *testing.T) (*Handler, *testserver.Server) {
	t.Helper()
	clientReader, serverWriter, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	serverReader, clientWriter, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}

	srv := testserver.New()
	srv.Serve(serverReader, serverWriter)

	clientTransport := rpc.New(clientWriter, nil)
	clientTransport.Start(clientReader)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h, err := FromTransport(ctx, Config{Language: "go", RootPath: "/tmp/proj"}, clientTransport, func() error {
		_ = clientWriter.Close()
		_ = clientReader.Close()
		return nil
	})
	if err != nil {
		t.Fatalf("FromTransport: %v", err)
	}
	t.Cleanup(func() {
		_ = h.Shutdown(context.Background())
	})
	return h, srv
}

func TestHandlerInitializeHandshake(t *testing.T) {
	h, _ := pipePair(t)
	if !h.IsRunning() {
		t.Fatal("expected handler to report running after successful initialize")
	}
}

func TestHandlerDocumentSymbol(t *testing.T) {
	h, srv := pipePair(t)
	srv.On("textDocument/documentSymbol", func(json.RawMessage) (any, *lspwire.RPCError) {
		return []lspwire.DocumentSymbol{{
			Name: "Foo",
			Kind: lspwire.SymbolKindFunction,
			Range: lspwire.Range{
				Start: lspwire.Position{Line: 0, Character: 0},
				End:   lspwire.Position{Line: 2, Character: 1},
			},
			SelectionRange: lspwire.Range{
				Start: lspwire.Position{Line: 0, Character: 5},
				End:   lspwire.Position{Line: 0, Character: 8},
			},
		}}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	raw, err := h.DocumentSymbol(ctx, "file:///tmp/proj/foo.go")
	if err != nil {
		t.Fatalf("DocumentSymbol: %v", err)
	}
	var symbols []lspwire.DocumentSymbol
	if err := json.Unmarshal(raw, &symbols); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(symbols) != 1 || symbols[0].Name != "Foo" {
		t.Fatalf("unexpected symbols: %+v", symbols)
	}
}

func TestHandlerRenameNullResultIsSymbolNotFound(t *testing.T) {
	h, srv := pipePair(t)
	srv.On("textDocument/rename", func(json.RawMessage) (any, *lspwire.RPCError) {
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := h.Rename(ctx, "file:///tmp/proj/foo.go", lspwire.Position{}, "Bar")
	if err == nil {
		t.Fatal("expected SymbolNotFound error for null rename result")
	}
}

func TestHandlerReadinessWaitOnLogMessage(t *testing.T) {
	clientReader, serverWriter, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	serverReader, clientWriter, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	srv := testserver.New()
	srv.Serve(serverReader, serverWriter)

	clientTransport := rpc.New(clientWriter, nil)
	clientTransport.Start(clientReader)

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = srv.Notify("window/logMessage", lspwire.LogMessageParams{Message: "Finished loading packages."})
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h, err := FromTransport(ctx, Config{
		Language:          "go",
		RootPath:          "/tmp/proj",
		ReadyLogSubstring: "Finished loading packages.",
		ReadyTimeout:      time.Second,
	}, clientTransport, func() error { return nil })
	if err != nil {
		t.Fatalf("FromTransport: %v", err)
	}
	<-done
	_ = h
}
