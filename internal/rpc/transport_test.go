package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/koksalmehmet/symbex/internal/lspwire"
)

// pipePair wires two Transports back to back over io.Pipe, so a call on
// one side is answered (or observed) by the other -- the same in-process
// wiring internal/lsphandler/testserver uses for its fake server, applied
// here to exercise the framing layer directly.
func pipePair(t *testing.T) (client, server *Transport) {
	t.Helper()
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()

	client = New(cw, nil)
	server = New(sw, nil)
	client.Start(cr)
	server.Start(sr)
	t.Cleanup(func() {
		cr.Close()
		sw.Close()
		sr.Close()
		cw.Close()
	})
	return client, server
}

func TestCallRoundTrip(t *testing.T) {
	client, server := pipePair(t)
	server.SetRequestHandler(func(ctx context.Context, method string, params json.RawMessage) (any, *lspwire.RPCError) {
		if method != "ping" {
			return nil, &lspwire.RPCError{Code: lspwire.ErrCodeMethodNotFound, Message: method}
		}
		return map[string]string{"pong": "yes"}, nil
	})

	result, err := client.Call(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	var decoded struct {
		Pong string `json:"pong"`
	}
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if decoded.Pong != "yes" {
		t.Errorf("decoded.Pong = %q, want \"yes\"", decoded.Pong)
	}
}

func TestCallPropagatesRPCError(t *testing.T) {
	client, server := pipePair(t)
	server.SetRequestHandler(func(ctx context.Context, method string, params json.RawMessage) (any, *lspwire.RPCError) {
		return nil, &lspwire.RPCError{Code: lspwire.ErrCodeInvalidParams, Message: "bad params"}
	})

	_, err := client.Call(context.Background(), "anything", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	rpcErr, ok := err.(*lspwire.RPCError)
	if !ok {
		t.Fatalf("expected *lspwire.RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != lspwire.ErrCodeInvalidParams {
		t.Errorf("rpcErr.Code = %d, want %d", rpcErr.Code, lspwire.ErrCodeInvalidParams)
	}
}

func TestCallRespectsContextCancellation(t *testing.T) {
	client, server := pipePair(t)
	// Register a server handler that never returns, so the request is
	// received but never answered -- the call must still return once ctx
	// is done.
	server.SetRequestHandler(func(ctx context.Context, method string, params json.RawMessage) (any, *lspwire.RPCError) {
		select {}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Call(ctx, "slow", nil)
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestNotifyDeliversToHandler(t *testing.T) {
	client, server := pipePair(t)
	received := make(chan string, 1)
	server.SetNotificationHandler(func(method string, params json.RawMessage) {
		received <- method
	})

	if err := client.Notify("textDocument/didOpen", map[string]string{"uri": "file:///a.go"}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}

	select {
	case method := <-received:
		if method != "textDocument/didOpen" {
			t.Errorf("received method %q, want textDocument/didOpen", method)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestWriteFrameProducesContentLengthHeader(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)
	if err := tr.Notify("ping", nil); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	want := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(`{"jsonrpc":"2.0","method":"ping"}`))
	if !bytes.HasPrefix(buf.Bytes(), []byte(want)) {
		t.Errorf("frame header = %q, want prefix %q", buf.Bytes(), want)
	}
}

func TestReadContentLengthRejectsMissingHeader(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("\r\n"))
	if _, err := readContentLength(r); err == nil {
		t.Fatal("expected error for missing Content-Length header")
	}
}
