// Package testserver is an in-process fake language server used by
// internal/lsphandler and internal/langserver tests so the suite runs
// without gopls, pyright, or any other real vendor binary installed. It
// plays the same role as the teacher's
// apps/cli/internal/analysis/lsp_mock.go MockLSPClient -- an
// injectable-function test double -- but sits on the *server* side of a
// real framed JSON-RPC connection (over an os.Pipe pair) instead of
// replacing the client API, since the thing under test here is the framing
// and dispatch layer itself, not just the caller logic above it.
package testserver

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/koksalmehmet/symbex/internal/lspwire"
	"github.com/koksalmehmet/symbex/internal/rpc"
)

// Handler computes a result (or error) for one method call.
type Handler func(params json.RawMessage) (result any, rpcErr *lspwire.RPCError)

// Server is a minimal scriptable LSP server. Register method handlers with
// On, then Serve it over one end of a pipe while the code under test talks
// to the other end.
type Server struct {
	mu       sync.Mutex
	handlers map[string]Handler

	transport *rpc.Transport
}

// New creates a Server with the standard initialize/initialized/shutdown/exit
// handlers pre-registered with reasonable defaults; tests override them with
// On as needed.
func New() *Server {
	s := &Server{handlers: make(map[string]Handler)}
	s.On("initialize", func(json.RawMessage) (any, *lspwire.RPCError) {
		return lspwire.InitializeResult{
			ServerInfo: &lspwire.ServerInfo{Name: "testserver"},
		}, nil
	})
	s.On("shutdown", func(json.RawMessage) (any, *lspwire.RPCError) {
		return nil, nil
	})
	s.On("textDocument/documentSymbol", func(json.RawMessage) (any, *lspwire.RPCError) {
		return []lspwire.DocumentSymbol{}, nil
	})
	return s
}

// On registers (or replaces) the handler for method.
func (s *Server) On(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Serve wires the server onto rw (typically one end of an os.Pipe pair) and
// starts dispatching in a background goroutine. It returns the underlying
// transport so a test can also push server-initiated notifications (e.g.
// window/logMessage) at the client under test.
func (s *Server) Serve(r io.Reader, w io.Writer) *rpc.Transport {
	s.transport = rpc.New(w, nil)
	s.transport.SetRequestHandler(func(_ context.Context, method string, params json.RawMessage) (any, *lspwire.RPCError) {
		return s.dispatch(method, params)
	})
	s.transport.Start(r)
	return s.transport
}

func (s *Server) dispatch(method string, params json.RawMessage) (any, *lspwire.RPCError) {
	s.mu.Lock()
	h, ok := s.handlers[method]
	s.mu.Unlock()
	if !ok {
		return nil, &lspwire.RPCError{Code: lspwire.ErrCodeMethodNotFound, Message: "unregistered test method: " + method}
	}
	return h(params)
}

// Notify pushes a server-to-client notification (e.g. window/logMessage)
// over the transport returned by Serve.
func (s *Server) Notify(method string, params any) error {
	return s.transport.Notify(method, params)
}
