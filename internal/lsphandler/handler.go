// Package lsphandler implements component C2, the Language Server Handler:
// spawning a language server subprocess, performing the initialize
// handshake, answering server-initiated requests with sane defaults, and
// exposing the typed document-sync and query methods the rest of the
// service calls. The spawn/init/close lifecycle is grounded on
// apps/cli/internal/analysis/lsp_client.go's NewLSPClient/initialize/Close;
// the readiness-wait-on-log-message mechanism is a supplemented feature
// (SPEC_FULL.md §12) grounded on the original solidlsp gopls/elixir_tools
// adapters, which register a temporary window/logMessage handler and close
// a channel once a known substring is seen.
package lsphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/koksalmehmet/symbex/internal/logging"
	"github.com/koksalmehmet/symbex/internal/lsperr"
	"github.com/koksalmehmet/symbex/internal/lspwire"
	"github.com/koksalmehmet/symbex/internal/rpc"
)

// Config describes how to spawn and initialize one language server
// subprocess.
type Config struct {
	Language               string
	Command                string
	Args                   []string
	Env                     []string
	RootPath                string
	InitializationOptions   json.RawMessage
	Logger                  *logging.Logger
	StderrClassifier        logging.StderrClassifier
	InitTimeout             time.Duration
	// ReadyLogSubstring, if non-empty, makes Start block (up to ReadyTimeout)
	// until a window/logMessage notification containing this substring is
	// observed, following the original's indexing-complete heuristic for
	// servers (gopls, elixir-ls) that report readiness only via log lines.
	ReadyLogSubstring string
	ReadyTimeout      time.Duration
}

// Handler owns one running language server subprocess.
type Handler struct {
	cfg       Config
	cmd       *exec.Cmd
	transport *rpc.Transport
	logger    *logging.Logger

	mu           sync.Mutex
	capabilities lspwire.ServerCapabilities
	running      bool
	closer       func() error

	waitersMu sync.Mutex
	waiters   map[string][]chan struct{}

	extraMu     sync.Mutex
	extraNotify map[string]func(json.RawMessage)
}

// FromTransport wraps an already-connected Transport with the initialize
// handshake and typed query methods, without spawning a subprocess of its
// own. This is how internal/lsphandler/testserver-backed tests exercise
// this package without a real language server binary; the hybrid
// Vue+TypeScript adapter (SPEC_FULL.md §4.3.1) spawns both of its servers
// with Start instead. closer is invoked by
// Shutdown instead of killing a process; pass a no-op if the caller owns
// the transport's lifecycle.
func FromTransport(ctx context.Context, cfg Config, transport *rpc.Transport, closer func() error) (*Handler, error) {
	if cfg.InitTimeout == 0 {
		cfg.InitTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New(io.Discard, cfg.Language, logging.LevelInfo)
	}
	h := &Handler{
		cfg:     cfg,
		logger:  logger,
		waiters: make(map[string][]chan struct{}),
		closer:  closer,
		running: true,
	}
	h.transport = transport
	transport.SetNotificationHandler(h.handleNotification)
	transport.SetRequestHandler(h.handleServerRequest)

	if err := h.initialize(ctx); err != nil {
		_ = closer()
		return nil, lsperr.ServerInitFailed(cfg.Language, err)
	}
	h.awaitReadiness()
	return h, nil
}

// awaitReadiness blocks, if cfg.ReadyLogSubstring is set, until that
// substring is seen on window/logMessage or the readiness timeout elapses.
// A timeout here only logs a warning: spec.md treats readiness-wait as a
// best-effort optimization, not a precondition for issuing queries.
func (h *Handler) awaitReadiness() {
	if h.cfg.ReadyLogSubstring == "" {
		return
	}
	timeout := h.cfg.ReadyTimeout
	if timeout == 0 {
		timeout = h.cfg.InitTimeout
	}
	if err := h.waitForLogSubstring(h.cfg.ReadyLogSubstring, timeout); err != nil {
		h.logger.Warnf("readiness wait for %q timed out: %v", h.cfg.ReadyLogSubstring, err)
	}
}

// Start spawns the subprocess, wires up the transport, performs the
// initialize/initialized handshake, and -- if configured -- waits for the
// server's readiness log line before returning.
func Start(ctx context.Context, cfg Config) (*Handler, error) {
	if cfg.InitTimeout == 0 {
		cfg.InitTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New(io.Discard, cfg.Language, logging.LevelInfo)
	}
	classify := cfg.StderrClassifier
	if classify == nil {
		classify = logging.DefaultStderrClassifier
	}

	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		return nil, lsperr.MissingToolchain(cfg.Language, err)
	}

	cmd := exec.CommandContext(ctx, path, cfg.Args...)
	cmd.Dir = cfg.RootPath
	if len(cfg.Env) > 0 {
		cmd.Env = cfg.Env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, lsperr.ServerInitFailed(cfg.Language, fmt.Errorf("stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, lsperr.ServerInitFailed(cfg.Language, fmt.Errorf("stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, lsperr.ServerInitFailed(cfg.Language, fmt.Errorf("stderr pipe: %w", err))
	}

	h := &Handler{
		cfg:     cfg,
		cmd:     cmd,
		logger:  logger,
		waiters: make(map[string][]chan struct{}),
	}
	h.closer = h.killAndWait
	h.transport = rpc.New(stdin, logger)
	h.transport.SetNotificationHandler(h.handleNotification)
	h.transport.SetRequestHandler(h.handleServerRequest)

	if err := cmd.Start(); err != nil {
		return nil, lsperr.ServerInitFailed(cfg.Language, fmt.Errorf("start %s: %w", cfg.Command, err))
	}
	h.running = true
	h.transport.Start(stdout)
	go h.pumpStderr(stderr, classify)

	if err := h.initialize(ctx); err != nil {
		h.killAndWait()
		return nil, lsperr.ServerInitFailed(cfg.Language, err)
	}
	h.awaitReadiness()

	return h, nil
}

func (h *Handler) pumpStderr(r io.Reader, classify logging.StderrClassifier) {
	buf := make([]byte, 4096)
	var partial strings.Builder
	for {
		n, err := r.Read(buf)
		if n > 0 {
			partial.Write(buf[:n])
			for {
				s := partial.String()
				idx := strings.IndexByte(s, '\n')
				if idx < 0 {
					break
				}
				line := strings.TrimRight(s[:idx], "\r")
				partial.Reset()
				partial.WriteString(s[idx+1:])
				h.logStderrLine(line, classify)
			}
		}
		if err != nil {
			return
		}
	}
}

func (h *Handler) logStderrLine(line string, classify logging.StderrClassifier) {
	switch classify(line) {
	case logging.LevelError:
		h.logger.Errorf("%s", line)
	case logging.LevelWarn:
		h.logger.Warnf("%s", line)
	case logging.LevelInfo:
		h.logger.Infof("%s", line)
	default:
		h.logger.Debugf("%s", line)
	}
}

func (h *Handler) initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.InitTimeout)
	defer cancel()

	pid := int(1)
	params := lspwire.InitializeParams{
		ProcessID: &pid,
		ClientInfo: &lspwire.ClientInfo{Name: "symbex", Version: "0.1"},
		RootURI:   pathToURI(h.cfg.RootPath),
		RootPath:  h.cfg.RootPath,
		Capabilities: lspwire.ClientCapabilities{
			TextDocument: &lspwire.TextDocumentClientCapabilities{
				Synchronization: &lspwire.TextDocumentSyncClientCapabilities{DidSave: true},
				DocumentSymbol:  &lspwire.DocumentSymbolClientCapabilities{HierarchicalDocumentSymbolSupport: true},
				Rename:          &lspwire.RenameClientCapabilities{PrepareSupport: false},
			},
			Workspace: &lspwire.WorkspaceClientCapabilities{Configuration: true, WorkspaceFolders: true},
		},
		InitializationOptions: h.cfg.InitializationOptions,
		WorkspaceFolders: []lspwire.WorkspaceFolder{
			{URI: pathToURI(h.cfg.RootPath), Name: "root"},
		},
	}

	raw, err := h.transport.Call(ctx, "initialize", params)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	var result lspwire.InitializeResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return lsperr.Protocol("unmarshal InitializeResult", err)
		}
	}
	h.mu.Lock()
	h.capabilities = result.Capabilities
	h.mu.Unlock()

	if err := h.transport.Notify("initialized", struct{}{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

func pathToURI(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "file://" + path
}

// Capabilities returns the server capabilities negotiated at initialize.
func (h *Handler) Capabilities() lspwire.ServerCapabilities {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.capabilities
}

// IsRunning reports whether the subprocess is believed to still be alive.
func (h *Handler) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// --- document sync ---

func (h *Handler) DidOpen(uri, languageID, text string, version int) error {
	return h.transport.Notify("textDocument/didOpen", lspwire.DidOpenTextDocumentParams{
		TextDocument: lspwire.TextDocumentItem{URI: uri, LanguageID: languageID, Version: version, Text: text},
	})
}

func (h *Handler) DidChange(uri string, version int, fullText string) error {
	return h.transport.Notify("textDocument/didChange", lspwire.DidChangeTextDocumentParams{
		TextDocument:   lspwire.VersionedTextDocumentIdentifier{TextDocumentIdentifier: lspwire.TextDocumentIdentifier{URI: uri}, Version: version},
		ContentChanges: []lspwire.TextDocumentContentChangeEvent{{Text: fullText}},
	})
}

func (h *Handler) DidClose(uri string) error {
	return h.transport.Notify("textDocument/didClose", lspwire.DidCloseTextDocumentParams{
		TextDocument: lspwire.TextDocumentIdentifier{URI: uri},
	})
}

func (h *Handler) DidSave(uri, text string) error {
	return h.transport.Notify("textDocument/didSave", lspwire.DidSaveTextDocumentParams{
		TextDocument: lspwire.TextDocumentIdentifier{URI: uri},
		Text:         text,
	})
}

// --- queries ---

// DocumentSymbol issues textDocument/documentSymbol and returns the raw
// reply. Some servers reply with the flat SymbolInformation[] shape
// instead of hierarchical DocumentSymbol[]; internal/symbolsvc's
// parseDocumentSymbolResponse detects which shape arrived and converts it.
func (h *Handler) DocumentSymbol(ctx context.Context, uri string) (json.RawMessage, error) {
	raw, err := h.transport.Call(ctx, "textDocument/documentSymbol", lspwire.DocumentSymbolParams{
		TextDocument: lspwire.TextDocumentIdentifier{URI: uri},
	})
	if err != nil {
		return nil, classifyCallErr(ctx, "textDocument/documentSymbol", err)
	}
	return raw, nil
}

func (h *Handler) References(ctx context.Context, uri string, pos lspwire.Position, includeDeclaration bool) ([]lspwire.Location, error) {
	raw, err := h.transport.Call(ctx, "textDocument/references", lspwire.ReferenceParams{
		TextDocument: lspwire.TextDocumentIdentifier{URI: uri},
		Position:     pos,
		Context:      lspwire.ReferenceContext{IncludeDeclaration: includeDeclaration},
	})
	if err != nil {
		return nil, classifyCallErr(ctx, "textDocument/references", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var locations []lspwire.Location
	if err := json.Unmarshal(raw, &locations); err != nil {
		return nil, lsperr.Protocol("unmarshal references result", err)
	}
	return locations, nil
}

func (h *Handler) Definition(ctx context.Context, uri string, pos lspwire.Position) ([]lspwire.Location, error) {
	raw, err := h.transport.Call(ctx, "textDocument/definition", lspwire.DefinitionParams{
		TextDocument: lspwire.TextDocumentIdentifier{URI: uri},
		Position:     pos,
	})
	if err != nil {
		return nil, classifyCallErr(ctx, "textDocument/definition", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	// A server may reply with a single Location instead of Location[].
	var locations []lspwire.Location
	if err := json.Unmarshal(raw, &locations); err == nil {
		return locations, nil
	}
	var single lspwire.Location
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, lsperr.Protocol("unmarshal definition result", err)
	}
	return []lspwire.Location{single}, nil
}

func (h *Handler) Rename(ctx context.Context, uri string, pos lspwire.Position, newName string) (*lspwire.WorkspaceEdit, error) {
	raw, err := h.transport.Call(ctx, "textDocument/rename", lspwire.RenameParams{
		TextDocument: lspwire.TextDocumentIdentifier{URI: uri},
		Position:     pos,
		NewName:      newName,
	})
	if err != nil {
		return nil, classifyCallErr(ctx, "textDocument/rename", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, lsperr.SymbolNotFound(fmt.Sprintf("%s@%d:%d", uri, pos.Line, pos.Character))
	}
	var edit lspwire.WorkspaceEdit
	if err := json.Unmarshal(raw, &edit); err != nil {
		return nil, lsperr.Protocol("unmarshal rename result", err)
	}
	return &edit, nil
}

// Call issues an arbitrary request and Notify sends an arbitrary
// notification. Both exist for adapters like the hybrid Vue+TypeScript
// relay (SPEC_FULL.md §4.3.1), which needs to forward method calls this
// Handler has no typed wrapper for (workspace/executeCommand with the
// "typescript.tsserverRequest" command, and the tsserver/response
// notification back to the Vue server).
func (h *Handler) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	raw, err := h.transport.Call(ctx, method, params)
	if err != nil {
		return nil, classifyCallErr(ctx, method, err)
	}
	return raw, nil
}

func (h *Handler) Notify(method string, params any) error {
	return h.transport.Notify(method, params)
}

// OnNotification registers an additional notification handler beyond the
// built-in window/logMessage/$/progress handling, for adapter-specific
// server-to-client messages such as Vue's tsserver/request relay.
func (h *Handler) OnNotification(method string, fn func(params json.RawMessage)) {
	h.extraMu.Lock()
	defer h.extraMu.Unlock()
	if h.extraNotify == nil {
		h.extraNotify = make(map[string]func(json.RawMessage))
	}
	h.extraNotify[method] = fn
}

func classifyCallErr(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return lsperr.Cancelled(method)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return lsperr.Timeout(method)
	}
	if rpcErr, ok := err.(*lspwire.RPCError); ok {
		return lsperr.Protocol(fmt.Sprintf("%s: %s", method, rpcErr.Message), rpcErr)
	}
	return fmt.Errorf("%s: %w", method, err)
}

// --- lifecycle ---

// Shutdown performs the graceful shutdown/exit sequence and waits (with a
// bounded timeout) for the process to exit before killing it, following
// lsp_client.go's Close.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, _ = h.transport.Call(shutdownCtx, "shutdown", nil)
	_ = h.transport.Notify("exit", nil)

	if h.closer != nil {
		return h.closer()
	}
	return nil
}

func (h *Handler) killAndWait() error {
	done := make(chan error, 1)
	go func() {
		if h.cmd.Process != nil {
			done <- h.cmd.Wait()
		} else {
			done <- nil
		}
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		if h.cmd.Process != nil {
			_ = h.cmd.Process.Kill()
		}
		return <-done
	}
}

// --- server-initiated requests/notifications ---

func (h *Handler) handleNotification(method string, params json.RawMessage) {
	switch method {
	case "window/logMessage":
		var p lspwire.LogMessageParams
		if err := json.Unmarshal(params, &p); err == nil {
			h.logger.Debugf("logMessage: %s", p.Message)
			h.notifyWaiters(p.Message)
		}
	case "$/progress":
		// Accepted and ignored; readiness is detected from window/logMessage only.
	default:
		h.extraMu.Lock()
		fn := h.extraNotify[method]
		h.extraMu.Unlock()
		if fn != nil {
			fn(params)
			return
		}
		h.logger.Debugf("unhandled notification %s", method)
	}
}

func (h *Handler) handleServerRequest(_ context.Context, method string, params json.RawMessage) (any, *lspwire.RPCError) {
	switch method {
	case "workspace/configuration":
		var p lspwire.ConfigurationParams
		_ = json.Unmarshal(params, &p)
		results := make([]any, len(p.Items))
		return results, nil
	case "client/registerCapability", "client/unregisterCapability":
		return struct{}{}, nil
	case "workspace/workspaceFolders":
		return []lspwire.WorkspaceFolder{{URI: pathToURI(h.cfg.RootPath), Name: "root"}}, nil
	case "window/workDoneProgress/create":
		return struct{}{}, nil
	default:
		return nil, &lspwire.RPCError{Code: lspwire.ErrCodeMethodNotFound, Message: "method not supported: " + method}
	}
}

// waitForLogSubstring blocks until a window/logMessage containing substr is
// observed or timeout elapses.
func (h *Handler) waitForLogSubstring(substr string, timeout time.Duration) error {
	ch := make(chan struct{})
	h.waitersMu.Lock()
	h.waiters[substr] = append(h.waiters[substr], ch)
	h.waitersMu.Unlock()

	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		return lsperr.Timeout("waiting for readiness log line: " + substr)
	}
}

func (h *Handler) notifyWaiters(message string) {
	h.waitersMu.Lock()
	defer h.waitersMu.Unlock()
	for substr, chans := range h.waiters {
		if strings.Contains(message, substr) {
			for _, ch := range chans {
				close(ch)
			}
			delete(h.waiters, substr)
		}
	}
}
