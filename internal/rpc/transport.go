// Package rpc implements the JSON-RPC 2.0 Content-Length framed transport
// (component C1) used to talk to a subprocess language server over stdio.
// The framing and the mutex-guarded writer follow
// apps/cli/internal/lsp/server.go's readMessage/writeMessage pair; the
// pending-response-channel-by-ID routing follows
// apps/cli/internal/analysis/lsp_client.go's readResponses/sendRequestWithContext.
// Unlike the teacher's client, this Transport is bidirectional: a language
// server can itself issue requests (workspace/configuration,
// client/registerCapability) that the handler above must answer, so the
// read loop dispatches both directions instead of only routing responses.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/koksalmehmet/symbex/internal/logging"
	"github.com/koksalmehmet/symbex/internal/lspwire"
)

// RequestHandler answers a request the remote peer initiated. Returning a
// non-nil *lspwire.RPCError sends that error back instead of a result.
type RequestHandler func(ctx context.Context, method string, params json.RawMessage) (any, *lspwire.RPCError)

// NotificationHandler observes a notification the remote peer sent. It
// never blocks the read loop for long: callers that need to do real work
// should hand off to a goroutine or buffered channel.
type NotificationHandler func(method string, params json.RawMessage)

// Transport frames and dispatches JSON-RPC 2.0 messages over an arbitrary
// io.Reader/io.Writer pair -- a subprocess's stdio pipes in production, an
// os.Pipe in tests (internal/lsphandler/testserver).
type Transport struct {
	w  io.Writer
	wg sync.Mutex // guards writes so two goroutines never interleave frames

	nextID int64

	pendingMu sync.Mutex
	pending   map[int64]chan *lspwire.Response

	onNotify  NotificationHandler
	onRequest RequestHandler

	logger *logging.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Transport. Call Start to begin the read loop before issuing
// any Call/Notify.
func New(w io.Writer, logger *logging.Logger) *Transport {
	return &Transport{
		w:       w,
		pending: make(map[int64]chan *lspwire.Response),
		logger:  logger,
		closed:  make(chan struct{}),
	}
}

// SetNotificationHandler installs the callback invoked for every inbound
// message with no ID (e.g. window/logMessage, $/progress). Must be called
// before Start.
func (t *Transport) SetNotificationHandler(h NotificationHandler) { t.onNotify = h }

// SetRequestHandler installs the callback invoked for every inbound message
// carrying an ID that is not one of our own pending responses, i.e. a
// server-initiated request. Must be called before Start.
func (t *Transport) SetRequestHandler(h RequestHandler) { t.onRequest = h }

// Start launches the read loop over r, dispatching frames until r returns
// EOF/error or Close is called. It returns immediately; the loop runs in
// its own goroutine.
func (t *Transport) Start(r io.Reader) {
	go t.readLoop(bufio.NewReader(r))
}

// Closed reports whether the read loop has exited.
func (t *Transport) Closed() <-chan struct{} { return t.closed }

func (t *Transport) readLoop(reader *bufio.Reader) {
	defer close(t.closed)
	for {
		length, err := readContentLength(reader)
		if err != nil {
			t.failPending(err)
			return
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(reader, body); err != nil {
			t.failPending(err)
			return
		}
		t.dispatch(body)
	}
}

func readContentLength(reader *bufio.Reader) (int, error) {
	length := -1
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return 0, fmt.Errorf("malformed Content-Length header %q: %w", line, err)
			}
			length = n
		}
	}
	if length < 0 {
		return 0, fmt.Errorf("frame missing Content-Length header")
	}
	return length, nil
}

// envelope is used only to sniff whether an inbound frame is a response
// (has "id" and either "result" or "error"), a request (has "id" and
// "method"), or a notification (no "id").
type envelope struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *lspwire.RPCError `json:"error"`
}

func (t *Transport) dispatch(body []byte) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if t.logger != nil {
			t.logger.Warnf("discarding malformed frame: %v", err)
		}
		return
	}

	if len(env.ID) > 0 && env.Method == "" {
		t.routeResponse(env)
		return
	}
	if len(env.ID) > 0 && env.Method != "" {
		t.handleInboundRequest(env)
		return
	}
	if t.onNotify != nil {
		t.onNotify(env.Method, env.Params)
	}
}

func (t *Transport) routeResponse(env envelope) {
	var numID int64
	if err := json.Unmarshal(env.ID, &numID); err != nil {
		if t.logger != nil {
			t.logger.Warnf("response with non-numeric id %s", env.ID)
		}
		return
	}
	t.pendingMu.Lock()
	ch, ok := t.pending[numID]
	if ok {
		delete(t.pending, numID)
	}
	t.pendingMu.Unlock()
	if !ok {
		return
	}
	ch <- &lspwire.Response{Result: env.Result, Error: env.Error}
}

func (t *Transport) handleInboundRequest(env envelope) {
	if t.onRequest == nil {
		t.writeResponse(env.ID, nil, &lspwire.RPCError{Code: lspwire.ErrCodeMethodNotFound, Message: "no request handler installed"})
		return
	}
	result, rpcErr := t.onRequest(context.Background(), env.Method, env.Params)
	t.writeResponse(env.ID, result, rpcErr)
}

func (t *Transport) writeResponse(id json.RawMessage, result any, rpcErr *lspwire.RPCError) {
	resp := struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      json.RawMessage   `json:"id"`
		Result  any               `json:"result,omitempty"`
		Error   *lspwire.RPCError `json:"error,omitempty"`
	}{JSONRPC: "2.0", ID: id, Result: result, Error: rpcErr}
	body, err := json.Marshal(resp)
	if err != nil {
		if t.logger != nil {
			t.logger.Errorf("marshal response: %v", err)
		}
		return
	}
	if err := t.writeFrame(body); err != nil && t.logger != nil {
		t.logger.Warnf("write response frame: %v", err)
	}
}

func (t *Transport) failPending(readErr error) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	for id, ch := range t.pending {
		ch <- &lspwire.Response{Error: &lspwire.RPCError{Code: lspwire.ErrCodeInternalError, Message: fmt.Sprintf("transport closed: %v", readErr)}}
		delete(t.pending, id)
	}
}

func (t *Transport) writeFrame(body []byte) error {
	t.wg.Lock()
	defer t.wg.Unlock()
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := t.w.Write([]byte(header)); err != nil {
		return err
	}
	_, err := t.w.Write(body)
	return err
}

// Call sends a request and blocks until the matching response arrives or
// ctx is done.
func (t *Transport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&t.nextID, 1)

	paramsRaw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params for %s: %w", method, err)
	}
	req := lspwire.Request{JSONRPC: "2.0", ID: id, Method: method, Params: paramsRaw}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request %s: %w", method, err)
	}

	ch := make(chan *lspwire.Response, 1)
	t.pendingMu.Lock()
	t.pending[id] = ch
	t.pendingMu.Unlock()

	if err := t.writeFrame(body); err != nil {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
		return nil, fmt.Errorf("write request %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
		return nil, ctx.Err()
	case <-t.closed:
		return nil, fmt.Errorf("transport closed while waiting for %s", method)
	}
}

// Notify sends a fire-and-forget notification (no ID, no response).
func (t *Transport) Notify(method string, params any) error {
	paramsRaw, err := marshalParams(params)
	if err != nil {
		return fmt.Errorf("marshal params for %s: %w", method, err)
	}
	req := lspwire.Request{JSONRPC: "2.0", Method: method, Params: paramsRaw}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", method, err)
	}
	return t.writeFrame(body)
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(params)
}
