package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Transport handles JSON-RPC 2.0 communication over stdio.
// It implements the LSP base protocol with Content-Length headers and
// routes responses to waiting callers by request identifier.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer

	mu       sync.Mutex
	nextID   atomic.Int64
	pending  map[int64]chan *Response
	handlers map[string]NotificationHandler
	errFn    func(error)

	closed    atomic.Bool
	connLost  atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// NotificationHandler handles incoming notifications from the server.
type NotificationHandler func(method string, params json.RawMessage)

// Request represents a JSON-RPC request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response represents a JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// notification is used to parse incoming notifications.
type notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewTransport creates a new transport over the given connection.
// The streams are typically the server process's stdout and stdin pipes.
func NewTransport(r io.Reader, w io.Writer, c io.Closer) *Transport {
	return &Transport{
		reader:   bufio.NewReaderSize(r, 64*1024),
		writer:   w,
		closer:   c,
		pending:  make(map[int64]chan *Response),
		handlers: make(map[string]NotificationHandler),
		done:     make(chan struct{}),
	}
}

// Start begins reading messages from the connection.
func (t *Transport) Start(ctx context.Context) {
	go t.readLoop(ctx)
}

// OnProtocolError registers a handler for malformed-frame errors. The
// offending frame is dropped either way; the handler exists so the
// condition can be logged.
func (t *Transport) OnProtocolError(fn func(error)) {
	t.mu.Lock()
	t.errFn = fn
	t.mu.Unlock()
}

// Close closes the transport and releases resources. Callers still waiting
// on pending requests receive ErrShutdown.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil // Already closed
	}

	t.shutdown()

	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// shutdown unblocks waiters exactly once. Pending channels are not closed
// to avoid racing handleResponse; waiters observe t.done instead.
func (t *Transport) shutdown() {
	t.closeOnce.Do(func() {
		close(t.done)

		t.mu.Lock()
		t.pending = make(map[int64]chan *Response)
		t.mu.Unlock()
	})
}

// connectionLost marks the stream as dead and fails every pending request.
// Called by the read loop when the incoming stream ends before Close.
func (t *Transport) connectionLost() {
	t.connLost.Store(true)
	t.shutdown()
}

// Call sends a request and waits for the matching response. Responses may
// arrive in any order relative to request order; correlation is by
// identifier alone, so concurrent callers are safe.
func (t *Transport) Call(ctx context.Context, method string, params any, result any) error {
	if err := t.liveErr(); err != nil {
		return err
	}

	id := t.nextID.Add(1)
	ch := make(chan *Response, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	req := &Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	if err := t.send(req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return t.liveErr()
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}
}

// Notify sends a notification (no response expected).
func (t *Transport) Notify(ctx context.Context, method string, params any) error {
	if err := t.liveErr(); err != nil {
		return err
	}

	req := &Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}

	return t.send(req)
}

// OnNotification registers a handler for server notifications.
func (t *Transport) OnNotification(method string, handler NotificationHandler) {
	t.mu.Lock()
	t.handlers[method] = handler
	t.mu.Unlock()
}

// liveErr reports why the transport is unusable, or nil while it is live.
func (t *Transport) liveErr() error {
	if t.connLost.Load() {
		return ErrConnectionLost
	}
	if t.closed.Load() {
		return ErrShutdown
	}
	return nil
}

// send writes a message with LSP content-length header.
func (t *Transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := io.WriteString(t.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}

	return nil
}

// readLoop reads messages from the connection until the stream ends.
// Malformed frames are dropped and surfaced; the loop resynchronizes on
// the next well-formed header. A stream-level failure fails all pending
// requests with ErrConnectionLost.
func (t *Transport) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		msg, err := t.readMessage()
		if err != nil {
			var perr *ProtocolError
			if errors.As(err, &perr) {
				t.surfaceError(perr)
				// The dropped frame's body is still in the stream;
				// realign before parsing another header
				if err := t.resync(); err != nil {
					if !t.closed.Load() {
						t.connectionLost()
					}
					return
				}
				continue
			}
			if !t.closed.Load() {
				t.connectionLost()
			}
			return
		}

		t.dispatch(msg)
	}
}

// readMessage reads a single LSP message. A *ProtocolError return means
// the frame was dropped but the stream is still usable; any other error
// means the stream is dead.
func (t *Transport) readMessage() (json.RawMessage, error) {
	contentLength := -1
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			parts := strings.SplitN(line, ":", 2)
			length, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil || length < 0 {
				return nil, &ProtocolError{Reason: "invalid Content-Length header", Err: err}
			}
			contentLength = length
		}
		// Ignore Content-Type and other headers
	}

	if contentLength < 0 {
		return nil, &ProtocolError{Reason: "missing Content-Length header"}
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// resync discards stream bytes until the reader is positioned at the next
// Content-Length token, leaving the header itself for readMessage to
// consume. A dropped frame whose body happens to contain the token can
// fool the scan; the resulting parse failure just triggers another resync.
func (t *Transport) resync() error {
	const token = "content-length:"
	keep := len(token) - 1

	for {
		n := t.reader.Buffered()
		if n <= keep {
			// Pull more data so the token cannot straddle the window
			if _, err := t.reader.Peek(keep + 1); err != nil {
				return err
			}
			n = t.reader.Buffered()
		}

		window, err := t.reader.Peek(n)
		if err != nil {
			return err
		}

		if i := strings.Index(strings.ToLower(string(window)), token); i >= 0 {
			_, err := t.reader.Discard(i)
			return err
		}

		// Keep a token-sized tail in case the header spans two windows
		if _, err := t.reader.Discard(n - keep); err != nil {
			return err
		}
	}
}

// dispatch routes a message to the appropriate handler.
func (t *Transport) dispatch(data json.RawMessage) {
	// Distinguish responses from notifications by the "id" field
	var probe struct {
		ID     *int64          `json:"id"`
		Method string          `json:"method"`
		Error  *RPCError       `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		t.surfaceError(&ProtocolError{Reason: "malformed message body", Err: err})
		return
	}

	// An ID without a method means a response, even when the result is
	// absent entirely (the caller treats that the same as null)
	if probe.ID != nil && probe.Method == "" {
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			t.surfaceError(&ProtocolError{Reason: "malformed response", Err: err})
			return
		}
		t.handleResponse(&resp)
		return
	}

	// Otherwise a notification (or request from server)
	if probe.Method != "" {
		var notif notification
		if err := json.Unmarshal(data, &notif); err != nil {
			return
		}
		t.handleNotification(&notif)
	}
}

// handleResponse routes a response to its waiting caller.
func (t *Transport) handleResponse(resp *Response) {
	if t.closed.Load() || t.connLost.Load() {
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[resp.ID]
	if ok {
		// Remove while holding the lock; an identifier resolves exactly once
		delete(t.pending, resp.ID)
	}
	t.mu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

// handleNotification routes a notification to its handler.
func (t *Transport) handleNotification(notif *notification) {
	t.mu.Lock()
	handler, ok := t.handlers[notif.Method]
	if !ok {
		handler, ok = t.handlers["*"]
	}
	t.mu.Unlock()

	if ok && handler != nil {
		// Run handler in goroutine to avoid blocking the read loop
		go handler(notif.Method, notif.Params)
	}
}

// surfaceError reports a dropped frame to the registered handler.
func (t *Transport) surfaceError(err error) {
	t.mu.Lock()
	fn := t.errFn
	t.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}

// IsClosed returns true if the transport has been closed or the stream ended.
func (t *Transport) IsClosed() bool {
	return t.closed.Load() || t.connLost.Load()
}
