package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// ClientStatus indicates the current state of the session.
type ClientStatus int

const (
	ClientStatusStopped ClientStatus = iota
	ClientStatusStarting
	ClientStatusInitializing
	ClientStatusReady
	ClientStatusShuttingDown
	ClientStatusError
)

// String returns a human-readable status name.
func (s ClientStatus) String() string {
	switch s {
	case ClientStatusStopped:
		return "stopped"
	case ClientStatusStarting:
		return "starting"
	case ClientStatusInitializing:
		return "initializing"
	case ClientStatusReady:
		return "ready"
	case ClientStatusShuttingDown:
		return "shutting down"
	case ClientStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ServerConfig defines how to start the language server under test.
type ServerConfig struct {
	// Command is the executable to run.
	Command string

	// Args are command-line arguments.
	Args []string

	// Env are additional environment variables.
	Env map[string]string

	// WorkDir is the working directory (defaults to the first workspace root).
	WorkDir string

	// RequestTimeout bounds every request (default: 30s). A timed-out
	// request fails alone; the session stays usable.
	RequestTimeout time.Duration
}

// Client is a session with a single spawned language server. It owns the
// Transport, performs the initialize handshake, and tracks open documents
// with their version counters.
type Client struct {
	mu sync.Mutex

	config           ServerConfig
	workspaceFolders []WorkspaceFolder

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	transport *Transport

	status     atomic.Int32
	serverInfo *ServerInfo
	lastError  error

	documents   map[DocumentURI]*Document
	documentsMu sync.RWMutex

	errFn func(error)

	ctx    context.Context
	cancel context.CancelFunc
	exitCh chan error
}

// Document represents an open document tracked by the session. Version
// starts at 1 on open and advances by exactly one per didChange.
type Document struct {
	URI        DocumentURI
	LanguageID string
	Version    int
	Content    string
}

// NewClient creates a new session (not yet started).
func NewClient(config ServerConfig, folders []WorkspaceFolder) *Client {
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}

	c := &Client{
		config:           config,
		workspaceFolders: folders,
		documents:        make(map[DocumentURI]*Document),
		exitCh:           make(chan error, 1),
	}
	c.status.Store(int32(ClientStatusStopped))
	return c
}

// OnProtocolError registers a handler for dropped-frame errors surfaced by
// the transport. Must be called before Start.
func (c *Client) OnProtocolError(fn func(error)) {
	c.mu.Lock()
	c.errFn = fn
	c.mu.Unlock()
}

// Start spawns the server process, wires its stdio to the transport, and
// performs the initialize handshake. The child's stderr passes through to
// the host's stderr unmodified.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Status() != ClientStatusStopped {
		return ErrAlreadyStarted
	}

	c.status.Store(int32(ClientStatusStarting))
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.startProcess(); err != nil {
		c.status.Store(int32(ClientStatusError))
		c.lastError = err
		return err
	}

	c.transport = NewTransport(c.stdout, c.stdin, nil)
	if c.errFn != nil {
		c.transport.OnProtocolError(c.errFn)
	}
	c.registerNotificationHandlers()
	c.transport.Start(c.ctx)

	go c.monitorProcess()

	c.status.Store(int32(ClientStatusInitializing))
	if err := c.initialize(c.ctx); err != nil {
		c.status.Store(int32(ClientStatusError))
		c.lastError = err
		c.stopProcess()
		return fmt.Errorf("initialize: %w", err)
	}

	c.status.Store(int32(ClientStatusReady))
	return nil
}

// startProcess starts the language server executable.
func (c *Client) startProcess() error {
	cmd := exec.CommandContext(c.ctx, c.config.Command, c.config.Args...)

	cmd.Env = os.Environ()
	for k, v := range c.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if c.config.WorkDir != "" {
		cmd.Dir = c.config.WorkDir
	} else if len(c.workspaceFolders) > 0 {
		cmd.Dir = URIToFilePath(c.workspaceFolders[0].URI)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}

	// The server's stderr belongs to the operator, not the benchmark
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("start %s: %w", c.config.Command, err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = stdout

	return nil
}

// monitorProcess watches the process and signals when it exits.
func (c *Client) monitorProcess() {
	if c.cmd == nil {
		return
	}

	err := c.cmd.Wait()
	select {
	case c.exitCh <- err:
	default:
	}
}

// stopProcess releases the transport and terminates the child. Kill is the
// backstop for servers that ignore the exit notification.
func (c *Client) stopProcess() {
	if c.transport != nil {
		c.transport.Close()
	}

	if c.stdin != nil {
		c.stdin.Close()
	}
	if c.stdout != nil {
		c.stdout.Close()
	}

	if c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
}

// initialize performs the LSP initialize handshake. The benchmark declares
// an empty capability set so no optional feature is negotiated.
func (c *Client) initialize(ctx context.Context) error {
	var rootURI DocumentURI
	if len(c.workspaceFolders) > 0 {
		rootURI = c.workspaceFolders[0].URI
	}

	params := InitializeParams{
		ProcessID:        os.Getpid(),
		RootURI:          rootURI,
		Capabilities:     ClientCapabilities{},
		WorkspaceFolders: c.workspaceFolders,
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var result InitializeResult
	if err := c.transport.Call(ctx, "initialize", params, &result); err != nil {
		return fmt.Errorf("initialize request: %w", err)
	}

	c.serverInfo = result.ServerInfo

	if err := c.transport.Notify(ctx, "initialized", InitializedParams{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	return nil
}

// registerNotificationHandlers consumes server notifications the benchmark
// has no use for, so they never clog the read loop.
func (c *Client) registerNotificationHandlers() {
	c.transport.OnNotification("textDocument/publishDiagnostics", func(method string, params json.RawMessage) {})
	c.transport.OnNotification("window/logMessage", func(method string, params json.RawMessage) {})
	c.transport.OnNotification("window/showMessage", func(method string, params json.RawMessage) {})
}

// Shutdown ends the session: best-effort shutdown request, exit
// notification, transport release, and process termination. Requests still
// pending fail with ErrShutdown.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.Status()
	if status == ClientStatusStopped || status == ClientStatusShuttingDown {
		return nil
	}

	c.status.Store(int32(ClientStatusShuttingDown))

	if c.transport != nil && !c.transport.IsClosed() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		_ = c.transport.Call(shutdownCtx, "shutdown", nil, nil)
		_ = c.transport.Notify(shutdownCtx, "exit", nil)
	}

	if c.cancel != nil {
		c.cancel()
	}

	c.stopProcess()

	c.status.Store(int32(ClientStatusStopped))
	return nil
}

// Status returns the current session status.
func (c *Client) Status() ClientStatus {
	return ClientStatus(c.status.Load())
}

// ServerInfo returns the server's self-reported identity, if any.
func (c *Client) ServerInfo() *ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// LastError returns the last lifecycle error that occurred.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// ExitChannel returns a channel that receives when the process exits.
func (c *Client) ExitChannel() <-chan error {
	return c.exitCh
}

// --- Document Management ---

// OpenDocument notifies the server that a document was opened at version 1.
func (c *Client) OpenDocument(ctx context.Context, path, languageID, content string) error {
	if c.Status() != ClientStatusReady {
		return ErrServerNotReady
	}

	uri := FilePathToURI(path)

	c.documentsMu.Lock()
	if _, exists := c.documents[uri]; exists {
		c.documentsMu.Unlock()
		return ErrDocumentAlreadyOpen
	}
	c.documents[uri] = &Document{
		URI:        uri,
		LanguageID: languageID,
		Version:    1,
		Content:    content,
	}
	c.documentsMu.Unlock()

	params := DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    1,
			Text:       content,
		},
	}

	return c.transport.Notify(ctx, "textDocument/didOpen", params)
}

// ChangeDocument replaces the document's full content, advancing the
// version counter by exactly one. All edits the benchmark sends use the
// full-document replacement form; position drift is impossible because the
// caller's offsets are always against the original snapshot.
func (c *Client) ChangeDocument(ctx context.Context, path, content string) error {
	if c.Status() != ClientStatusReady {
		return ErrServerNotReady
	}

	uri := FilePathToURI(path)

	c.documentsMu.Lock()
	doc, exists := c.documents[uri]
	if !exists {
		c.documentsMu.Unlock()
		return ErrDocumentNotOpen
	}
	doc.Version++
	doc.Content = content
	version := doc.Version
	c.documentsMu.Unlock()

	params := DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: content}},
	}

	return c.transport.Notify(ctx, "textDocument/didChange", params)
}

// DocumentVersion returns the current version of an open document.
func (c *Client) DocumentVersion(path string) (int, bool) {
	uri := FilePathToURI(path)
	c.documentsMu.RLock()
	defer c.documentsMu.RUnlock()

	doc, exists := c.documents[uri]
	if !exists {
		return 0, false
	}
	return doc.Version, true
}

// --- Requests ---

// Definition requests the definition location(s) for the symbol at pos.
// The result is returned raw; the benchmark only counts it.
func (c *Client) Definition(ctx context.Context, path string, pos Position) (json.RawMessage, error) {
	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: FilePathToURI(path)},
		Position:     pos,
	}
	return c.call(ctx, "textDocument/definition", params)
}

// Completion requests completion items at pos.
func (c *Client) Completion(ctx context.Context, path string, pos Position) (json.RawMessage, error) {
	params := CompletionParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: FilePathToURI(path)},
			Position:     pos,
		},
		Context: &CompletionContext{
			TriggerKind: CompletionTriggerKindInvoked,
		},
	}
	return c.call(ctx, "textDocument/completion", params)
}

// Hover requests hover information at pos.
func (c *Client) Hover(ctx context.Context, path string, pos Position) (json.RawMessage, error) {
	params := HoverParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: FilePathToURI(path)},
			Position:     pos,
		},
	}
	return c.call(ctx, "textDocument/hover", params)
}

// call issues a request under the configured per-request timeout.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.Status() != ClientStatusReady {
		return nil, ErrServerNotReady
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var result json.RawMessage
	if err := c.transport.Call(ctx, method, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}
