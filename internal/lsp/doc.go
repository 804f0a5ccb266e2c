// Package lsp implements the Language Server Protocol client the benchmark
// driver uses to talk to a server under test.
//
// The package covers the slice of LSP the benchmark needs: spawning the
// server process, Content-Length framed JSON-RPC over its stdio, the
// initialize handshake, full-text document synchronization, and the
// position-at-point requests (definition, completion, hover) whose latency
// is measured.
//
// # Architecture
//
//   - Client: server process lifecycle, handshake, documents, requests
//   - Transport: JSON-RPC 2.0 framing and request/response correlation
//   - LineIndex: byte offset to line/column conversion for a text snapshot
//
// # Quick Start
//
//	client := lsp.NewClient(lsp.ServerConfig{Command: "gopls"}, folders)
//	if err := client.Start(ctx); err != nil {
//	    return err
//	}
//	defer client.Shutdown(ctx)
//
//	client.OpenDocument(ctx, "/path/to/file.go", "go", content)
//	raw, err := client.Definition(ctx, "/path/to/file.go", lsp.Position{Line: 10, Character: 5})
//
// # Request Correlation
//
// Requests carry monotonically assigned identifiers that are never reused
// within a session. Responses are routed to the waiting caller by identifier
// alone, so out-of-order responses resolve correctly even though the
// benchmark only ever keeps one request in flight.
//
// # Failure Semantics
//
// A malformed frame is dropped and surfaced through the protocol error
// handler; decoding resynchronizes on the next well-formed header. A server
// error response resolves the waiting request with a *RPCError. If the
// stream ends with requests pending, each fails with ErrConnectionLost
// rather than hanging.
package lsp
