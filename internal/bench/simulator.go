package bench

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dshills/lspbench/internal/lsp"
)

// tokenPattern matches word-shaped tokens: a letter or underscore followed
// by letters, digits, or underscores.
var tokenPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// LanguageSession is the slice of the LSP client the simulator drives.
type LanguageSession interface {
	ChangeDocument(ctx context.Context, path, content string) error
	Definition(ctx context.Context, path string, pos lsp.Position) (json.RawMessage, error)
	Completion(ctx context.Context, path string, pos lsp.Position) (json.RawMessage, error)
	Hover(ctx context.Context, path string, pos lsp.Position) (json.RawMessage, error)
}

// Simulator performs one probe/measure/revert cycle per eligible token of a
// document. All offsets are computed against the original snapshot; edits
// are full-document replacements, so no position ever drifts.
type Simulator struct {
	session LanguageSession
	mode    Mode

	// OnRequestError, if set, is called when the measured request for one
	// token fails non-fatally (timeout or server-reported error). The
	// token is skipped; the revert has already been sent.
	OnRequestError func(file string, line, col int, err error)
}

// NewSimulator creates a simulator issuing requests for the given mode.
func NewSimulator(session LanguageSession, mode Mode) *Simulator {
	return &Simulator{session: session, mode: mode}
}

// Run scans the original text for tokens and emits one Measurement per
// completed cycle. The document at path must already be open with exactly
// this content. Emission is streaming: emit is called as each cycle
// completes, never batched. A fatal error (connection lost, session shut
// down, failed change notification, emit error) stops the run.
func (s *Simulator) Run(ctx context.Context, path, text string, emit func(Measurement) error) error {
	index := lsp.NewLineIndex(text)

	for _, loc := range tokenPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]

		line0 := index.LineForOffset(start)
		if isCommentLine(index.LineText(line0)) {
			continue
		}

		line, col := index.LineColumn(start)
		pos := index.PositionForOffset(start)

		began := time.Now()

		if err := s.session.ChangeDocument(ctx, path, probeText(text, start, end, s.mode)); err != nil {
			return err
		}

		raw, reqErr := s.request(ctx, path, pos)

		// Revert before anything else: the server's view must match the
		// original again even when the request failed.
		if err := s.session.ChangeDocument(ctx, path, text); err != nil {
			return err
		}

		elapsed := time.Since(began)

		if reqErr != nil {
			if fatalRequestError(reqErr) {
				return reqErr
			}
			if s.OnRequestError != nil {
				s.OnRequestError(path, line, col, reqErr)
			}
			continue
		}

		m := Measurement{
			File:        path,
			Line:        line,
			Column:      col,
			Elapsed:     elapsed,
			ResultCount: CountResults(raw),
		}
		if err := emit(m); err != nil {
			return err
		}
	}

	return nil
}

// request issues the measured request for the simulator's mode.
func (s *Simulator) request(ctx context.Context, path string, pos lsp.Position) (json.RawMessage, error) {
	switch s.mode {
	case ModeCompletion:
		return s.session.Completion(ctx, path, pos)
	case ModeHover:
		return s.session.Hover(ctx, path, pos)
	default:
		return s.session.Definition(ctx, path, pos)
	}
}

// probeText builds the full replacement text simulating an in-progress
// edit at the token spanning [start, end): completion mode removes the
// token's characters entirely, the other modes insert a single space
// immediately after the token.
func probeText(text string, start, end int, mode Mode) string {
	if mode == ModeCompletion {
		return text[:start] + text[end:]
	}
	return text[:end] + " " + text[end:]
}

// isCommentLine reports whether a line looks like a comment: its first
// non-whitespace characters are //, /*, or *. Tokens on such lines are
// excluded entirely, not measured as zero-cost.
func isCommentLine(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*")
}

// fatalRequestError reports whether a request failure poisons the rest of
// the run. Connection loss and shutdown mean no later request can ever
// resolve; a timeout or server-reported error is local to one token.
func fatalRequestError(err error) bool {
	return errors.Is(err, lsp.ErrConnectionLost) ||
		errors.Is(err, lsp.ErrShutdown) ||
		errors.Is(err, lsp.ErrServerNotReady) ||
		errors.Is(err, lsp.ErrDocumentNotOpen)
}
