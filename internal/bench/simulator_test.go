package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/dshills/lspbench/internal/lsp"
)

// sessionCall records one interaction with the fake session.
type sessionCall struct {
	kind    string // "change", "definition", "completion", "hover"
	content string
	pos     lsp.Position
}

// fakeSession scripts the session side of a simulator run.
type fakeSession struct {
	calls []sessionCall

	result     json.RawMessage
	requestErr error
	changeErr  error

	// failNth, when > 0, fails only the nth request (1-based).
	failNth  int
	requests int
}

func (f *fakeSession) ChangeDocument(ctx context.Context, path, content string) error {
	f.calls = append(f.calls, sessionCall{kind: "change", content: content})
	return f.changeErr
}

func (f *fakeSession) request(kind string, pos lsp.Position) (json.RawMessage, error) {
	f.calls = append(f.calls, sessionCall{kind: kind, pos: pos})
	f.requests++
	if f.requestErr != nil && (f.failNth == 0 || f.failNth == f.requests) {
		return nil, f.requestErr
	}
	return f.result, nil
}

func (f *fakeSession) Definition(ctx context.Context, path string, pos lsp.Position) (json.RawMessage, error) {
	return f.request("definition", pos)
}

func (f *fakeSession) Completion(ctx context.Context, path string, pos lsp.Position) (json.RawMessage, error) {
	return f.request("completion", pos)
}

func (f *fakeSession) Hover(ctx context.Context, path string, pos lsp.Position) (json.RawMessage, error) {
	return f.request("hover", pos)
}

// collect returns an emit function appending to ms.
func collect(ms *[]Measurement) func(Measurement) error {
	return func(m Measurement) error {
		*ms = append(*ms, m)
		return nil
	}
}

func TestSimulator_DefinitionCycle(t *testing.T) {
	session := &fakeSession{result: json.RawMessage(`[{"uri":"file:///x"}]`)}
	sim := NewSimulator(session, ModeDefinition)

	text := "foo bar"
	var ms []Measurement
	if err := sim.Run(context.Background(), "/tmp/a.go", text, collect(&ms)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(ms) != 2 {
		t.Fatalf("got %d measurements, want 2", len(ms))
	}

	// One probe, one request, one revert per token, in that order
	wantKinds := []string{
		"change", "definition", "change",
		"change", "definition", "change",
	}
	if len(session.calls) != len(wantKinds) {
		t.Fatalf("got %d session calls, want %d", len(session.calls), len(wantKinds))
	}
	for i, want := range wantKinds {
		if session.calls[i].kind != want {
			t.Errorf("call %d = %s, want %s", i, session.calls[i].kind, want)
		}
	}

	// Probe inserts a space after the token; revert restores the original
	if got := session.calls[0].content; got != "foo  bar" {
		t.Errorf("probe for foo = %q, want %q", got, "foo  bar")
	}
	if got := session.calls[2].content; got != text {
		t.Errorf("revert = %q, want original %q", got, text)
	}
	if got := session.calls[3].content; got != "foo bar " {
		t.Errorf("probe for bar = %q, want %q", got, "foo bar ")
	}

	// Positions are 1-based original-text coordinates
	if ms[0].Line != 1 || ms[0].Column != 1 {
		t.Errorf("foo at %d:%d, want 1:1", ms[0].Line, ms[0].Column)
	}
	if ms[1].Line != 1 || ms[1].Column != 5 {
		t.Errorf("bar at %d:%d, want 1:5", ms[1].Line, ms[1].Column)
	}

	for i, m := range ms {
		if m.ResultCount != 1 {
			t.Errorf("measurement %d ResultCount = %d, want 1", i, m.ResultCount)
		}
		if m.Elapsed < 0 {
			t.Errorf("measurement %d has negative elapsed", i)
		}
	}
}

func TestSimulator_CompletionProbeRemovesToken(t *testing.T) {
	session := &fakeSession{result: json.RawMessage(`{"items":[]}`)}
	sim := NewSimulator(session, ModeCompletion)

	text := "foo bar"
	var ms []Measurement
	if err := sim.Run(context.Background(), "/tmp/a.go", text, collect(&ms)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := session.calls[0].content; got != " bar" {
		t.Errorf("probe for foo = %q, want %q", got, " bar")
	}
	if got := session.calls[3].content; got != "foo " {
		t.Errorf("probe for bar = %q, want %q", got, "foo ")
	}
	if session.calls[1].kind != "completion" {
		t.Errorf("request kind = %s, want completion", session.calls[1].kind)
	}
}

func TestSimulator_CommentLinesSkipped(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"line comment only", "// foo bar\n", 0},
		{"block comment opener", "/* foo */\n", 0},
		{"block comment middle", " * foo\n", 0},
		{"code after comment", "// skip me\nkeep\n", 1},
		{"indented comment", "\t// foo\nbar\n", 1},
		{"code only", "alpha beta\n", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{result: json.RawMessage(`null`)}
			sim := NewSimulator(session, ModeHover)

			var ms []Measurement
			if err := sim.Run(context.Background(), "/tmp/a.go", tt.text, collect(&ms)); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(ms) != tt.want {
				t.Errorf("got %d measurements, want %d", len(ms), tt.want)
			}
		})
	}
}

func TestSimulator_TokenPositionsOnLaterLines(t *testing.T) {
	session := &fakeSession{result: json.RawMessage(`null`)}
	sim := NewSimulator(session, ModeHover)

	text := "first\n  second\n"
	var ms []Measurement
	if err := sim.Run(context.Background(), "/tmp/a.go", text, collect(&ms)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(ms) != 2 {
		t.Fatalf("got %d measurements, want 2", len(ms))
	}
	if ms[1].Line != 2 || ms[1].Column != 3 {
		t.Errorf("second at %d:%d, want 2:3", ms[1].Line, ms[1].Column)
	}

	// The request position is protocol coordinates: 0-based line
	if pos := session.calls[4].pos; pos.Line != 1 || pos.Character != 2 {
		t.Errorf("request position = %+v, want {1 2}", pos)
	}
}

func TestSimulator_RequestErrorSkipsToken(t *testing.T) {
	session := &fakeSession{
		result:     json.RawMessage(`null`),
		requestErr: errors.New("request timed out"),
		failNth:    1,
	}
	sim := NewSimulator(session, ModeDefinition)

	var failures []string
	sim.OnRequestError = func(file string, line, col int, err error) {
		failures = append(failures, fmt.Sprintf("%s:%d:%d", file, line, col))
	}

	text := "foo bar"
	var ms []Measurement
	if err := sim.Run(context.Background(), "/tmp/a.go", text, collect(&ms)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(ms) != 1 {
		t.Fatalf("got %d measurements, want 1 (failed token skipped)", len(ms))
	}
	if len(failures) != 1 || failures[0] != "/tmp/a.go:1:1" {
		t.Errorf("failures = %v", failures)
	}

	// The revert was still sent for the failed token
	if session.calls[2].kind != "change" || session.calls[2].content != text {
		t.Errorf("failed token was not reverted: %+v", session.calls[2])
	}
}

func TestSimulator_ConnectionLostAborts(t *testing.T) {
	session := &fakeSession{
		requestErr: lsp.ErrConnectionLost,
	}
	sim := NewSimulator(session, ModeDefinition)

	var ms []Measurement
	err := sim.Run(context.Background(), "/tmp/a.go", "foo bar", collect(&ms))
	if !errors.Is(err, lsp.ErrConnectionLost) {
		t.Fatalf("Run() = %v, want ErrConnectionLost", err)
	}
	if len(ms) != 0 {
		t.Errorf("got %d measurements after fatal error, want 0", len(ms))
	}

	// Only the first token's cycle was attempted
	if session.requests != 1 {
		t.Errorf("issued %d requests, want 1", session.requests)
	}
}

func TestSimulator_ChangeErrorIsFatal(t *testing.T) {
	session := &fakeSession{changeErr: errors.New("pipe broken")}
	sim := NewSimulator(session, ModeDefinition)

	var ms []Measurement
	err := sim.Run(context.Background(), "/tmp/a.go", "foo", collect(&ms))
	if err == nil {
		t.Fatal("Run() = nil, want error from failed change")
	}
	if len(ms) != 0 {
		t.Errorf("got %d measurements, want 0", len(ms))
	}
}

func TestSimulator_EmitErrorStopsRun(t *testing.T) {
	session := &fakeSession{result: json.RawMessage(`null`)}
	sim := NewSimulator(session, ModeDefinition)

	sentinel := errors.New("writer full")
	err := sim.Run(context.Background(), "/tmp/a.go", "foo bar", func(Measurement) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Run() = %v, want emit error", err)
	}
}

func TestProbeText(t *testing.T) {
	// foo spans [0,3), bar spans [4,7)
	text := "foo bar"

	tests := []struct {
		name       string
		start, end int
		mode       Mode
		want       string
	}{
		{"definition inserts space", 0, 3, ModeDefinition, "foo  bar"},
		{"hover inserts space", 4, 7, ModeHover, "foo bar "},
		{"completion removes token", 0, 3, ModeCompletion, " bar"},
		{"completion removes last token", 4, 7, ModeCompletion, "foo "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := probeText(text, tt.start, tt.end, tt.mode); got != tt.want {
				t.Errorf("probeText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsCommentLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"// comment", true},
		{"  // indented", true},
		{"/* block */", true},
		{" * continuation", true},
		{"code // trailing", false},
		{"x := 1", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isCommentLine(tt.line); got != tt.want {
			t.Errorf("isCommentLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
