package bench

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Mode selects which request the benchmark measures and which probe edit
// precedes it.
type Mode string

const (
	// ModeDefinition measures textDocument/definition after inserting a
	// space immediately after the token.
	ModeDefinition Mode = "definition"

	// ModeCompletion measures textDocument/completion after deleting the
	// token's characters.
	ModeCompletion Mode = "completion"

	// ModeHover measures textDocument/hover after inserting a space
	// immediately after the token.
	ModeHover Mode = "hover"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDefinition, ModeCompletion, ModeHover:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (want definition, completion, or hover)", s)
	}
}

// Measurement is one completed probe cycle. Immutable once produced;
// ownership passes from the Simulator through the Driver to the Reporter.
type Measurement struct {
	// File is the input file the token came from.
	File string

	// Line and Column are the token's 1-based position in the original text.
	Line   int
	Column int

	// Elapsed covers the probe edit, the measured request and its
	// response, and the reverting edit.
	Elapsed time.Duration

	// ResultCount is the cardinality of the server's result.
	ResultCount int
}

// CountResults classifies a raw JSON result into a cardinality: absent or
// null counts 0, an array counts its length, an object carrying an "items"
// array counts that array's length, and anything else counts 1. An "items"
// field that is not an array falls through to the singular count.
func CountResults(raw []byte) int {
	if len(raw) == 0 {
		return 0
	}
	res := gjson.ParseBytes(raw)
	if !res.Exists() || res.Type == gjson.Null {
		return 0
	}
	if res.IsArray() {
		return len(res.Array())
	}
	if items := res.Get("items"); items.IsArray() {
		return len(items.Array())
	}
	return 1
}
