package lsp

import (
	"sort"
	"strings"
)

// LineIndex maps byte offsets in an immutable text snapshot to line and
// column positions. The snapshot never changes for the lifetime of the
// index; document edits are expressed as protocol messages, not as
// mutations of this text, so offsets computed here stay valid no matter
// how many edits the server has seen.
type LineIndex struct {
	text   string
	starts []int // line start offsets plus a trailing end-of-text sentinel
}

// NewLineIndex builds the index in a single forward scan. Line terminators
// are LF and CRLF; a CRLF pair counts as one terminator and the scan
// advances past both bytes.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			starts = append(starts, i+1)
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
				starts = append(starts, i+1)
			}
		}
	}
	starts = append(starts, len(text))

	return &LineIndex{text: text, starts: starts}
}

// Text returns the indexed snapshot.
func (ix *LineIndex) Text() string {
	return ix.text
}

// LineCount returns the number of lines. Empty text has a single line
// starting at offset 0.
func (ix *LineIndex) LineCount() int {
	return len(ix.starts) - 1
}

// LineStart returns the byte offset where the given 0-based line begins.
func (ix *LineIndex) LineStart(line int) int {
	if line < 0 {
		return 0
	}
	if line >= ix.LineCount() {
		return len(ix.text)
	}
	return ix.starts[line]
}

// LineForOffset returns the 0-based line containing the given byte offset:
// the greatest line whose start is <= offset. An offset exactly at a line
// start resolves to that line, never the one before it. Runs in O(log n)
// over the line count.
func (ix *LineIndex) LineForOffset(offset int) int {
	n := ix.LineCount()
	i := sort.Search(n, func(i int) bool { return ix.starts[i] > offset }) - 1
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Column returns the 1-based byte column of offset on the given 0-based line.
func (ix *LineIndex) Column(line, offset int) int {
	return offset - ix.LineStart(line) + 1
}

// LineColumn composes LineForOffset and Column into the 1-based (line,
// column) pair for a byte offset.
func (ix *LineIndex) LineColumn(offset int) (line, col int) {
	l := ix.LineForOffset(offset)
	return l + 1, ix.Column(l, offset)
}

// LineText returns the content of a 0-based line without its terminator.
func (ix *LineIndex) LineText(line int) string {
	if line < 0 || line >= ix.LineCount() {
		return ""
	}
	start := ix.starts[line]
	end := ix.starts[line+1]
	return strings.TrimRight(ix.text[start:end], "\r\n")
}

// PositionForOffset converts a byte offset to an LSP Position: 0-based line
// and UTF-16 code unit character offset, as the protocol requires.
func (ix *LineIndex) PositionForOffset(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(ix.text) {
		offset = len(ix.text)
	}
	line := ix.LineForOffset(offset)
	start := ix.starts[line]
	return Position{
		Line:      line,
		Character: utf16Len(ix.text[start:offset]),
	}
}

// utf16Len returns the length of s in UTF-16 code units.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2 // surrogate pair
		} else {
			n++
		}
	}
	return n
}
