// Package bench drives the latency benchmark: it scans a source file for
// word-shaped tokens and, for each one, applies a probe edit to the
// server's copy of the document, issues the measured request, awaits the
// result, reverts the edit, and records a Measurement.
//
// The probe/revert cycle for one token always completes before the next
// token's cycle begins, and every probe is exactly undone, so the server's
// view of the document can never drift from the original no matter how
// many tokens are processed.
package bench
