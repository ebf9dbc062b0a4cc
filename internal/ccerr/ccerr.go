// Package ccerr declares the sentinel errors shared across ccbox's core
// components, checked with errors.Is/errors.As rather than string matching.
package ccerr

import "errors"

var (
	// ErrNotASession means a candidate file did not satisfy its engine's
	// first-record contract (e.g. a Codex file whose first line isn't
	// session_meta). The scanner rejects the file silently and counts it.
	ErrNotASession = errors.New("ccbox: not a session")

	// ErrMalformedLine marks a single line that failed to parse. Callers
	// turn it into a Note item and a counted warning; it is never returned
	// from a whole-file operation.
	ErrMalformedLine = errors.New("ccbox: malformed line")

	// ErrTruncatedStream means a file ended mid-record. Sets
	// Timeline.Truncated; reported to stderr by the CLI.
	ErrTruncatedStream = errors.New("ccbox: truncated stream")

	// ErrSpawnFailed means a child process could not be started.
	ErrSpawnFailed = errors.New("ccbox: spawn failed")

	// ErrAssociationTimeout means a spawned Codex child exited without a
	// session_meta appearing in its stdout within the timeout window.
	ErrAssociationTimeout = errors.New("ccbox: association timeout")

	// ErrArgError is a CLI usage error; callers print usage and exit(2).
	ErrArgError = errors.New("ccbox: argument error")
)
