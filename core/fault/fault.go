// Package fault classifies the failures of a voice session so that callers
// can turn them into state transitions instead of crashes.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindDevice is a capture or playback device failure. Fatal to the
	// current turn.
	KindDevice Kind = "device"
	// KindProtocol is a malformed inbound message. Logged and skipped.
	KindProtocol Kind = "protocol"
	// KindConnection is a closed or timed out socket. Terminal only once the
	// reconnect budget is spent.
	KindConnection Kind = "connection"
	// KindInitialization is a detector or transcription setup failure. Fatal
	// to the run.
	KindInitialization Kind = "initialization"
	// KindTimeout is an operation that exceeded its budget. Recovered with a
	// fallback.
	KindTimeout Kind = "timeout"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost fault in err's chain.
func KindOf(err error) (Kind, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind, true
	}
	return "", false
}

// Is reports whether err carries a fault of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
