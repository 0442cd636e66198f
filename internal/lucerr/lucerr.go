// Package lucerr defines the coarse error kinds every layer of the archive
// pipeline branches on, following the "named predicate over a typed error"
// idiom rather than string-matching messages.
package lucerr

import (
	"errors"
	"fmt"
)

// Kind is a coarse error classification. Callers branch on Kind via
// errors.Is against the sentinel Kind values below, never on message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConstraintViolation
	KindDecode
	KindIO
	KindDecryptionFailed
	KindSubtitleParse
	KindInvalidRequest
	KindMissingVideoSource
	KindTranscoderFailed
	KindConnectState
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConstraintViolation:
		return "constraint_violation"
	case KindDecode:
		return "decode"
	case KindIO:
		return "io"
	case KindDecryptionFailed:
		return "decryption_failed"
	case KindSubtitleParse:
		return "subtitle_parse"
	case KindInvalidRequest:
		return "invalid_request"
	case KindMissingVideoSource:
		return "missing_video_source"
	case KindTranscoderFailed:
		return "transcoder_failed"
	case KindConnectState:
		return "connect_state"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with an operation name and a Kind,
// following Go's error-chain idiom (Unwrap/Is) so callers use
// errors.Is(err, lucerr.KindX) rather than type assertions.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, lucerr.KindX) work by comparing against a bare Kind
// sentinel, and also supports comparing against another *Error of the same
// Kind.
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// Is implements comparison for bare Kind values used as errors.Is targets.
func (k Kind) Is(target error) bool {
	var e *Error
	if errors.As(target, &e) {
		return e.Kind == k
	}
	return false
}

func (k Kind) Error() string { return k.String() }

// New wraps err under op with the given Kind. If err is nil, New returns nil.
func New(op string, k Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Op: op, Err: err}
}

// Of reports the Kind of err, or KindUnknown if err does not carry one.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
