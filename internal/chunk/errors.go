package chunk

import (
	"errors"
	"fmt"
)

// Kind classifies a failed walk.
type Kind uint8

const (
	KindIO Kind = iota + 1
	KindHeader
	KindRejected
	KindSeekRange
	KindLengthMismatch
)

var (
	ErrIO              = errors.New("chunk: i/o failure")
	ErrMalformedHeader = errors.New("chunk: malformed header")
	ErrRejected        = errors.New("chunk: rejected by handler")
	ErrSeekRange       = errors.New("chunk: seek out of range")
	ErrLengthMismatch  = errors.New("chunk: handler consumed past declared length")
)

// Handler-side sentinels. Returning one from a Handler yields KindRejected.
var (
	ErrUnknownChunk    = errors.New("chunk: unknown chunk type")
	ErrUnexpectedValue = errors.New("chunk: unexpected value")
	ErrNegativeLength  = errors.New("chunk: negative payload length")
	ErrTooDeep         = errors.New("chunk: nesting too deep")
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindHeader:
		return "header"
	case KindRejected:
		return "rejected"
	case KindSeekRange:
		return "seek-range"
	case KindLengthMismatch:
		return "length-mismatch"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindIO:
		return ErrIO
	case KindHeader:
		return ErrMalformedHeader
	case KindRejected:
		return ErrRejected
	case KindSeekRange:
		return ErrSeekRange
	case KindLengthMismatch:
		return ErrLengthMismatch
	default:
		return nil
	}
}

// Error is the failure returned by Parse and ParseRegion.
// Offset is the stream offset of the header being processed when the walk failed.
type Error struct {
	Kind   Kind
	Offset int64
	Depth  int
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("chunk: %s at offset %d (depth %d)", e.Kind, e.Offset, e.Depth)
	}
	return fmt.Sprintf("chunk: %s at offset %d (depth %d): %v", e.Kind, e.Offset, e.Depth, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel, so errors.Is(err, ErrRejected) works for any
// handler rejection regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf reports the Kind of err, or zero if err is not an *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
