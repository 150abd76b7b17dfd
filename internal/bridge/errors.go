package bridge

import (
	"fmt"

	"github.com/aymanbagabas/clipio/clipboard"
)

// Kind classifies a bridge failure.
type Kind int

const (
	// KindClipboard wraps a failure reported by the clipboard.
	KindClipboard Kind = iota + 1
	// KindConversion means the input was not valid for the format.
	KindConversion
	// KindIO wraps a failure reading stdin or writing stdout.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindClipboard:
		return "clipboard"
	case KindConversion:
		return "conversion"
	case KindIO:
		return "io"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a categorized bridge failure.
type Error struct {
	Kind   Kind
	Format clipboard.Format
	Err    error
}

func (e *Error) Error() string {
	return e.Kind.String() + " error: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidUTF8Error reports the first byte offset of an ill-formed UTF-8
// sequence.
type InvalidUTF8Error struct {
	Offset int
}

func (e *InvalidUTF8Error) Error() string {
	return fmt.Sprintf("invalid utf-8 sequence at byte offset %d", e.Offset)
}
