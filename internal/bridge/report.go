package bridge

import (
	"errors"
	"fmt"
	"io"

	"github.com/aymanbagabas/clipio/clipboard"
)

// Report prints err as a single line. The non-verbose form only names the
// failure category; the verbose form names the clipboard failure reason or
// includes the underlying message.
func Report(w io.Writer, err error, verbose bool) {
	var e *Error
	if !errors.As(err, &e) {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}

	if !verbose {
		fmt.Fprintf(w, "error: %s\n", phrase(e))
		return
	}

	switch e.Kind {
	case KindClipboard:
		if reason, ok := clipboardReason(e.Err); ok {
			fmt.Fprintf(w, "error: %s\n", reason)
			return
		}
		fmt.Fprintf(w, "clipboard error: %v\n", e.Err)
	case KindConversion:
		if e.Format == clipboard.Image {
			fmt.Fprintf(w, "image error: %v\n", e.Err)
			return
		}
		fmt.Fprintf(w, "utf8 error: %v\n", e.Err)
	case KindIO:
		fmt.Fprintf(w, "io error: %v\n", e.Err)
	default:
		fmt.Fprintf(w, "error: %v\n", e.Err)
	}
}

func phrase(e *Error) string {
	switch e.Kind {
	case KindClipboard:
		return "clipboard error"
	case KindConversion:
		if e.Format == clipboard.Image {
			return "image conversion error"
		}
		return "utf8 conversion error"
	case KindIO:
		return "io error"
	default:
		return "unknown error"
	}
}

// clipboardReason maps known clipboard failures to a phrase. Unknown
// failures are printed with their own description.
func clipboardReason(err error) (string, bool) {
	switch {
	case errors.Is(err, clipboard.ErrOccupied):
		return "clipboard not available", true
	case errors.Is(err, clipboard.ErrContentUnavailable):
		return "content not available", true
	case errors.Is(err, clipboard.ErrConversionFailure):
		return "could not convert clipboard content", true
	case errors.Is(err, clipboard.ErrUnsupported):
		return "clipboard not supported", true
	default:
		return "", false
	}
}
