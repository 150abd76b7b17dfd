package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/aymanbagabas/clipio/clipboard"
)

func TestReport(t *testing.T) {
	ioErr := os.ErrClosed
	utf8Err := &InvalidUTF8Error{Offset: 3}

	tests := []struct {
		name    string
		err     error
		verbose bool
		want    string
	}{
		{"clipboard", &Error{Kind: KindClipboard, Err: clipboard.ErrContentUnavailable}, false, "error: clipboard error\n"},
		{"conversion", &Error{Kind: KindConversion, Err: utf8Err}, false, "error: utf8 conversion error\n"},
		{"image conversion", &Error{Kind: KindConversion, Format: clipboard.Image, Err: errors.New("decode png: bad")}, false, "error: image conversion error\n"},
		{"io", &Error{Kind: KindIO, Err: ioErr}, false, "error: io error\n"},

		{"occupied verbose", &Error{Kind: KindClipboard, Err: clipboard.ErrOccupied}, true, "error: clipboard not available\n"},
		{"no content verbose", &Error{Kind: KindClipboard, Err: clipboard.ErrContentUnavailable}, true, "error: content not available\n"},
		{"conversion failure verbose", &Error{Kind: KindClipboard, Err: fmt.Errorf("%w: 24 bits per pixel", clipboard.ErrConversionFailure)}, true, "error: could not convert clipboard content\n"},
		{"unsupported verbose", &Error{Kind: KindClipboard, Err: clipboard.ErrUnsupported}, true, "error: clipboard not supported\n"},
		{"unknown verbose", &Error{Kind: KindClipboard, Err: errors.New("xclip: exit status 1")}, true, "clipboard error: xclip: exit status 1\n"},
		{"io verbose", &Error{Kind: KindIO, Err: ioErr}, true, "io error: file already closed\n"},
		{"utf8 verbose", &Error{Kind: KindConversion, Err: utf8Err}, true, "utf8 error: invalid utf-8 sequence at byte offset 3\n"},
		{"image verbose", &Error{Kind: KindConversion, Format: clipboard.Image, Err: errors.New("decode png: bad")}, true, "image error: decode png: bad\n"},

		{"uncategorized", errors.New("boom"), false, "error: boom\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Report(&buf, tt.err, tt.verbose)
			if buf.String() != tt.want {
				t.Errorf("Report() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestReportNonVerboseHidesDetail(t *testing.T) {
	detail := "permission denied on /dev/pts/3"
	errs := []error{
		&Error{Kind: KindIO, Err: errors.New(detail)},
		&Error{Kind: KindConversion, Err: errors.New(detail)},
		&Error{Kind: KindClipboard, Err: errors.New(detail)},
	}

	for _, err := range errs {
		var buf bytes.Buffer
		Report(&buf, err, false)
		if strings.Contains(buf.String(), detail) {
			t.Errorf("non-verbose report leaked detail: %q", buf.String())
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Errorf("expected a single line, got %q", buf.String())
		}
	}
}

func TestReportWrappedError(t *testing.T) {
	var buf bytes.Buffer
	err := fmt.Errorf("run: %w", &Error{Kind: KindClipboard, Err: clipboard.ErrUnsupported})
	Report(&buf, err, true)
	if buf.String() != "error: clipboard not supported\n" {
		t.Errorf("Report() = %q", buf.String())
	}
}
