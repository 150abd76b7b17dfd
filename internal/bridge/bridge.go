// Package bridge moves data between the clipboard and standard streams.
//
// Read copies the clipboard to stdout. Write captures stdin, validates it,
// stores it in the clipboard and echoes it to stdout. Every failure is
// returned as an *Error for Report to print.
package bridge

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/aymanbagabas/clipio/clipboard"
)

// Clipboard is the subset of *clipboard.Clipboard the bridge needs.
type Clipboard interface {
	Read(f clipboard.Format) ([]byte, error)
	Write(f clipboard.Format, buf []byte) (<-chan struct{}, error)
}

// Options configures a Bridge.
type Options struct {
	Format clipboard.Format
	Logger *zap.Logger
}

// Bridge performs one read or write per process.
type Bridge struct {
	clip   Clipboard
	in     io.Reader
	out    io.Writer
	format clipboard.Format
	logger *zap.Logger
	input  []byte
}

// New returns a Bridge between clip and the given streams.
func New(clip Clipboard, in io.Reader, out io.Writer, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		clip:   clip,
		in:     in,
		out:    out,
		format: opts.Format,
		logger: logger,
	}
}

// Read writes the current clipboard content to the output stream.
func (b *Bridge) Read() error {
	buf, err := b.clip.Read(b.format)
	if err != nil {
		return b.fail(KindClipboard, err)
	}
	if err := b.emit(buf); err != nil {
		return err
	}
	b.logger.Debug("clipboard copied to output",
		zap.Stringer("format", b.format),
		zap.Int("bytes", len(buf)),
	)
	return nil
}

// Write stores the whole input stream in the clipboard and echoes it to the
// output stream. The input is validated before the clipboard is touched, so
// a conversion failure leaves both the clipboard and the output untouched.
//
// The returned channel is the clipboard's change notification; see
// clipboard.Clipboard.Write.
func (b *Bridge) Write() (<-chan struct{}, error) {
	buf, err := io.ReadAll(b.in)
	if err != nil {
		return nil, b.fail(KindIO, err)
	}

	if err := validate(b.format, buf); err != nil {
		return nil, b.fail(KindConversion, err)
	}

	changed, err := b.clip.Write(b.format, buf)
	if err != nil {
		return nil, b.fail(KindClipboard, err)
	}
	b.input = buf

	if err := b.emit(buf); err != nil {
		return nil, err
	}
	b.logger.Debug("input copied to clipboard",
		zap.Stringer("format", b.format),
		zap.Int("bytes", len(buf)),
	)
	return changed, nil
}

// Input returns the data stored in the clipboard by Write.
func (b *Bridge) Input() []byte {
	return b.input
}

// Wait blocks until changed fires or ctx is done. A nil channel returns
// immediately.
func (b *Bridge) Wait(ctx context.Context, changed <-chan struct{}) {
	if changed == nil {
		return
	}
	b.logger.Debug("serving clipboard until replaced")
	select {
	case <-changed:
		b.logger.Debug("clipboard replaced by another application")
	case <-ctx.Done():
		b.logger.Debug("stopped serving clipboard", zap.Error(ctx.Err()))
	}
}

// emit writes buf once; a short write is an error.
func (b *Bridge) emit(buf []byte) error {
	n, err := b.out.Write(buf)
	if err == nil && n < len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return b.fail(KindIO, err)
	}
	return nil
}

func (b *Bridge) fail(kind Kind, err error) error {
	b.logger.Debug("bridge failed",
		zap.Stringer("kind", kind),
		zap.Stringer("format", b.format),
		zap.Error(err),
	)
	return &Error{Kind: kind, Format: b.format, Err: err}
}

func validate(f clipboard.Format, buf []byte) error {
	switch f {
	case clipboard.Text:
		if utf8.Valid(buf) {
			return nil
		}
		return &InvalidUTF8Error{Offset: invalidOffset(buf)}
	case clipboard.Image:
		if _, err := png.DecodeConfig(bytes.NewReader(buf)); err != nil {
			return fmt.Errorf("decode png: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %s", f)
	}
}

func invalidOffset(buf []byte) int {
	for i := 0; i < len(buf); {
		r, size := utf8.DecodeRune(buf[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(buf)
}
