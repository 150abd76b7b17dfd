// Package clipboard provides access to the system clipboard through one of
// several backends: a cgo-free native implementation built on purego, the
// platform clipboard utilities (xclip, wl-copy, pbcopy, ...), or the OSC 52
// terminal escape sequence.
//
// A process opens one handle and uses it for its lifetime:
//
//	cb, err := clipboard.Open(clipboard.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Write text to clipboard
//	if _, err := cb.WriteText("hello world"); err != nil {
//		log.Fatal(err)
//	}
//
//	// Read text from clipboard
//	text, err := cb.ReadText()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(text)
//
// The package supports text (UTF-8) and images (PNG).
package clipboard

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
)

var (
	// ErrUnavailable indicates that no usable clipboard subsystem exists.
	// It is only returned by Open.
	ErrUnavailable = errors.New("clipboard unavailable")
	// ErrOccupied indicates the clipboard is held or locked by another client.
	ErrOccupied = errors.New("clipboard occupied")
	// ErrContentUnavailable indicates the clipboard holds no content of the
	// requested format.
	ErrContentUnavailable = errors.New("content not available")
	// ErrConversionFailure indicates the clipboard content could not be
	// converted to the requested format.
	ErrConversionFailure = errors.New("content conversion failed")
	// ErrUnsupported indicates the backend, platform or format does not
	// support the operation.
	ErrUnsupported = errors.New("unsupported")
)

// Format represents a clipboard data format.
type Format int

// Supported clipboard formats
const (
	// Text is UTF-8 encoded text.
	Text Format = iota
	// Image is a PNG encoded image.
	Image
)

func (f Format) String() string {
	switch f {
	case Text:
		return "text"
	case Image:
		return "image"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Backend names a clipboard implementation.
type Backend string

const (
	// BackendAuto tries native, command and osc52 in that order.
	BackendAuto Backend = "auto"
	// BackendNative talks to the windowing system directly.
	BackendNative Backend = "native"
	// BackendCommand shells out to the platform clipboard utilities.
	BackendCommand Backend = "command"
	// BackendOSC52 writes OSC 52 escape sequences to the terminal. Write only.
	BackendOSC52 Backend = "osc52"
)

// ParseBackend returns the backend named by s. The empty string selects
// BackendAuto.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BackendAuto, nil
	case BackendAuto, BackendNative, BackendCommand, BackendOSC52:
		return b, nil
	default:
		return "", fmt.Errorf("unknown clipboard backend %q", s)
	}
}

// Options configures Open.
type Options struct {
	// Backend selects the implementation. Zero value means BackendAuto.
	Backend Backend
	// Terminal receives OSC 52 sequences. Defaults to os.Stderr.
	Terminal io.Writer
	// Logger receives debug diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
}

type backend interface {
	kind() Backend
	read(f Format) ([]byte, error)
	write(f Format, buf []byte) (<-chan struct{}, error)
}

// Due to platform limitations, concurrent access can cause issues.
// Use a global lock to guarantee one operation at a time.
var lock sync.Mutex

// Clipboard is an open clipboard handle.
type Clipboard struct {
	b      backend
	logger *zap.Logger
}

// Open acquires a clipboard handle using the backend selected in opts. It
// returns an error wrapping ErrUnavailable when the backend cannot be used on
// this host.
func Open(opts Options) (*Clipboard, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	kind := opts.Backend
	if kind == "" {
		kind = BackendAuto
	}

	var candidates []Backend
	switch kind {
	case BackendAuto:
		candidates = []Backend{BackendNative, BackendCommand, BackendOSC52}
	case BackendNative, BackendCommand, BackendOSC52:
		candidates = []Backend{kind}
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrUnavailable, kind)
	}

	var errs []error
	for _, c := range candidates {
		b, err := openBackend(c, opts)
		if err != nil {
			logger.Debug("clipboard backend unavailable",
				zap.String("backend", string(c)),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		logger.Debug("clipboard backend opened", zap.String("backend", string(c)))
		return &Clipboard{b: b, logger: logger}, nil
	}

	err := errors.Join(errs...)
	if !errors.Is(err, ErrUnavailable) {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil, err
}

func openBackend(kind Backend, opts Options) (backend, error) {
	switch kind {
	case BackendNative:
		return openNative()
	case BackendCommand:
		return openCommand()
	case BackendOSC52:
		return openOSC52(opts.Terminal)
	}
	return nil, fmt.Errorf("%w: unknown backend %q", ErrUnavailable, kind)
}

// Backend reports which implementation the handle uses.
func (c *Clipboard) Backend() Backend {
	return c.b.kind()
}

// Read reads clipboard data in format f. Text content that is not valid
// UTF-8 fails with ErrConversionFailure.
func (c *Clipboard) Read(f Format) ([]byte, error) {
	lock.Lock()
	defer lock.Unlock()

	buf, err := c.b.read(f)
	if err != nil {
		return nil, err
	}
	if f == Text && !utf8.Valid(buf) {
		return nil, fmt.Errorf("%w: text is not valid utf-8", ErrConversionFailure)
	}
	c.logger.Debug("clipboard read",
		zap.Stringer("format", f),
		zap.Int("bytes", len(buf)),
	)
	return buf, nil
}

// Write replaces the clipboard content with buf in format f.
//
// The returned channel receives a signal when the content has been
// overwritten by another application. It is nil when the clipboard keeps
// the content without help from this process.
func (c *Clipboard) Write(f Format, buf []byte) (<-chan struct{}, error) {
	lock.Lock()
	defer lock.Unlock()

	changed, err := c.b.write(f, buf)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("clipboard written",
		zap.Stringer("format", f),
		zap.Int("bytes", len(buf)),
	)
	return changed, nil
}

// ReadText returns the current clipboard text.
func (c *Clipboard) ReadText() (string, error) {
	buf, err := c.Read(Text)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteText replaces the clipboard text with s.
func (c *Clipboard) WriteText(s string) (<-chan struct{}, error) {
	return c.Write(Text, []byte(s))
}
