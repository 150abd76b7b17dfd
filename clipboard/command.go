package clipboard

import (
	"fmt"

	atotto "github.com/atotto/clipboard"
)

// commandBackend drives the platform clipboard utilities: xclip, xsel,
// wl-copy/wl-paste or termux on Unix, pbcopy/pbpaste on macOS and the
// Win32 API on Windows. Text only.
type commandBackend struct {
	readAll  func() (string, error)
	writeAll func(string) error
}

func openCommand() (backend, error) {
	return newCommandBackend(atotto.Unsupported, atotto.ReadAll, atotto.WriteAll)
}

func newCommandBackend(unsupported bool, readAll func() (string, error), writeAll func(string) error) (backend, error) {
	if unsupported {
		return nil, fmt.Errorf("%w: no clipboard utility found (install xclip, xsel or wl-clipboard)", ErrUnavailable)
	}
	return commandBackend{readAll: readAll, writeAll: writeAll}, nil
}

func (commandBackend) kind() Backend { return BackendCommand }

// read treats a failing utility as an empty clipboard: xclip and wl-paste
// exit non-zero when nothing is selected.
func (c commandBackend) read(f Format) ([]byte, error) {
	if f != Text {
		return nil, fmt.Errorf("%w: %s format with the command backend", ErrUnsupported, f)
	}
	s, err := c.readAll()
	if err != nil {
		return nil, fmt.Errorf("%w: clipboard command: %v", ErrContentUnavailable, err)
	}
	return []byte(s), nil
}

// write returns a nil channel: the utility keeps serving the content after
// this process exits.
func (c commandBackend) write(f Format, buf []byte) (<-chan struct{}, error) {
	if f != Text {
		return nil, fmt.Errorf("%w: %s format with the command backend", ErrUnsupported, f)
	}
	if err := c.writeAll(string(buf)); err != nil {
		return nil, fmt.Errorf("clipboard command: %w", err)
	}
	return nil, nil
}
