package clipboard

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/mattn/go-isatty"
)

// osc52Backend asks the terminal emulator to set the clipboard. Terminals
// rarely answer OSC 52 queries, so reading is not supported.
type osc52Backend struct {
	out    io.Writer
	getenv func(string) string
}

type fdWriter interface {
	io.Writer
	Fd() uintptr
}

func openOSC52(w io.Writer) (backend, error) {
	if w == nil {
		w = os.Stderr
	}
	if f, ok := w.(fdWriter); ok && !isTerminal(f.Fd()) {
		return nil, fmt.Errorf("%w: osc52 needs a terminal", ErrUnavailable)
	}
	return &osc52Backend{out: w, getenv: os.Getenv}, nil
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (*osc52Backend) kind() Backend { return BackendOSC52 }

func (*osc52Backend) read(Format) ([]byte, error) {
	return nil, fmt.Errorf("%w: osc52 is write only", ErrUnsupported)
}

func (o *osc52Backend) write(f Format, buf []byte) (<-chan struct{}, error) {
	if f != Text {
		return nil, fmt.Errorf("%w: %s format with the osc52 backend", ErrUnsupported, f)
	}

	seq := osc52.New(string(buf))
	switch {
	case o.getenv("TMUX") != "":
		seq = seq.Tmux()
	case strings.HasPrefix(o.getenv("TERM"), "screen"):
		seq = seq.Screen()
	}

	if _, err := seq.WriteTo(o.out); err != nil {
		return nil, fmt.Errorf("write osc52 sequence: %w", err)
	}
	return nil, nil
}
