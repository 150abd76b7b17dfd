package command

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/aymanbagabas/clipio/clipboard"
	"github.com/aymanbagabas/clipio/internal/bridge"
)

type fakeClipboard struct {
	data     map[clipboard.Format][]byte
	readErr  error
	writeErr error
	writes   int
	changed  chan struct{}
}

func (f *fakeClipboard) Read(format clipboard.Format) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	buf, ok := f.data[format]
	if !ok {
		return nil, clipboard.ErrContentUnavailable
	}
	return buf, nil
}

func (f *fakeClipboard) Write(format clipboard.Format, buf []byte) (<-chan struct{}, error) {
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	if f.data == nil {
		f.data = make(map[clipboard.Format][]byte)
	}
	f.data[format] = append([]byte(nil), buf...)
	f.writes++
	return f.changed, nil
}

type result struct {
	stdout string
	stderr string
	err    error
	opts   clipboard.Options
}

func execute(t *testing.T, clip *fakeClipboard, stdin string, args ...string) result {
	t.Helper()

	var res result
	open := func(opts clipboard.Options) (bridge.Clipboard, error) {
		res.opts = opts
		return clip, nil
	}

	cmd := NewRootCmd("test", open)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	res.err = cmd.Execute()
	res.stdout = stdout.String()
	res.stderr = stderr.String()
	return res
}

func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommandVersion(t *testing.T) {
	output, err := executeCommand(NewRootCmd("test", OpenSystem), "--version")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != "clipio version test\n" {
		t.Fatalf("unexpected version output %q", output)
	}
}

func TestRootCommandHelp(t *testing.T) {
	output, err := executeCommand(NewRootCmd("test", OpenSystem), "--help")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, flag := range []string{"--write", "--verbose", "--image", "--backend", "--wait", "--strict"} {
		if !strings.Contains(output, flag) {
			t.Errorf("help output missing %s", flag)
		}
	}
}

func TestUnknownFlagShowsUsage(t *testing.T) {
	_, err := executeCommand(NewRootCmd("test", OpenSystem), "--bogus")
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "unknown flag") || !strings.Contains(err.Error(), "Usage:") {
		t.Fatalf("expected usage in error, got %q", err)
	}
}

func TestPositionalArgumentsRejected(t *testing.T) {
	res := execute(t, &fakeClipboard{}, "", "extra")
	if res.err == nil {
		t.Fatal("expected error for positional argument")
	}
}

func TestReadMode(t *testing.T) {
	clip := &fakeClipboard{data: map[clipboard.Format][]byte{clipboard.Text: []byte("from clipboard")}}

	res := execute(t, clip, "ignored")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if res.stdout != "from clipboard" {
		t.Errorf("stdout = %q", res.stdout)
	}
	if res.stderr != "" {
		t.Errorf("stderr = %q", res.stderr)
	}
	if clip.writes != 0 {
		t.Errorf("read mode wrote the clipboard")
	}
}

func TestWriteMode(t *testing.T) {
	clip := &fakeClipboard{}

	res := execute(t, clip, "hello", "-w")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if res.stdout != "hello" {
		t.Errorf("stdout = %q, want hello", res.stdout)
	}
	if got := string(clip.data[clipboard.Text]); got != "hello" {
		t.Errorf("clipboard = %q, want hello", got)
	}
}

func TestReadEmptyClipboardReports(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, "error: clipboard error\n"},
		{[]string{"-v"}, "error: content not available\n"},
		{[]string{"--verbose"}, "error: content not available\n"},
	}

	for _, tt := range tests {
		res := execute(t, &fakeClipboard{}, "", tt.args...)
		if res.err != nil {
			t.Fatalf("%v: reported errors must not fail the command, got %v", tt.args, res.err)
		}
		if res.stderr != tt.want {
			t.Errorf("%v: stderr = %q, want %q", tt.args, res.stderr, tt.want)
		}
		if res.stdout != "" {
			t.Errorf("%v: stdout = %q, want empty", tt.args, res.stdout)
		}
	}
}

func TestWriteBinaryInput(t *testing.T) {
	clip := &fakeClipboard{}

	res := execute(t, clip, "\xff\xfe\x00", "--write")
	if res.stderr != "error: utf8 conversion error\n" {
		t.Errorf("stderr = %q", res.stderr)
	}
	if clip.writes != 0 {
		t.Error("invalid input reached the clipboard")
	}
	if res.stdout != "" {
		t.Errorf("stdout = %q, want empty", res.stdout)
	}

	res = execute(t, clip, "\xff\xfe\x00", "-w", "-v")
	if !strings.HasPrefix(res.stderr, "utf8 error: invalid utf-8 sequence") {
		t.Errorf("verbose stderr = %q", res.stderr)
	}
}

func TestUnknownClipboardErrorVerbose(t *testing.T) {
	clip := &fakeClipboard{readErr: errors.New("xsel: cannot open display")}

	res := execute(t, clip, "", "-v")
	if res.stderr != "clipboard error: xsel: cannot open display\n" {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestStrictMode(t *testing.T) {
	res := execute(t, &fakeClipboard{}, "", "--strict")
	if !errors.Is(res.err, ErrReported) {
		t.Fatalf("expected ErrReported, got %v", res.err)
	}
	if res.stderr != "error: clipboard error\n" {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestStrictFromEnvironment(t *testing.T) {
	t.Setenv("CLIPIO_STRICT", "1")

	res := execute(t, &fakeClipboard{}, "")
	if !errors.Is(res.err, ErrReported) {
		t.Fatalf("expected ErrReported, got %v", res.err)
	}
}

func TestOpenFailureAborts(t *testing.T) {
	open := func(clipboard.Options) (bridge.Clipboard, error) {
		return nil, clipboard.ErrUnavailable
	}
	_, err := executeCommand(NewRootCmd("test", open))
	if !errors.Is(err, clipboard.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBackendPassedToOpener(t *testing.T) {
	res := execute(t, &fakeClipboard{}, "hi", "-w", "--backend", "osc52")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if res.opts.Backend != clipboard.BackendOSC52 {
		t.Errorf("backend = %q, want osc52", res.opts.Backend)
	}
	if res.opts.Logger == nil {
		t.Error("expected a logger")
	}
}

func TestInvalidBackend(t *testing.T) {
	res := execute(t, &fakeClipboard{}, "", "--backend", "pigeon")
	if res.err == nil || !strings.Contains(res.err.Error(), "pigeon") {
		t.Fatalf("expected backend error, got %v", res.err)
	}
}

func TestImageMode(t *testing.T) {
	clip := &fakeClipboard{data: map[clipboard.Format][]byte{clipboard.Image: []byte("\x89PNG fake")}}

	res := execute(t, clip, "", "--image")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if res.stdout != "\x89PNG fake" {
		t.Errorf("stdout = %q", res.stdout)
	}

	res = execute(t, clip, "not a png", "-w", "-i")
	if res.stderr != "error: image conversion error\n" {
		t.Errorf("stderr = %q", res.stderr)
	}
}

type server struct {
	calls  int
	format clipboard.Format
	data   string
}

// replaceServer swaps the background server for one that records its input
// and then takes over the selection by firing changed.
func replaceServer(t *testing.T, changed chan struct{}, err error) *server {
	t.Helper()
	s := &server{}
	orig := startServer
	startServer = func(f clipboard.Format, data []byte) error {
		s.calls++
		s.format, s.data = f, string(data)
		if err != nil {
			return err
		}
		close(changed)
		return nil
	}
	t.Cleanup(func() { startServer = orig })
	return s
}

func TestWriteHandsOffOwnedSelection(t *testing.T) {
	changed := make(chan struct{})
	srv := replaceServer(t, changed, nil)

	res := execute(t, &fakeClipboard{changed: changed}, "hello", "-w")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if srv.calls != 1 {
		t.Fatalf("server started %d times, want 1", srv.calls)
	}
	if srv.data != "hello" || srv.format != clipboard.Text {
		t.Errorf("server got %s %q, want text %q", srv.format, srv.data, "hello")
	}
	if res.stdout != "hello" {
		t.Errorf("stdout = %q, want hello", res.stdout)
	}
}

func TestWriteHandsOffImage(t *testing.T) {
	changed := make(chan struct{})
	srv := replaceServer(t, changed, nil)

	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}

	res := execute(t, &fakeClipboard{changed: changed}, img.String(), "-w", "-i")
	if res.err != nil || res.stderr != "" {
		t.Fatalf("unexpected failure: %v %q", res.err, res.stderr)
	}
	if srv.format != clipboard.Image || srv.data != img.String() {
		t.Errorf("server got %s of %d bytes", srv.format, len(srv.data))
	}
}

func TestWriteServesWhenHandOffFails(t *testing.T) {
	changed := make(chan struct{})
	close(changed)
	srv := replaceServer(t, changed, errors.New("fork failed"))

	res := execute(t, &fakeClipboard{changed: changed}, "hello", "-w")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if srv.calls != 1 {
		t.Fatalf("server started %d times, want 1", srv.calls)
	}
}

func TestWriteWaitSkipsHandOff(t *testing.T) {
	changed := make(chan struct{})
	srv := replaceServer(t, changed, nil)
	close(changed)

	res := execute(t, &fakeClipboard{changed: changed}, "hello", "-w", "--wait")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if srv.calls != 0 {
		t.Errorf("server started %d times with --wait", srv.calls)
	}
}

func TestWritePersistentClipboardSkipsHandOff(t *testing.T) {
	srv := replaceServer(t, make(chan struct{}), nil)

	res := execute(t, &fakeClipboard{}, "hello", "-w")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if srv.calls != 0 {
		t.Errorf("server started %d times for a persistent clipboard", srv.calls)
	}
}
