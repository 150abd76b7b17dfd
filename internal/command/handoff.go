package command

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/aymanbagabas/clipio/clipboard"
	"github.com/aymanbagabas/clipio/internal/bridge"
)

// handoffTimeout bounds how long the parent keeps serving the selection while
// the background server takes it over.
const handoffTimeout = 2 * time.Second

// startServer launches a process that owns the clipboard after this one
// exits. Tests replace it.
var startServer = spawnServer

// handOff keeps content alive whose clipboard ownership ends with this
// process, as on X11 and Wayland. A detached "clipio --wait" takes over the
// selection; this process serves it until the takeover completes. If no
// server can be started it keeps serving in the foreground instead.
func handOff(ctx context.Context, b *bridge.Bridge, f clipboard.Format, changed <-chan struct{}, logger *zap.Logger) {
	if err := startServer(f, b.Input()); err != nil {
		logger.Debug("clipboard hand-off failed, serving in the foreground", zap.Error(err))
		b.Wait(ctx, changed)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, handoffTimeout)
	defer cancel()
	b.Wait(ctx, changed)
}

func spawnServer(f clipboard.Format, data []byte) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	args := []string{"--write", "--wait", "--backend", string(clipboard.BackendNative)}
	if f == clipboard.Image {
		args = append(args, "--image")
	}

	cmd := exec.Command(exe, args...)
	detach(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("clipboard server stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start clipboard server: %w", err)
	}

	// The server reads all of its input before taking the selection.
	_, err = stdin.Write(data)
	if cerr := stdin.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("feed clipboard server: %w", err)
	}
	return cmd.Process.Release()
}
