// Copyright 2025 Ayman Bagabas
// SPDX-License-Identifier: MIT

//go:build linux && !android

package clipboard

import (
	"errors"
	"os"
)

// initialize tries Wayland first in a Wayland session and falls back to
// X11, which covers XWayland.
func initialize() error {
	if isWaylandSession() {
		if err := initializeWayland(); err == nil {
			return nil
		}
	}
	return initializeX11()
}

func read(t Format) ([]byte, error) {
	if isWaylandSession() && initializeWayland() == nil {
		data, err := readWayland(t)
		if err == nil || !fallbackToX11(err) {
			return data, err
		}
	}
	return readX11(t)
}

func write(t Format, buf []byte) (<-chan struct{}, error) {
	if isWaylandSession() && initializeWayland() == nil {
		ch, err := writeWayland(t, buf)
		if err == nil || !fallbackToX11(err) {
			return ch, err
		}
	}
	return writeX11(t, buf)
}

// fallbackToX11 reports whether a Wayland failure is worth retrying
// through XWayland.
func fallbackToX11(err error) bool {
	return !errors.Is(err, ErrUnsupported) && initializeX11() == nil
}

// isWaylandSession detects if we're running under Wayland or X11.
func isWaylandSession() bool {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return true
	}
	return os.Getenv("XDG_SESSION_TYPE") == "wayland"
}
