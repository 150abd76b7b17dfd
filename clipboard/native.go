// Copyright 2025 Ayman Bagabas
// SPDX-License-Identifier: MIT

package clipboard

import (
	"errors"
	"fmt"
	"sync"
)

var (
	initOnce  sync.Once
	initError error
)

type nativeBackend struct{}

// openNative loads the platform libraries once per process.
func openNative() (backend, error) {
	initOnce.Do(func() {
		initError = initialize()
	})
	if initError != nil {
		if errors.Is(initError, ErrUnavailable) {
			return nil, initError
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, initError)
	}
	return nativeBackend{}, nil
}

func (nativeBackend) kind() Backend { return BackendNative }

func (nativeBackend) read(f Format) ([]byte, error) {
	return read(f)
}

func (nativeBackend) write(f Format, buf []byte) (<-chan struct{}, error) {
	return write(f, buf)
}
