// Copyright 2025 Ayman Bagabas
// SPDX-License-Identifier: MIT

//go:build freebsd

package clipboard

func initialize() error {
	return initializeX11()
}

func read(t Format) ([]byte, error) {
	return readX11(t)
}

func write(t Format, buf []byte) (<-chan struct{}, error) {
	return writeX11(t, buf)
}
