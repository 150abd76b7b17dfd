package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aymanbagabas/clipio/internal/command"
)

func main() {
	if err := command.Execute(); err != nil {
		if !errors.Is(err, command.ErrReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
