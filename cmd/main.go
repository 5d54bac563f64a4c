package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errMissingKernel) {
			fmt.Fprintf(os.Stderr, "E: %v.\n", err)
		}
		os.Exit(1)
	}
}
