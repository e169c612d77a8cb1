// Package main provides the entry point for the warden file integrity CLI.
package main

import (
	"errors"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		if errors.Is(err, errChanged) {
			os.Exit(2)
		}
		printError("%v", err)
		os.Exit(1)
	}
}
