package main

import (
	"os"

	"github.com/toshik-babe/engine/sidecar/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		// Cobra has already printed the error.
		os.Exit(1)
	}
}
