package main

import (
	"os"

	"github.com/psantana5/opsim/cmd/opsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
