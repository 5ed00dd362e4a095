package main

import (
	"os"

	"github.com/voidbert/PL/compiler/cmd"
)

// plpc compiles a subset of Pascal to EWVM assembly.
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
