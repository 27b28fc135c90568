// Replay - recorded mouse and keyboard macro player
package main

import (
	"os"

	"macroreplay/internal/command"
)

// version is overwritten at build time using -ldflags.
var version = "0.1.0"

func main() {
	if err := command.NewRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}
