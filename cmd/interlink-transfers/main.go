// Interlink Transfers - live progress tracking for concurrent uploads and downloads.
package main

import (
	"os"

	"github.com/rescale/interlink-transfers/internal/cli"
	"github.com/rescale/interlink-transfers/internal/version"
)

// Set via -ldflags "-X main.Version=... -X main.BuildTime=..."
var (
	Version   = ""
	BuildTime = ""
)

func main() {
	if Version != "" {
		version.Version = Version
	}
	if BuildTime != "" {
		version.BuildTime = BuildTime
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
