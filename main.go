package main

import (
	"os"

	"github.com/tphakala/train-spotter/cmd"
	"github.com/tphakala/train-spotter/internal/buildinfo"
)

// Set through -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	info := buildinfo.NewContext(version, buildDate)
	if err := cmd.RootCommand(info).Execute(); err != nil {
		os.Exit(1)
	}
}
