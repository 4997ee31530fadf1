// Package main is the entrypoint for the waqctl CLI.
// The CLI provides commands for data source management, trigger
// administration, message resolution and diagnostics.
package main

import (
	"os"

	"github.com/hansduf/WA-Integrasi-sub000/internal/cli"
)

// Version information injected at build time.
var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	os.Exit(cli.New().Execute())
}
