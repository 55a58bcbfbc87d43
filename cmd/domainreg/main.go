// Package main is the entry point for the domainreg CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/domainreg/internal/cli"
	"github.com/roach88/domainreg/internal/ir"
)

// Build information injected via ldflags at build time.
var (
	commit = "none"
	date   = "unknown"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = fmt.Sprintf("%s (layout v%s, commit: %s, built: %s)", ir.EngineVersion, ir.LayoutVersion, commit, date)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
