// Package main is the entry point for the nestq CLI.
package main

import (
	"os"

	"github.com/roach88/nestq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
