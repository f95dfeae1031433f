// Package main provides the entry point for the mindual CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/mindual/cmd/mindual/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
