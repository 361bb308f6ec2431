// Package main provides the entry point for the pdfagentctl CLI.
package main

import (
	"os"

	"pdfagent/cmd/pdfagentctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
