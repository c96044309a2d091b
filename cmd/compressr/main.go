// Package main is the entry point for the compressr service.
package main

import (
	"os"

	"github.com/jmylchreest/compressr/cmd/compressr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
