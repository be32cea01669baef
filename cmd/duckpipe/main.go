// Package main is the entry point for the duckpipe binary.
package main

import (
	"os"

	cli "duck-pipeline/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
