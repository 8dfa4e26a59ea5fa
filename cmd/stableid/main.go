// Package main is the entry point for the stableid CLI tool.
package main

import (
	"github.com/hargabyte/stableid/internal/cmd"
)

func main() {
	cmd.Execute()
}
