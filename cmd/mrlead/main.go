// Package main is the entry point for the mrlead CLI tool.
package main

import (
	"github.com/mrlead/mrlead/internal/cmd"
)

func main() {
	cmd.Execute()
}
