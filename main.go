// The main package for the litcrawler executable.
package main

import (
	"github.com/openpeptides/litcrawler/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
