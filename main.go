// The main package for the xmlstream executable.
package main

import (
	"github.com/JakeFAU/xmlstream/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
