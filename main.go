// The main package for the ans-archiver executable.
package main

import "ans-archiver/cmd"

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
