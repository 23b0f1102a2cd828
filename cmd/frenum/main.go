// Command frenum loads a policy document, lints or tests it, and
// optionally serves it over HTTP. See `frenum --help` for the full
// command surface (spec.md §6, "CLI surface").
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
