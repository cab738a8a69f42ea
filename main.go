// Command lfmsum is the entry point for the application.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/kaelstream/lfmsum/cmd"
)

func main() {
	// Panic recovery for production hardening: catch unhandled panics and log
	// the stack trace before terminating with exit code 1 rather than a raw
	// Go panic dump.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\nPANIC: %v\n", r)
			fmt.Fprintf(os.Stderr, "\nStack trace:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
