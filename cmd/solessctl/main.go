// Command solessctl inspects and exercises a SOLess deployment's knowledge
// base from the terminal, using the same configuration as the API server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
