// Command credctl hashes, verifies, checks and generates credentials from the shell
// using the same policy as the Hansa server.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCmd(os.Stdin, os.Stdout)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errNegative) {
			fmt.Fprintln(os.Stderr, "credctl:", err)
		}
		os.Exit(exitCode(err))
	}
}
