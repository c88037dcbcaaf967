// Command sessionctl inspects tokens and revokes refresh sessions from an
// operator shell, using the same environment as the API server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
