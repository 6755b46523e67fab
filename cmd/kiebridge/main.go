// Command kiebridge drives a Drools rules engine running in a JVM and
// generates DRL fact type declarations.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/kiebridge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
