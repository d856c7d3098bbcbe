// Command citycycle runs simulation cycles against a configured store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/citycycle/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "citycycle:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
