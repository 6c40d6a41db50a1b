// Command tourneyq applies YAML batch files of tournament changes to SQLite
// through the paged write queue.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tourneyq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
